// Package pipeline implements the three stages of the image
// classification workflow: serialize, classify, filter. Each stage has
// the same shape so it can run as a Lambda handler behind the state
// machine or be chained in-process by the local runner and workers.
package pipeline

import (
	"context"
	"fmt"

	"github.com/scones-unlimited/image-workflows/internal/domain"
)

// Step is a single stage of the workflow. It receives the event the
// previous stage produced and returns the event for the next one.
type Step interface {
	// Name returns the stage name as it appears in the state machine
	Name() string

	// Run executes the stage
	Run(ctx context.Context, event domain.WorkflowEvent) (domain.WorkflowEvent, error)
}

// Chain runs steps in order, feeding each stage's output into the next.
// This mirrors what the deployed state machine does with $.body
// filtering between Lambda invocations.
func Chain(ctx context.Context, event domain.WorkflowEvent, steps ...Step) (domain.WorkflowEvent, error) {
	for _, step := range steps {
		var err error

		event, err = step.Run(ctx, event)
		if err != nil {
			return domain.WorkflowEvent{}, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	return event, nil
}

// Handler adapts a step to the Lambda handler signature. The state
// machine filters each state's output on $.body, so the incoming event
// is always a bare WorkflowEvent.
func Handler(step Step) func(ctx context.Context, event domain.WorkflowEvent) (domain.HandlerResponse, error) {
	return func(ctx context.Context, event domain.WorkflowEvent) (domain.HandlerResponse, error) {
		out, err := step.Run(ctx, event)
		if err != nil {
			return domain.HandlerResponse{}, err
		}

		return domain.OK(out), nil
	}
}
