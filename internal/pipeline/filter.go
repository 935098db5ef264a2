package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/scones-unlimited/image-workflows/internal/domain"
	"github.com/scones-unlimited/image-workflows/internal/predictor"
)

// ErrThresholdNotMet terminates the workflow when no inference reaches
// the confidence threshold. There is deliberately no retry or recovery:
// the state machine has no catcher on this stage, so low-confidence
// executions fail loudly for the operations team.
var ErrThresholdNotMet = errors.New("THRESHOLD_CONFIDENCE_NOT_MET")

// ConfidenceFilter rejects events whose inferences all fall below the
// threshold. Final stage of the workflow.
type ConfidenceFilter struct {
	threshold float64
}

// NewConfidenceFilter creates the filter stage. A zero threshold
// selects the default of 0.70.
func NewConfidenceFilter(threshold float64) *ConfidenceFilter {
	if threshold == 0 {
		threshold = domain.DefaultThreshold
	}

	return &ConfidenceFilter{threshold: threshold}
}

// Name returns the stage name
func (f *ConfidenceFilter) Name() string { return "FilterLowConfidence" }

// Threshold returns the configured confidence cutoff
func (f *ConfidenceFilter) Threshold() float64 { return f.threshold }

// Run passes the event through unchanged when any parsed confidence
// value meets the threshold, and fails the execution otherwise.
func (f *ConfidenceFilter) Run(_ context.Context, event domain.WorkflowEvent) (domain.WorkflowEvent, error) {
	inferences, err := predictor.ParseInferences(event.Inferences)
	if err != nil {
		return domain.WorkflowEvent{}, fmt.Errorf("failed to parse inferences: %w", err)
	}

	for _, inf := range inferences {
		if inf.Score >= f.threshold {
			log.Printf("[Filter] s3://%s/%s passed (%s >= %.2f)",
				event.S3Bucket, event.S3Key, inf, f.threshold)

			return event, nil
		}
	}

	return domain.WorkflowEvent{}, ErrThresholdNotMet
}

// TopScore returns the highest parsed confidence value in the event, or
// zero when there are no parseable inferences. Used for reporting.
func TopScore(event domain.WorkflowEvent) float64 {
	inferences, err := predictor.ParseInferences(event.Inferences)
	if err != nil {
		return 0
	}

	var top float64
	for _, inf := range inferences {
		if inf.Score > top {
			top = inf.Score
		}
	}

	return top
}
