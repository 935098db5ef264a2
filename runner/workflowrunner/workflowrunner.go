// Package workflowrunner deploys the Step Functions state machine and
// runs a single execution against it.
package workflowrunner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/scones-unlimited/image-workflows/internal/domain"
	"github.com/scones-unlimited/image-workflows/internal/statemachine"
	"github.com/scones-unlimited/image-workflows/runner"
	"github.com/scones-unlimited/image-workflows/tlmt"
)

type workflowRunner struct {
	cfg    *runner.Config
	client *statemachine.Client
}

// New creates a workflow runner
func New(cfg *runner.Config) (runner.Runner, error) {
	client, err := statemachine.NewClient(context.Background(), statemachine.Config{
		Region:    cfg.AwsRegion,
		AccessKey: cfg.AwsAccessKey,
		SecretKey: cfg.AwsSecretKey,
	})
	if err != nil {
		return nil, err
	}

	return &workflowRunner{
		cfg:    cfg,
		client: client,
	}, nil
}

// Run deploys the state machine if needed, then starts an execution for
// the configured object and waits for it to finish.
func (w *workflowRunner) Run(ctx context.Context) error {
	evt := tlmt.NewEvent("workflow_run", nil)
	_ = runner.Telemetry().Send(ctx, evt)

	arn := w.cfg.StateMachineARN

	if arn == "" {
		def, err := statemachine.NewDefinition(statemachine.FunctionARNs{
			Serialize: w.cfg.SerializeARN,
			Classify:  w.cfg.ClassifyARN,
			Filter:    w.cfg.FilterARN,
		})
		if err != nil {
			return err
		}

		arn, err = w.client.Deploy(ctx, w.cfg.StateMachineName, w.cfg.RoleARN, def)
		if err != nil {
			return err
		}
	}

	if w.cfg.S3Bucket == "" || w.cfg.S3Key == "" {
		log.Printf("[Workflow] no -s3-bucket/-s3-key given, deploy only")

		return nil
	}

	executionARN, err := w.client.StartExecution(ctx, arn, domain.WorkflowEvent{
		S3Bucket: w.cfg.S3Bucket,
		S3Key:    w.cfg.S3Key,
	})
	if err != nil {
		return err
	}

	log.Printf("[Workflow] started execution %s", executionARN)

	outcome, err := w.client.WaitForExecution(ctx, executionARN, w.cfg.PollInterval)
	if err != nil {
		if outcome != nil {
			log.Printf("[Workflow] execution ended with status %s: %s (%s)",
				outcome.Status, outcome.Error, outcome.Cause)
		}

		return err
	}

	return w.writeResult(outcome.Output)
}

func (w *workflowRunner) writeResult(event domain.WorkflowEvent) error {
	// Never echo the payload back into logs or results
	event.ImageData = ""

	data, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if w.cfg.ResultsFile == "" || w.cfg.ResultsFile == "stdout" {
		fmt.Fprintln(os.Stdout, string(data))

		return nil
	}

	return os.WriteFile(w.cfg.ResultsFile, append(data, '\n'), 0o644)
}

func (w *workflowRunner) Close(context.Context) error {
	return nil
}
