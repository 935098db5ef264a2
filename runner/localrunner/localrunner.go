// Package localrunner chains the three workflow stages in-process,
// mirroring what the deployed state machine does. Useful for smoke
// testing handler changes before packaging them for Lambda.
package localrunner

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/scones-unlimited/image-workflows/internal/domain"
	"github.com/scones-unlimited/image-workflows/internal/pipeline"
	"github.com/scones-unlimited/image-workflows/internal/predictor"
	"github.com/scones-unlimited/image-workflows/internal/storage"
	"github.com/scones-unlimited/image-workflows/runner"
	"github.com/scones-unlimited/image-workflows/tlmt"
)

type localRunner struct {
	cfg   *runner.Config
	steps []pipeline.Step
}

// New creates a local runner. With -local-root objects are served from
// disk; otherwise S3 is used.
func New(cfg *runner.Config) (runner.Runner, error) {
	if cfg.S3Bucket == "" || cfg.S3Key == "" {
		return nil, fmt.Errorf("local mode requires -s3-bucket and -s3-key")
	}

	ctx := context.Background()

	var (
		store storage.ObjectStore
		err   error
	)

	if cfg.LocalRoot != "" {
		store = storage.NewFileStore(cfg.LocalRoot)
	} else {
		store, err = storage.NewS3Store(ctx, storage.S3Config{
			Region:    cfg.AwsRegion,
			AccessKey: cfg.AwsAccessKey,
			SecretKey: cfg.AwsSecretKey,
		})
		if err != nil {
			return nil, err
		}
	}

	p, err := predictor.NewSageMakerPredictor(ctx, predictor.SageMakerConfig{
		EndpointName: cfg.EndpointName,
		Region:       cfg.AwsRegion,
		AccessKey:    cfg.AwsAccessKey,
		SecretKey:    cfg.AwsSecretKey,
		ContentType:  cfg.ContentType,
	})
	if err != nil {
		return nil, err
	}

	return &localRunner{
		cfg: cfg,
		steps: []pipeline.Step{
			pipeline.NewSerializer(store),
			pipeline.NewClassifier(p),
			pipeline.NewConfidenceFilter(cfg.Threshold),
		},
	}, nil
}

// Run executes the pipeline once and writes the resulting event
func (l *localRunner) Run(ctx context.Context) error {
	evt := tlmt.NewEvent("local_run", nil)
	_ = runner.Telemetry().Send(ctx, evt)

	out, err := pipeline.Chain(ctx, domain.WorkflowEvent{
		S3Bucket: l.cfg.S3Bucket,
		S3Key:    l.cfg.S3Key,
	}, l.steps...)
	if err != nil {
		return err
	}

	log.Printf("[Local] s3://%s/%s passed the confidence filter (top score %.4f)",
		out.S3Bucket, out.S3Key, pipeline.TopScore(out))

	out.ImageData = ""

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if l.cfg.ResultsFile == "" || l.cfg.ResultsFile == "stdout" {
		fmt.Fprintln(os.Stdout, string(data))

		return nil
	}

	return os.WriteFile(l.cfg.ResultsFile, append(data, '\n'), 0o644)
}

func (l *localRunner) Close(context.Context) error {
	return nil
}
