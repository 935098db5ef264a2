// Package lambdarunner serves one of the three workflow handlers as an
// AWS Lambda function. The same binary is deployed three times; the
// -lambda flag (or HANDLER env var) selects which handler to serve.
package lambdarunner

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/scones-unlimited/image-workflows/internal/pipeline"
	"github.com/scones-unlimited/image-workflows/internal/predictor"
	"github.com/scones-unlimited/image-workflows/internal/storage"
	"github.com/scones-unlimited/image-workflows/runner"
)

type lambdaRunner struct {
	cfg  *runner.Config
	step pipeline.Step
}

// New creates a runner serving the handler selected by the config
func New(cfg *runner.Config) (runner.Runner, error) {
	ctx := context.Background()

	var (
		step pipeline.Step
		err  error
	)

	switch strings.ToLower(cfg.LambdaFunction) {
	case "serialize":
		step, err = newSerializeStep(ctx, cfg)
	case "classify":
		step, err = newClassifyStep(ctx, cfg)
	case "filter":
		step = pipeline.NewConfidenceFilter(cfg.Threshold)
	default:
		return nil, fmt.Errorf("unknown lambda function: %s", cfg.LambdaFunction)
	}

	if err != nil {
		return nil, err
	}

	return &lambdaRunner{
		cfg:  cfg,
		step: step,
	}, nil
}

func newSerializeStep(ctx context.Context, cfg *runner.Config) (pipeline.Step, error) {
	store, err := storage.NewS3Store(ctx, storage.S3Config{
		Region:    cfg.AwsRegion,
		AccessKey: cfg.AwsAccessKey,
		SecretKey: cfg.AwsSecretKey,
	})
	if err != nil {
		return nil, err
	}

	return pipeline.NewSerializer(store), nil
}

func newClassifyStep(ctx context.Context, cfg *runner.Config) (pipeline.Step, error) {
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

	return pipeline.NewClassifier(p), nil
}

// Run blocks serving Lambda invocations until the context is cancelled
func (l *lambdaRunner) Run(ctx context.Context) error {
	log.Printf("[LambdaRunner] serving handler %s", l.step.Name())

	lambda.StartWithOptions(pipeline.Handler(l.step), lambda.WithContext(ctx))

	return nil
}

func (l *lambdaRunner) Close(context.Context) error {
	return nil
}
