package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"

	"github.com/scones-unlimited/image-workflows/internal/domain"
	"github.com/scones-unlimited/image-workflows/internal/predictor"
)

// ErrMissingImageData is returned when the event carries no encoded
// payload to classify
var ErrMissingImageData = errors.New("event is missing image_data")

// Classifier decodes the event payload and runs it through the model
// endpoint. Second stage of the workflow.
type Classifier struct {
	predictor predictor.Predictor
}

// NewClassifier creates the classify stage
func NewClassifier(p predictor.Predictor) *Classifier {
	return &Classifier{predictor: p}
}

// Name returns the stage name
func (c *Classifier) Name() string { return "ClassifyImageData" }

// Run decodes image_data, invokes the predictor, and returns the event
// with inferences attached. All other fields pass through unchanged.
func (c *Classifier) Run(ctx context.Context, event domain.WorkflowEvent) (domain.WorkflowEvent, error) {
	if event.ImageData == "" {
		return domain.WorkflowEvent{}, ErrMissingImageData
	}

	image, err := base64.StdEncoding.DecodeString(event.ImageData)
	if err != nil {
		return domain.WorkflowEvent{}, fmt.Errorf("failed to decode image_data: %w", err)
	}

	inferences, err := c.predictor.Predict(ctx, image)
	if err != nil {
		return domain.WorkflowEvent{}, fmt.Errorf("prediction failed: %w", err)
	}

	log.Printf("[Classifier] s3://%s/%s: %d inferences", event.S3Bucket, event.S3Key, len(inferences))

	event.Inferences = predictor.FormatInferences(inferences)

	return event, nil
}
