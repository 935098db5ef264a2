package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"

	"github.com/scones-unlimited/image-workflows/internal/domain"
	"github.com/scones-unlimited/image-workflows/internal/storage"
)

// ErrMissingObjectAddress is returned when the event does not name an
// object to serialize
var ErrMissingObjectAddress = errors.New("event is missing s3_bucket or s3_key")

// Serializer fetches the source object and base64 encodes it into the
// event. First stage of the workflow.
type Serializer struct {
	store storage.ObjectStore
}

// NewSerializer creates the serialize stage
func NewSerializer(store storage.ObjectStore) *Serializer {
	return &Serializer{store: store}
}

// Name returns the stage name
func (s *Serializer) Name() string { return "SerializeImageData" }

// Run downloads the object and returns the event with image_data set.
// The storage key and bucket pass through unchanged, and inferences is
// reset to an empty list for the downstream stages.
func (s *Serializer) Run(ctx context.Context, event domain.WorkflowEvent) (domain.WorkflowEvent, error) {
	if event.S3Bucket == "" || event.S3Key == "" {
		return domain.WorkflowEvent{}, ErrMissingObjectAddress
	}

	data, err := s.store.Get(ctx, event.S3Bucket, event.S3Key)
	if err != nil {
		return domain.WorkflowEvent{}, fmt.Errorf("failed to fetch object: %w", err)
	}

	log.Printf("[Serializer] encoded s3://%s/%s (%d bytes)", event.S3Bucket, event.S3Key, len(data))

	return domain.WorkflowEvent{
		ImageData:  base64.StdEncoding.EncodeToString(data),
		S3Bucket:   event.S3Bucket,
		S3Key:      event.S3Key,
		Inferences: []string{},
	}, nil
}
