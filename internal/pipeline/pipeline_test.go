package pipeline

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scones-unlimited/image-workflows/internal/domain"
	"github.com/scones-unlimited/image-workflows/internal/predictor"
	"github.com/scones-unlimited/image-workflows/internal/storage"
)

func TestChainEndToEnd(t *testing.T) {
	store := storage.NewFileStore(t.TempDir())

	err := store.Put(context.Background(), "test-bucket", "test/bicycle_s_000513.png",
		bytes.NewReader([]byte("fake image bytes")))
	require.NoError(t, err)

	fake := &fakePredictor{
		inferences: []predictor.Inference{
			{Label: "bicycle", Score: 0.93},
			{Label: "motorcycle", Score: 0.07},
		},
	}

	out, err := Chain(context.Background(),
		domain.WorkflowEvent{
			S3Bucket: "test-bucket",
			S3Key:    "test/bicycle_s_000513.png",
		},
		NewSerializer(store),
		NewClassifier(fake),
		NewConfidenceFilter(0),
	)
	require.NoError(t, err)

	assert.Equal(t, "test-bucket", out.S3Bucket)
	assert.Equal(t, "test/bicycle_s_000513.png", out.S3Key)
	assert.Equal(t, []string{"bicycle:0.93", "motorcycle:0.07"}, out.Inferences)
	assert.NotEmpty(t, out.ImageData)
}

func TestChainStopsOnLowConfidence(t *testing.T) {
	store := storage.NewFileStore(t.TempDir())

	err := store.Put(context.Background(), "test-bucket", "blurry.png",
		bytes.NewReader([]byte("fake image bytes")))
	require.NoError(t, err)

	fake := &fakePredictor{
		inferences: []predictor.Inference{
			{Label: "bicycle", Score: 0.51},
			{Label: "motorcycle", Score: 0.49},
		},
	}

	_, err = Chain(context.Background(),
		domain.WorkflowEvent{S3Bucket: "test-bucket", S3Key: "blurry.png"},
		NewSerializer(store),
		NewClassifier(fake),
		NewConfidenceFilter(0),
	)

	assert.ErrorIs(t, err, ErrThresholdNotMet)
}

func TestHandlerEnvelope(t *testing.T) {
	filter := NewConfidenceFilter(0)
	handler := Handler(filter)

	event := domain.WorkflowEvent{
		Inferences: []string{"bicycle:0.93"},
		S3Bucket:   "test-bucket",
		S3Key:      "a.png",
	}

	resp, err := handler(context.Background(), event)
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, event, resp.Body)
}

func TestHandlerPropagatesError(t *testing.T) {
	handler := Handler(NewConfidenceFilter(0))

	_, err := handler(context.Background(), domain.WorkflowEvent{
		Inferences: []string{"bicycle:0.10"},
	})

	assert.ErrorIs(t, err, ErrThresholdNotMet)
}
