package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scones-unlimited/image-workflows/internal/domain"
	"github.com/scones-unlimited/image-workflows/internal/predictor"
)

// fakePredictor returns canned inferences and records the image it saw
type fakePredictor struct {
	inferences []predictor.Inference
	err        error
	gotImage   []byte
}

func (f *fakePredictor) Predict(_ context.Context, image []byte) ([]predictor.Inference, error) {
	f.gotImage = image
	return f.inferences, f.err
}

func TestClassifier(t *testing.T) {
	image := []byte("not really a png")

	fake := &fakePredictor{
		inferences: []predictor.Inference{
			{Label: "bicycle", Score: 0.93},
			{Label: "motorcycle", Score: 0.07},
		},
	}

	classifier := NewClassifier(fake)

	event := domain.WorkflowEvent{
		ImageData:  base64.StdEncoding.EncodeToString(image),
		S3Bucket:   "test-bucket",
		S3Key:      "test/bicycle_s_000513.png",
		Inferences: []string{},
	}

	out, err := classifier.Run(context.Background(), event)
	require.NoError(t, err)

	// Decoded bytes must reach the endpoint as-is
	assert.Equal(t, image, fake.gotImage)

	assert.Equal(t, []string{"bicycle:0.93", "motorcycle:0.07"}, out.Inferences)

	// Everything but inferences passes through unchanged
	assert.Equal(t, event.ImageData, out.ImageData)
	assert.Equal(t, event.S3Bucket, out.S3Bucket)
	assert.Equal(t, event.S3Key, out.S3Key)
}

func TestClassifierMissingImageData(t *testing.T) {
	classifier := NewClassifier(&fakePredictor{})

	_, err := classifier.Run(context.Background(), domain.WorkflowEvent{})
	assert.ErrorIs(t, err, ErrMissingImageData)
}

func TestClassifierInvalidBase64(t *testing.T) {
	classifier := NewClassifier(&fakePredictor{})

	_, err := classifier.Run(context.Background(), domain.WorkflowEvent{
		ImageData: "not base64!!!",
	})
	assert.Error(t, err)
}

func TestClassifierPredictorError(t *testing.T) {
	sentinel := errors.New("endpoint unavailable")
	classifier := NewClassifier(&fakePredictor{err: sentinel})

	_, err := classifier.Run(context.Background(), domain.WorkflowEvent{
		ImageData: base64.StdEncoding.EncodeToString([]byte("img")),
	})
	assert.ErrorIs(t, err, sentinel)
}
