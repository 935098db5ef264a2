package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/scones-unlimited/image-workflows/internal/domain"
)

func TestConfidenceFilter(t *testing.T) {
	tests := []struct {
		name        string
		threshold   float64
		inferences  []string
		expectedErr error
	}{
		{
			name:       "Single value above threshold",
			inferences: []string{"bicycle:0.93"},
		},
		{
			name:       "Value exactly at threshold",
			inferences: []string{"bicycle:0.70"},
		},
		{
			name:        "All values below threshold",
			inferences:  []string{"bicycle:0.69", "motorcycle:0.31"},
			expectedErr: ErrThresholdNotMet,
		},
		{
			name:       "One of many above threshold",
			inferences: []string{"motorcycle:0.05", "bicycle:0.95"},
		},
		{
			name:       "Comma-joined entries",
			inferences: []string{"bicycle:0.12,motorcycle:0.88"},
		},
		{
			name:       "Bare float scores",
			inferences: []string{"0.93", "0.07"},
		},
		{
			name:        "Empty inferences",
			inferences:  []string{},
			expectedErr: ErrThresholdNotMet,
		},
		{
			name:       "Custom threshold",
			threshold:  0.90,
			inferences: []string{"bicycle:0.95"},
		},
		{
			name:        "Custom threshold rejects default pass",
			threshold:   0.90,
			inferences:  []string{"bicycle:0.85"},
			expectedErr: ErrThresholdNotMet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := NewConfidenceFilter(tt.threshold)

			event := domain.WorkflowEvent{
				Inferences: tt.inferences,
				S3Bucket:   "sagemaker-us-east-1-605922365623",
				S3Key:      "test/bicycle_s_000513.png",
			}

			out, err := filter.Run(context.Background(), event)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, event, out, "filter must pass the event through unchanged")
		})
	}
}

func TestConfidenceFilterMalformedEntries(t *testing.T) {
	filter := NewConfidenceFilter(0)

	_, err := filter.Run(context.Background(), domain.WorkflowEvent{
		Inferences: []string{"bicycle:not-a-number"},
	})

	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrThresholdNotMet)
}

func TestConfidenceFilterDefaultThreshold(t *testing.T) {
	filter := NewConfidenceFilter(0)
	assert.Equal(t, 0.70, filter.Threshold())
}

func TestTopScore(t *testing.T) {
	event := domain.WorkflowEvent{
		Inferences: []string{"bicycle:0.93", "motorcycle:0.07"},
	}

	assert.Equal(t, 0.93, TopScore(event))
	assert.Equal(t, float64(0), TopScore(domain.WorkflowEvent{}))
}
