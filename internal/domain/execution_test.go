package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestToExecutionDefaults(t *testing.T) {
	req := &CreateExecutionRequest{
		S3Bucket: "sagemaker-us-east-1-605922365623",
		S3Key:    "test/bicycle_s_000513.png",
	}

	exec := req.ToExecution()

	assert.NotEqual(t, uuid.Nil, exec.ID)
	assert.Equal(t, ExecutionStatusPending, exec.Status)
	assert.Equal(t, "test/bicycle_s_000513.png", exec.Name, "name defaults to the S3 key")
	assert.Equal(t, DefaultThreshold, exec.Config.Threshold)
	assert.False(t, exec.CreatedAt.IsZero())
	assert.Equal(t, exec.CreatedAt, exec.UpdatedAt)
}

func TestToExecutionExplicitValues(t *testing.T) {
	req := &CreateExecutionRequest{
		Name:         "nightly-check",
		S3Bucket:     "images",
		S3Key:        "bike.png",
		EndpointName: "image-classification-endpoint",
		Threshold:    0.93,
		Priority:     10,
	}

	exec := req.ToExecution()

	assert.Equal(t, "nightly-check", exec.Name)
	assert.Equal(t, 0.93, exec.Config.Threshold)
	assert.Equal(t, "image-classification-endpoint", exec.Config.EndpointName)
	assert.Equal(t, 10, exec.Priority)
}

func TestExecutionStatusTransitions(t *testing.T) {
	cancellable := []ExecutionStatus{
		ExecutionStatusPending, ExecutionStatusQueued, ExecutionStatusRunning,
	}
	terminal := []ExecutionStatus{
		ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusCancelled,
	}

	for _, s := range cancellable {
		assert.True(t, s.CanCancel(), "%s should be cancellable", s)
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
	}

	for _, s := range terminal {
		assert.False(t, s.CanCancel(), "%s should not be cancellable", s)
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
	}
}
