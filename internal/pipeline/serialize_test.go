package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scones-unlimited/image-workflows/internal/domain"
	"github.com/scones-unlimited/image-workflows/internal/storage"
)

func TestSerializerPreservesObjectAddress(t *testing.T) {
	dir := t.TempDir()
	store := storage.NewFileStore(dir)

	payload := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
	err := store.Put(context.Background(), "test-bucket", "test/bicycle_s_000513.png", bytes.NewReader(payload))
	require.NoError(t, err)

	serializer := NewSerializer(store)

	out, err := serializer.Run(context.Background(), domain.WorkflowEvent{
		S3Bucket: "test-bucket",
		S3Key:    "test/bicycle_s_000513.png",
	})
	require.NoError(t, err)

	// Key and bucket must pass through unchanged
	assert.Equal(t, "test-bucket", out.S3Bucket)
	assert.Equal(t, "test/bicycle_s_000513.png", out.S3Key)

	assert.Equal(t, base64.StdEncoding.EncodeToString(payload), out.ImageData)

	// Downstream stages expect an empty list, not null
	assert.NotNil(t, out.Inferences)
	assert.Empty(t, out.Inferences)
}

func TestSerializerMissingAddress(t *testing.T) {
	serializer := NewSerializer(storage.NewFileStore(t.TempDir()))

	tests := []struct {
		name  string
		event domain.WorkflowEvent
	}{
		{name: "No bucket", event: domain.WorkflowEvent{S3Key: "a.png"}},
		{name: "No key", event: domain.WorkflowEvent{S3Bucket: "b"}},
		{name: "Empty event", event: domain.WorkflowEvent{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := serializer.Run(context.Background(), tt.event)
			assert.ErrorIs(t, err, ErrMissingObjectAddress)
		})
	}
}

func TestSerializerObjectNotFound(t *testing.T) {
	serializer := NewSerializer(storage.NewFileStore(t.TempDir()))

	_, err := serializer.Run(context.Background(), domain.WorkflowEvent{
		S3Bucket: "test-bucket",
		S3Key:    "missing.png",
	})

	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}
