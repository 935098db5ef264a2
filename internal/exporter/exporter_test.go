package exporter

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scones-unlimited/image-workflows/internal/domain"
)

func TestSelectColumns(t *testing.T) {
	tests := []struct {
		name      string
		requested string
		expected  []string
	}{
		{
			name:      "Empty request falls back to defaults",
			requested: "",
			expected:  DefaultColumns,
		},
		{
			name:      "Request order is preserved",
			requested: "Status,ID,Passed",
			expected:  []string{"Status", "ID", "Passed"},
		},
		{
			name:      "Unknown columns are dropped",
			requested: "ID,Bogus,Name",
			expected:  []string{"ID", "Name"},
		},
		{
			name:      "Only unknown columns fall back to defaults",
			requested: "Bogus,AlsoBogus",
			expected:  DefaultColumns,
		},
		{
			name:      "Whitespace is trimmed",
			requested: " ID , Name ",
			expected:  []string{"ID", "Name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SelectColumns(tt.requested))
		})
	}
}

func TestWriteCSV(t *testing.T) {
	workerID := "worker-1"
	completedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	exec := &domain.Execution{
		ID:     uuid.New(),
		Name:   "bike.png",
		Status: domain.ExecutionStatusCompleted,
		Config: domain.ExecutionConfig{
			S3Bucket:  "images",
			S3Key:     "bike.png",
			Threshold: 0.70,
		},
		Result: domain.ExecutionResult{
			Inferences: []string{"bicycle:0.93", "motorcycle:0.07"},
			TopScore:   0.93,
			Passed:     true,
		},
		WorkerID:    &workerID,
		CompletedAt: &completedAt,
	}

	var buf bytes.Buffer
	err := WriteCSV(&buf, []*domain.Execution{exec}, []string{"ID", "Status", "Top Score", "Passed", "Worker"})
	require.NoError(t, err)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, []string{"ID", "Status", "Top Score", "Passed", "Worker"}, records[0])
	assert.Equal(t, []string{exec.ID.String(), "completed", "0.9300", "yes", "worker-1"}, records[1])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, nil, []string{"ID", "Name"})
	require.NoError(t, err)

	assert.Equal(t, "ID,Name\n", buf.String())
}
