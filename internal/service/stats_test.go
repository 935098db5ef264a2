package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scones-unlimited/image-workflows/internal/domain"
)

type fakeExecutionRepo struct {
	domain.ExecutionRepository
	stats *domain.ExecutionStats
}

func (f *fakeExecutionRepo) GetStats(_ context.Context) (*domain.ExecutionStats, error) {
	return f.stats, nil
}

type fakeWorkerRepo struct {
	domain.WorkerRepository
	stats *domain.WorkerStats
}

func (f *fakeWorkerRepo) GetStats(_ context.Context) (*domain.WorkerStats, error) {
	return f.stats, nil
}

func TestStatsServicePassRate(t *testing.T) {
	tests := []struct {
		name              string
		execStats         domain.ExecutionStats
		expectedProcessed int
		expectedPassRate  float64
	}{
		{
			name:              "Mixed outcomes",
			execStats:         domain.ExecutionStats{Total: 10, Completed: 6, Failed: 2, Running: 2},
			expectedProcessed: 8,
			expectedPassRate:  0.75,
		},
		{
			name:              "All passed",
			execStats:         domain.ExecutionStats{Total: 3, Completed: 3},
			expectedProcessed: 3,
			expectedPassRate:  1.0,
		},
		{
			name:              "Nothing processed yet",
			execStats:         domain.ExecutionStats{Total: 5, Pending: 5},
			expectedProcessed: 0,
			expectedPassRate:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewStatsService(
				&fakeExecutionRepo{stats: &tt.execStats},
				&fakeWorkerRepo{stats: &domain.WorkerStats{TotalWorkers: 2, OnlineWorkers: 1}},
			)

			stats, err := svc.GetStats(context.Background())
			require.NoError(t, err)

			assert.Equal(t, tt.expectedProcessed, stats.ImagesProcessed)
			assert.Equal(t, tt.expectedPassRate, stats.PassRate)
			assert.Equal(t, &tt.execStats, stats.Executions)
			assert.Equal(t, 2, stats.Workers.TotalWorkers)
		})
	}
}
