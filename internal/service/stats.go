package service

import (
	"context"
	"fmt"

	"github.com/scones-unlimited/image-workflows/internal/domain"
)

// StatsService handles statistics aggregation
type StatsService struct {
	executions domain.ExecutionRepository
	workers    domain.WorkerRepository
}

// NewStatsService creates a new StatsService
func NewStatsService(
	executions domain.ExecutionRepository,
	workers domain.WorkerRepository,
) *StatsService {
	return &StatsService{
		executions: executions,
		workers:    workers,
	}
}

// GetStats retrieves aggregated statistics for the dashboard
func (s *StatsService) GetStats(ctx context.Context) (*domain.DashboardStats, error) {
	execStats, err := s.executions.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get execution stats: %w", err)
	}

	workerStats, err := s.workers.GetStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get worker stats: %w", err)
	}

	// Each execution classifies a single image, so terminal executions
	// equal processed images. Failed executions include those rejected
	// by the confidence filter.
	processed := execStats.Completed + execStats.Failed

	passRate := 0.0
	if processed > 0 {
		passRate = float64(execStats.Completed) / float64(processed)
	}

	return &domain.DashboardStats{
		Executions:      execStats,
		Workers:         workerStats,
		ImagesProcessed: processed,
		PassRate:        passRate,
	}, nil
}
