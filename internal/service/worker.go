package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/scones-unlimited/image-workflows/internal/domain"
)

// WorkerService handles worker business logic
type WorkerService struct {
	workers    domain.WorkerRepository
	executions domain.ExecutionRepository
}

// NewWorkerService creates a new WorkerService
func NewWorkerService(workers domain.WorkerRepository, executions domain.ExecutionRepository) *WorkerService {
	return &WorkerService{
		workers:    workers,
		executions: executions,
	}
}

// Register registers a new worker or updates existing one
func (s *WorkerService) Register(ctx context.Context, workerID string) (*domain.Worker, error) {
	hostname, _ := os.Hostname()

	worker := &domain.Worker{
		ID:            workerID,
		Hostname:      hostname,
		Status:        domain.WorkerStatusIdle,
		LastHeartbeat: time.Now().UTC(),
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.workers.Upsert(ctx, worker); err != nil {
		return nil, fmt.Errorf("failed to register worker: %w", err)
	}

	return worker, nil
}

// Heartbeat updates worker heartbeat and status
func (s *WorkerService) Heartbeat(ctx context.Context, hb *domain.WorkerHeartbeat) error {
	hostname := hb.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}

	worker := &domain.Worker{
		ID:                 hb.WorkerID,
		Hostname:           hostname,
		Status:             hb.Status,
		CurrentExecutionID: hb.CurrentExecutionID,
		CPUPercent:         hb.CPUPercent,
		MemPercent:         hb.MemPercent,
		LastHeartbeat:      time.Now().UTC(),
	}

	return s.workers.Upsert(ctx, worker)
}

// List retrieves all workers
func (s *WorkerService) List(ctx context.Context, params domain.WorkerListParams) ([]*domain.Worker, error) {
	return s.workers.List(ctx, params)
}

// GetByID retrieves a worker by ID
func (s *WorkerService) GetByID(ctx context.Context, id string) (*domain.Worker, error) {
	return s.workers.GetByID(ctx, id)
}

// GetStats retrieves worker statistics
func (s *WorkerService) GetStats(ctx context.Context) (*domain.WorkerStats, error) {
	return s.workers.GetStats(ctx)
}

// ClaimExecution claims a pending execution for a worker
func (s *WorkerService) ClaimExecution(ctx context.Context, workerID string) (*domain.Execution, error) {
	exec, err := s.executions.Claim(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim execution: %w", err)
	}

	if exec == nil {
		return nil, nil // No pending executions
	}

	if err := s.workers.UpdateStatus(ctx, workerID, domain.WorkerStatusBusy); err != nil {
		// Log but don't fail
		fmt.Printf("warning: failed to update worker status: %v\n", err)
	}

	return exec, nil
}

// ReleaseExecution releases an execution back to pending (e.g., worker crashed)
func (s *WorkerService) ReleaseExecution(ctx context.Context, execID uuid.UUID, workerID string) error {
	if err := s.executions.Release(ctx, execID); err != nil {
		return fmt.Errorf("failed to release execution: %w", err)
	}

	if err := s.workers.UpdateStatus(ctx, workerID, domain.WorkerStatusIdle); err != nil {
		fmt.Printf("warning: failed to update worker status: %v\n", err)
	}

	return nil
}

// CompleteExecution marks an execution as completed, stores its result and
// updates worker stats
func (s *WorkerService) CompleteExecution(ctx context.Context, execID uuid.UUID, workerID string, result domain.ExecutionResult) error {
	if err := s.executions.UpdateResult(ctx, execID, result); err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}

	if err := s.executions.UpdateStatus(ctx, execID, domain.ExecutionStatusCompleted); err != nil {
		return fmt.Errorf("failed to complete execution: %w", err)
	}

	if err := s.workers.IncrementStats(ctx, workerID, 1, 1); err != nil {
		fmt.Printf("warning: failed to update worker stats: %v\n", err)
	}

	if err := s.workers.UpdateStatus(ctx, workerID, domain.WorkerStatusIdle); err != nil {
		fmt.Printf("warning: failed to update worker status: %v\n", err)
	}

	return nil
}

// FailExecution marks an execution as failed and updates worker
func (s *WorkerService) FailExecution(ctx context.Context, execID uuid.UUID, workerID string, errMsg string) error {
	exec, err := s.executions.GetByID(ctx, execID)
	if err != nil {
		return err
	}
	if exec == nil {
		return fmt.Errorf("execution not found")
	}

	exec.Status = domain.ExecutionStatusFailed
	exec.ErrorMessage = &errMsg

	if err := s.executions.Update(ctx, exec); err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}

	if err := s.workers.UpdateStatus(ctx, workerID, domain.WorkerStatusIdle); err != nil {
		fmt.Printf("warning: failed to update worker status: %v\n", err)
	}

	return nil
}

// MarkOfflineWorkers marks stale workers as offline
func (s *WorkerService) MarkOfflineWorkers(ctx context.Context) (int, error) {
	timeout := int(domain.HeartbeatTimeout.Seconds())
	return s.workers.MarkOfflineWorkers(ctx, timeout)
}

// ReleaseOrphanedExecutions requeues executions still attached to offline
// workers so another worker can pick them up
func (s *WorkerService) ReleaseOrphanedExecutions(ctx context.Context) (int, error) {
	status := domain.WorkerStatusOffline
	workers, err := s.workers.List(ctx, domain.WorkerListParams{Status: &status})
	if err != nil {
		return 0, fmt.Errorf("failed to list offline workers: %w", err)
	}

	released := 0
	for _, worker := range workers {
		if worker.CurrentExecutionID == nil {
			continue
		}

		if err := s.executions.Release(ctx, *worker.CurrentExecutionID); err != nil {
			fmt.Printf("warning: failed to release execution %s: %v\n", worker.CurrentExecutionID, err)
			continue
		}

		if err := s.workers.ClearCurrentExecution(ctx, worker.ID); err != nil {
			fmt.Printf("warning: failed to clear worker %s execution: %v\n", worker.ID, err)
		}

		released++
	}

	return released, nil
}

// Unregister removes a worker
func (s *WorkerService) Unregister(ctx context.Context, workerID string) error {
	// First check if worker has an execution
	worker, err := s.workers.GetByID(ctx, workerID)
	if err != nil {
		return err
	}

	if worker != nil && worker.CurrentExecutionID != nil {
		// Release the execution back to pending
		if err := s.executions.Release(ctx, *worker.CurrentExecutionID); err != nil {
			fmt.Printf("warning: failed to release execution: %v\n", err)
		}
	}

	return s.workers.Delete(ctx, workerID)
}
