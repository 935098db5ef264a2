package domain

import (
	"context"

	"github.com/google/uuid"
)

// ExecutionRepository defines the interface for execution persistence
type ExecutionRepository interface {
	// Create creates a new execution
	Create(ctx context.Context, exec *Execution) error

	// GetByID retrieves an execution by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Execution, error)

	// List retrieves executions with optional filtering
	List(ctx context.Context, params ExecutionListParams) ([]*Execution, int, error)

	// Update updates an execution
	Update(ctx context.Context, exec *Execution) error

	// Delete deletes an execution by ID
	Delete(ctx context.Context, id uuid.UUID) error

	// UpdateStatus updates only the status of an execution
	UpdateStatus(ctx context.Context, id uuid.UUID, status ExecutionStatus) error

	// UpdateResult stores the workflow output for an execution
	UpdateResult(ctx context.Context, id uuid.UUID, result ExecutionResult) error

	// Claim claims a pending execution for a worker (atomic operation)
	Claim(ctx context.Context, workerID string) (*Execution, error)

	// Release releases an execution back to pending status
	Release(ctx context.Context, id uuid.UUID) error

	// GetStats retrieves execution statistics
	GetStats(ctx context.Context) (*ExecutionStats, error)
}

// WorkerRepository defines the interface for worker persistence
type WorkerRepository interface {
	// Upsert creates or updates a worker (for heartbeat)
	Upsert(ctx context.Context, worker *Worker) error

	// GetByID retrieves a worker by ID
	GetByID(ctx context.Context, id string) (*Worker, error)

	// List retrieves all workers
	List(ctx context.Context, params WorkerListParams) ([]*Worker, error)

	// Delete deletes a worker by ID
	Delete(ctx context.Context, id string) error

	// UpdateStatus updates only the status of a worker
	UpdateStatus(ctx context.Context, id string, status WorkerStatus) error

	// ClearCurrentExecution detaches a worker from its current execution
	ClearCurrentExecution(ctx context.Context, id string) error

	// MarkOfflineWorkers marks workers as offline if heartbeat is stale
	MarkOfflineWorkers(ctx context.Context, timeout int) (int, error)

	// GetStats retrieves worker statistics
	GetStats(ctx context.Context) (*WorkerStats, error)

	// IncrementStats increments worker statistics
	IncrementStats(ctx context.Context, id string, executionsCompleted, imagesProcessed int) error
}
