package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/scones-unlimited/image-workflows/internal/domain"
	"github.com/scones-unlimited/image-workflows/internal/mq"
	"github.com/scones-unlimited/image-workflows/internal/queue"
	"github.com/scones-unlimited/image-workflows/internal/spawner"
)

// Common errors
var (
	ErrExecutionNotFound       = errors.New("execution not found")
	ErrExecutionNotCancellable = errors.New("execution cannot be cancelled")
)

// ExecutionService handles execution business logic
type ExecutionService struct {
	executions domain.ExecutionRepository
	queue      *queue.Queue    // Redis queue (fallback)
	mqPub      mq.Publisher    // RabbitMQ publisher (preferred)
	spawner    spawner.Spawner // optional auto-spawn on create
}

// SetSpawner enables auto-spawning a worker for each created execution
func (s *ExecutionService) SetSpawner(sp spawner.Spawner) {
	s.spawner = sp
}

// NewExecutionService creates a new ExecutionService
func NewExecutionService(executions domain.ExecutionRepository, q *queue.Queue) *ExecutionService {
	return &ExecutionService{
		executions: executions,
		queue:      q,
	}
}

// NewExecutionServiceWithMQ creates a new ExecutionService with RabbitMQ support.
// This is the preferred constructor for Manager mode with RabbitMQ.
func NewExecutionServiceWithMQ(executions domain.ExecutionRepository, mqPub mq.Publisher) *ExecutionService {
	return &ExecutionService{
		executions: executions,
		mqPub:      mqPub,
	}
}

// Create creates a new execution
func (s *ExecutionService) Create(ctx context.Context, req *domain.CreateExecutionRequest) (*domain.Execution, error) {
	exec := req.ToExecution()

	if err := s.executions.Create(ctx, exec); err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	// Enqueue to RabbitMQ if available (preferred over Redis)
	if s.mqPub != nil {
		msg := &mq.ExecutionMessage{
			ExecutionID: exec.ID,
			Priority:    exec.Priority,
			Type:        "execution:process",
		}
		if err := s.mqPub.Publish(ctx, msg); err != nil {
			log.Printf("[ExecutionService] WARNING: failed to publish execution %s to RabbitMQ: %v", exec.ID, err)
		} else {
			log.Printf("[ExecutionService] Execution %s published to RabbitMQ queue", exec.ID)
		}
	} else if s.queue != nil {
		// Fallback to Redis queue if RabbitMQ not available
		if err := s.queue.Enqueue(ctx, exec.ID, exec.Priority); err != nil {
			// Log error but don't fail creation - worker can still poll
			log.Printf("[ExecutionService] WARNING: failed to enqueue execution %s to Redis: %v", exec.ID, err)
		} else {
			log.Printf("[ExecutionService] Execution %s enqueued to Redis queue", exec.ID)
		}
	}

	if s.spawner != nil {
		// Spawn in the background so slow container/Lambda startup never
		// delays the API response.
		go func() {
			spawnCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			res, err := s.spawner.Spawn(spawnCtx, &spawner.SpawnRequest{
				ExecutionID: exec.ID,
				Priority:    exec.Priority,
			})
			if err != nil {
				log.Printf("[ExecutionService] WARNING: failed to spawn worker for execution %s: %v", exec.ID, err)
				return
			}

			log.Printf("[ExecutionService] Spawned worker for execution %s (worker: %s, status: %s)",
				exec.ID, res.WorkerID, res.Status)
		}()
	}

	return exec, nil
}

// GetByID retrieves an execution by ID
func (s *ExecutionService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error) {
	exec, err := s.executions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	if exec == nil {
		return nil, ErrExecutionNotFound
	}

	return exec, nil
}

// List retrieves executions with optional filtering
func (s *ExecutionService) List(ctx context.Context, params domain.ExecutionListParams) ([]*domain.Execution, int, error) {
	execs, total, err := s.executions.List(ctx, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list executions: %w", err)
	}

	return execs, total, nil
}

// Delete deletes an execution
func (s *ExecutionService) Delete(ctx context.Context, id uuid.UUID) error {
	exec, err := s.executions.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get execution: %w", err)
	}
	if exec == nil {
		return ErrExecutionNotFound
	}

	if exec.Status == domain.ExecutionStatusRunning {
		return errors.New("cannot delete a running execution, cancel it first")
	}

	if err := s.executions.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete execution: %w", err)
	}

	return nil
}

// Cancel cancels an execution
func (s *ExecutionService) Cancel(ctx context.Context, id uuid.UUID) (*domain.Execution, error) {
	exec, err := s.executions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	if exec == nil {
		return nil, ErrExecutionNotFound
	}

	if !exec.Status.CanCancel() {
		return nil, ErrExecutionNotCancellable
	}

	if err := s.executions.UpdateStatus(ctx, id, domain.ExecutionStatusCancelled); err != nil {
		return nil, fmt.Errorf("failed to cancel execution: %w", err)
	}

	exec.Status = domain.ExecutionStatusCancelled
	return exec, nil
}

// Complete marks an execution as completed
func (s *ExecutionService) Complete(ctx context.Context, id uuid.UUID) error {
	return s.executions.UpdateStatus(ctx, id, domain.ExecutionStatusCompleted)
}

// Fail marks an execution as failed with an error message
func (s *ExecutionService) Fail(ctx context.Context, id uuid.UUID, errMsg string) error {
	exec, err := s.executions.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if exec == nil {
		return ErrExecutionNotFound
	}

	exec.Status = domain.ExecutionStatusFailed
	exec.ErrorMessage = &errMsg

	return s.executions.Update(ctx, exec)
}

// UpdateResult stores the workflow output for an execution
func (s *ExecutionService) UpdateResult(ctx context.Context, id uuid.UUID, result domain.ExecutionResult) error {
	return s.executions.UpdateResult(ctx, id, result)
}

// GetStats retrieves execution statistics
func (s *ExecutionService) GetStats(ctx context.Context) (*domain.ExecutionStats, error) {
	return s.executions.GetStats(ctx)
}
