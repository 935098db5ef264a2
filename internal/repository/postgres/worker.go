package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/scones-unlimited/image-workflows/internal/domain"
)

// WorkerRepository implements domain.WorkerRepository for PostgreSQL
type WorkerRepository struct {
	db *sql.DB
}

// NewWorkerRepository creates a new WorkerRepository
func NewWorkerRepository(db *sql.DB) *WorkerRepository {
	return &WorkerRepository{db: db}
}

// Upsert creates or updates a worker (for heartbeat)
func (r *WorkerRepository) Upsert(ctx context.Context, worker *domain.Worker) error {
	query := `
		INSERT INTO workers (id, hostname, status, current_execution_id, cpu_percent, mem_percent, last_heartbeat, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			hostname = EXCLUDED.hostname,
			status = EXCLUDED.status,
			current_execution_id = EXCLUDED.current_execution_id,
			cpu_percent = EXCLUDED.cpu_percent,
			mem_percent = EXCLUDED.mem_percent,
			last_heartbeat = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		worker.ID, worker.Hostname, worker.Status, worker.CurrentExecutionID,
		worker.CPUPercent, worker.MemPercent)
	return err
}

// GetByID retrieves a worker by ID
func (r *WorkerRepository) GetByID(ctx context.Context, id string) (*domain.Worker, error) {
	query := `
		SELECT
			w.id, w.hostname, w.status, w.current_execution_id,
			w.executions_completed, w.images_processed,
			w.cpu_percent, w.mem_percent, w.last_heartbeat, w.created_at,
			e.name as execution_name
		FROM workers w
		LEFT JOIN executions e ON w.current_execution_id = e.id
		WHERE w.id = $1
	`

	worker := &domain.Worker{}
	var currentExecutionID *uuid.UUID

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&worker.ID, &worker.Hostname, &worker.Status, &currentExecutionID,
		&worker.ExecutionsCompleted, &worker.ImagesProcessed,
		&worker.CPUPercent, &worker.MemPercent, &worker.LastHeartbeat, &worker.CreatedAt,
		&worker.CurrentExecutionName,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	worker.CurrentExecutionID = currentExecutionID
	return worker, nil
}

// List retrieves all workers
func (r *WorkerRepository) List(ctx context.Context, params domain.WorkerListParams) ([]*domain.Worker, error) {
	query := `
		SELECT
			w.id, w.hostname, w.status, w.current_execution_id,
			w.executions_completed, w.images_processed,
			w.cpu_percent, w.mem_percent, w.last_heartbeat, w.created_at,
			e.name as execution_name
		FROM workers w
		LEFT JOIN executions e ON w.current_execution_id = e.id
	`

	var args []interface{}
	if params.Status != nil {
		query += " WHERE w.status = $1"
		args = append(args, *params.Status)
	}

	query += " ORDER BY w.last_heartbeat DESC"

	if params.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", params.Limit)
	}
	if params.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", params.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []*domain.Worker
	for rows.Next() {
		worker := &domain.Worker{}
		var currentExecutionID *uuid.UUID

		err := rows.Scan(
			&worker.ID, &worker.Hostname, &worker.Status, &currentExecutionID,
			&worker.ExecutionsCompleted, &worker.ImagesProcessed,
			&worker.CPUPercent, &worker.MemPercent, &worker.LastHeartbeat, &worker.CreatedAt,
			&worker.CurrentExecutionName,
		)
		if err != nil {
			return nil, err
		}

		worker.CurrentExecutionID = currentExecutionID
		workers = append(workers, worker)
	}

	return workers, rows.Err()
}

// Delete deletes a worker by ID
func (r *WorkerRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM workers WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// UpdateStatus updates only the status of a worker
func (r *WorkerRepository) UpdateStatus(ctx context.Context, id string, status domain.WorkerStatus) error {
	query := `UPDATE workers SET status = $1, last_heartbeat = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, status, id)
	return err
}

// ClearCurrentExecution detaches a worker from its current execution
func (r *WorkerRepository) ClearCurrentExecution(ctx context.Context, id string) error {
	query := `UPDATE workers SET current_execution_id = NULL WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// MarkOfflineWorkers marks workers as offline if heartbeat is stale
func (r *WorkerRepository) MarkOfflineWorkers(ctx context.Context, timeout int) (int, error) {
	query := `
		UPDATE workers
		SET status = 'offline'
		WHERE status != 'offline'
		AND last_heartbeat < NOW() - ($1 || ' seconds')::INTERVAL
	`

	result, err := r.db.ExecContext(ctx, query, fmt.Sprintf("%d", timeout))
	if err != nil {
		return 0, err
	}

	rows, err := result.RowsAffected()
	return int(rows), err
}

// GetStats retrieves worker statistics
func (r *WorkerRepository) GetStats(ctx context.Context) (*domain.WorkerStats, error) {
	query := `
		SELECT
			COUNT(*) as total,
			COUNT(*) FILTER (WHERE status != 'offline') as online,
			COUNT(*) FILTER (WHERE status = 'busy') as busy,
			COUNT(*) FILTER (WHERE status = 'idle') as idle
		FROM workers
	`

	stats := &domain.WorkerStats{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.TotalWorkers, &stats.OnlineWorkers, &stats.BusyWorkers, &stats.IdleWorkers,
	)

	return stats, err
}

// IncrementStats increments worker statistics
func (r *WorkerRepository) IncrementStats(ctx context.Context, id string, executionsCompleted, imagesProcessed int) error {
	query := `
		UPDATE workers SET
			executions_completed = executions_completed + $1,
			images_processed = images_processed + $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, executionsCompleted, imagesProcessed, id)
	return err
}
