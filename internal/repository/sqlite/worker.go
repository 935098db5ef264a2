package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/scones-unlimited/image-workflows/internal/domain"
)

// WorkerRepository implements domain.WorkerRepository for SQLite
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
		INSERT INTO workers (
			id, hostname, status, current_execution_id,
			executions_completed, images_processed,
			cpu_percent, mem_percent, last_heartbeat, created_at
		) VALUES (?, ?, ?, ?, 0, 0, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			hostname = excluded.hostname,
			status = excluded.status,
			current_execution_id = excluded.current_execution_id,
			cpu_percent = excluded.cpu_percent,
			mem_percent = excluded.mem_percent,
			last_heartbeat = excluded.last_heartbeat
	`

	execID := sql.NullString{}
	if worker.CurrentExecutionID != nil {
		execID.String = worker.CurrentExecutionID.String()
		execID.Valid = true
	}

	now := time.Now().UTC().Format(time.RFC3339)

	_, err := r.db.ExecContext(ctx, query,
		worker.ID, worker.Hostname, worker.Status, execID,
		worker.CPUPercent, worker.MemPercent, now, now,
	)

	return err
}

// GetByID retrieves a worker by ID
func (r *WorkerRepository) GetByID(ctx context.Context, id string) (*domain.Worker, error) {
	query := `
		SELECT
			w.id, w.hostname, w.status, w.current_execution_id,
			w.executions_completed, w.images_processed,
			w.cpu_percent, w.mem_percent, w.last_heartbeat, w.created_at,
			e.name
		FROM workers w
		LEFT JOIN executions e ON w.current_execution_id = e.id
		WHERE w.id = ?
	`

	worker := &domain.Worker{}
	var currentExecID sql.NullString
	var currentExecName sql.NullString
	var lastHeartbeatStr, createdAtStr string

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&worker.ID, &worker.Hostname, &worker.Status, &currentExecID,
		&worker.ExecutionsCompleted, &worker.ImagesProcessed,
		&worker.CPUPercent, &worker.MemPercent, &lastHeartbeatStr, &createdAtStr,
		&currentExecName,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if currentExecID.Valid {
		uid, err := uuid.Parse(currentExecID.String)
		if err == nil {
			worker.CurrentExecutionID = &uid
		}
	}
	if currentExecName.Valid {
		worker.CurrentExecutionName = &currentExecName.String
	}

	worker.LastHeartbeat, _ = time.Parse(time.RFC3339, lastHeartbeatStr)
	worker.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)

	return worker, nil
}

// List retrieves all workers
func (r *WorkerRepository) List(ctx context.Context, params domain.WorkerListParams) ([]*domain.Worker, error) {
	query := `
		SELECT
			w.id, w.hostname, w.status, w.current_execution_id,
			w.executions_completed, w.images_processed,
			w.cpu_percent, w.mem_percent, w.last_heartbeat, w.created_at,
			e.name
		FROM workers w
		LEFT JOIN executions e ON w.current_execution_id = e.id
	`

	var args []interface{}
	if params.Status != nil {
		query += " WHERE w.status = ?"
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
		var currentExecID sql.NullString
		var currentExecName sql.NullString
		var lastHeartbeatStr, createdAtStr string

		err := rows.Scan(
			&worker.ID, &worker.Hostname, &worker.Status, &currentExecID,
			&worker.ExecutionsCompleted, &worker.ImagesProcessed,
			&worker.CPUPercent, &worker.MemPercent, &lastHeartbeatStr, &createdAtStr,
			&currentExecName,
		)
		if err != nil {
			return nil, err
		}

		if currentExecID.Valid {
			uid, err := uuid.Parse(currentExecID.String)
			if err == nil {
				worker.CurrentExecutionID = &uid
			}
		}
		if currentExecName.Valid {
			worker.CurrentExecutionName = &currentExecName.String
		}

		worker.LastHeartbeat, _ = time.Parse(time.RFC3339, lastHeartbeatStr)
		worker.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)

		workers = append(workers, worker)
	}

	return workers, rows.Err()
}

// Delete deletes a worker by ID
func (r *WorkerRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM workers WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// UpdateStatus updates only the status of a worker
func (r *WorkerRepository) UpdateStatus(ctx context.Context, id string, status domain.WorkerStatus) error {
	query := `UPDATE workers SET status = ?, last_heartbeat = ? WHERE id = ?`
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx, query, status, now, id)
	return err
}

// ClearCurrentExecution detaches a worker from its current execution
func (r *WorkerRepository) ClearCurrentExecution(ctx context.Context, id string) error {
	query := `UPDATE workers SET current_execution_id = NULL WHERE id = ?`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// MarkOfflineWorkers marks workers as offline if heartbeat is stale
func (r *WorkerRepository) MarkOfflineWorkers(ctx context.Context, timeout int) (int, error) {
	query := `
		UPDATE workers
		SET status = 'offline'
		WHERE status != 'offline'
		AND datetime(last_heartbeat) < datetime('now', '-' || ? || ' seconds')
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
			SUM(CASE WHEN status != 'offline' THEN 1 ELSE 0 END) as online,
			SUM(CASE WHEN status = 'busy' THEN 1 ELSE 0 END) as busy,
			SUM(CASE WHEN status = 'idle' THEN 1 ELSE 0 END) as idle
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
			executions_completed = executions_completed + ?,
			images_processed = images_processed + ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query, executionsCompleted, imagesProcessed, id)
	return err
}
