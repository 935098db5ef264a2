package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/scones-unlimited/image-workflows/internal/domain"
)

// ExecutionRepository implements domain.ExecutionRepository for PostgreSQL
type ExecutionRepository struct {
	db *sql.DB
}

// NewExecutionRepository creates a new ExecutionRepository
func NewExecutionRepository(db *sql.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// Create creates a new execution
func (r *ExecutionRepository) Create(ctx context.Context, exec *domain.Execution) error {
	query := `
		INSERT INTO executions (
			id, name, status, priority,
			s3_bucket, s3_key, endpoint_name, threshold,
			inferences, top_score, passed,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11,
			$12, $13
		)
	`

	_, err := r.db.ExecContext(ctx, query,
		exec.ID, exec.Name, exec.Status, exec.Priority,
		exec.Config.S3Bucket, exec.Config.S3Key, exec.Config.EndpointName, exec.Config.Threshold,
		pq.Array(exec.Result.Inferences), exec.Result.TopScore, exec.Result.Passed,
		exec.CreatedAt, exec.UpdatedAt,
	)

	return err
}

const executionColumns = `
	id, name, status, priority,
	s3_bucket, s3_key, endpoint_name, threshold,
	inferences, top_score, passed,
	worker_id, created_at, updated_at, started_at, completed_at,
	error_message
`

type executionScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row executionScanner) (*domain.Execution, error) {
	exec := &domain.Execution{}
	var workerID sql.NullString
	var startedAt, completedAt sql.NullTime
	var errorMessage sql.NullString

	err := row.Scan(
		&exec.ID, &exec.Name, &exec.Status, &exec.Priority,
		&exec.Config.S3Bucket, &exec.Config.S3Key, &exec.Config.EndpointName, &exec.Config.Threshold,
		pq.Array(&exec.Result.Inferences), &exec.Result.TopScore, &exec.Result.Passed,
		&workerID, &exec.CreatedAt, &exec.UpdatedAt, &startedAt, &completedAt,
		&errorMessage,
	)
	if err != nil {
		return nil, err
	}

	if workerID.Valid {
		exec.WorkerID = &workerID.String
	}
	if startedAt.Valid {
		exec.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		exec.CompletedAt = &completedAt.Time
	}
	if errorMessage.Valid {
		exec.ErrorMessage = &errorMessage.String
	}

	return exec, nil
}

// GetByID retrieves an execution by ID
func (r *ExecutionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error) {
	query := fmt.Sprintf("SELECT %s FROM executions WHERE id = $1", executionColumns)

	exec, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return exec, nil
}

// List retrieves executions with optional filtering
func (r *ExecutionRepository) List(ctx context.Context, params domain.ExecutionListParams) ([]*domain.Execution, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *params.Status)
		argPos++
	}

	if params.WorkerID != nil {
		conditions = append(conditions, fmt.Sprintf("worker_id = $%d", argPos))
		args = append(args, *params.WorkerID)
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM executions %s", whereClause)
	var total int
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	orderBy := "created_at"
	if params.OrderBy != "" {
		orderBy = params.OrderBy
	}
	orderDir := "DESC"
	if params.OrderDir != "" {
		orderDir = params.OrderDir
	}

	limit := 20
	if params.Limit > 0 {
		limit = params.Limit
	}
	offset := params.Offset

	query := fmt.Sprintf(`
		SELECT %s
		FROM executions
		%s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, executionColumns, whereClause, orderBy, orderDir, argPos, argPos+1)

	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var execs []*domain.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, 0, err
		}
		execs = append(execs, exec)
	}

	return execs, total, rows.Err()
}

// Update updates an execution
func (r *ExecutionRepository) Update(ctx context.Context, exec *domain.Execution) error {
	query := `
		UPDATE executions SET
			name = $1, status = $2, priority = $3,
			s3_bucket = $4, s3_key = $5, endpoint_name = $6, threshold = $7,
			inferences = $8, top_score = $9, passed = $10,
			worker_id = $11, started_at = $12, completed_at = $13,
			error_message = $14, updated_at = NOW()
		WHERE id = $15
	`

	_, err := r.db.ExecContext(ctx, query,
		exec.Name, exec.Status, exec.Priority,
		exec.Config.S3Bucket, exec.Config.S3Key, exec.Config.EndpointName, exec.Config.Threshold,
		pq.Array(exec.Result.Inferences), exec.Result.TopScore, exec.Result.Passed,
		exec.WorkerID, exec.StartedAt, exec.CompletedAt,
		exec.ErrorMessage,
		exec.ID,
	)

	return err
}

// Delete deletes an execution by ID
func (r *ExecutionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM executions WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	return nil
}

// UpdateStatus updates only the status of an execution
func (r *ExecutionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ExecutionStatus) error {
	var query string

	switch status {
	case domain.ExecutionStatusRunning:
		query = `UPDATE executions SET status = $1, started_at = NOW(), updated_at = NOW() WHERE id = $2`
	case domain.ExecutionStatusCompleted, domain.ExecutionStatusFailed, domain.ExecutionStatusCancelled:
		query = `UPDATE executions SET status = $1, completed_at = NOW(), worker_id = NULL, updated_at = NOW() WHERE id = $2`
	default:
		query = `UPDATE executions SET status = $1, updated_at = NOW() WHERE id = $2`
	}

	_, err := r.db.ExecContext(ctx, query, status, id)
	return err
}

// UpdateResult stores the workflow output for an execution
func (r *ExecutionRepository) UpdateResult(ctx context.Context, id uuid.UUID, result domain.ExecutionResult) error {
	query := `
		UPDATE executions SET
			inferences = $1,
			top_score = $2,
			passed = $3,
			updated_at = NOW()
		WHERE id = $4
	`

	_, err := r.db.ExecContext(ctx, query,
		pq.Array(result.Inferences), result.TopScore, result.Passed, id)
	return err
}

// Claim claims a pending execution for a worker (atomic via row locking)
func (r *ExecutionRepository) Claim(ctx context.Context, workerID string) (*domain.Execution, error) {
	query := fmt.Sprintf(`
		UPDATE executions SET
			status = 'running',
			worker_id = $1,
			started_at = NOW(),
			updated_at = NOW()
		WHERE id = (
			SELECT id FROM executions
			WHERE status = 'pending'
			ORDER BY priority DESC, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s
	`, executionColumns)

	exec, err := scanExecution(r.db.QueryRowContext(ctx, query, workerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // No pending executions
	}
	if err != nil {
		return nil, err
	}

	return exec, nil
}

// Release releases an execution back to pending status
func (r *ExecutionRepository) Release(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE executions SET
			status = 'pending',
			worker_id = NULL,
			started_at = NULL,
			updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// GetStats retrieves execution statistics
func (r *ExecutionRepository) GetStats(ctx context.Context) (*domain.ExecutionStats, error) {
	query := `
		SELECT
			COUNT(*) as total,
			COUNT(*) FILTER (WHERE status = 'pending') as pending,
			COUNT(*) FILTER (WHERE status = 'queued') as queued,
			COUNT(*) FILTER (WHERE status = 'running') as running,
			COUNT(*) FILTER (WHERE status = 'completed') as completed,
			COUNT(*) FILTER (WHERE status = 'failed') as failed,
			COUNT(*) FILTER (WHERE status = 'cancelled') as cancelled
		FROM executions
	`

	stats := &domain.ExecutionStats{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Total, &stats.Pending, &stats.Queued, &stats.Running,
		&stats.Completed, &stats.Failed, &stats.Cancelled,
	)

	return stats, err
}
