package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/scones-unlimited/image-workflows/internal/domain"
)

// ExecutionRepository implements domain.ExecutionRepository for SQLite
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
			?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?, ?,
			?, ?
		)
	`

	inferencesJSON, err := json.Marshal(exec.Result.Inferences)
	if err != nil {
		return fmt.Errorf("failed to marshal inferences: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		exec.ID.String(), exec.Name, exec.Status, exec.Priority,
		exec.Config.S3Bucket, exec.Config.S3Key, exec.Config.EndpointName, exec.Config.Threshold,
		string(inferencesJSON), exec.Result.TopScore, exec.Result.Passed,
		exec.CreatedAt.Format(time.RFC3339), exec.UpdatedAt.Format(time.RFC3339),
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
	var idStr, statusStr string
	var inferencesJSON string
	var workerID sql.NullString
	var createdAtStr, updatedAtStr string
	var startedAtStr, completedAtStr sql.NullString
	var errorMessage sql.NullString

	err := row.Scan(
		&idStr, &exec.Name, &statusStr, &exec.Priority,
		&exec.Config.S3Bucket, &exec.Config.S3Key, &exec.Config.EndpointName, &exec.Config.Threshold,
		&inferencesJSON, &exec.Result.TopScore, &exec.Result.Passed,
		&workerID, &createdAtStr, &updatedAtStr, &startedAtStr, &completedAtStr,
		&errorMessage,
	)
	if err != nil {
		return nil, err
	}

	exec.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse execution ID: %w", err)
	}

	exec.Status = domain.ExecutionStatus(statusStr)

	if inferencesJSON != "" {
		if err := json.Unmarshal([]byte(inferencesJSON), &exec.Result.Inferences); err != nil {
			return nil, fmt.Errorf("failed to unmarshal inferences: %w", err)
		}
	}

	if workerID.Valid {
		exec.WorkerID = &workerID.String
	}

	exec.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
	exec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAtStr)

	if startedAtStr.Valid {
		t, _ := time.Parse(time.RFC3339, startedAtStr.String)
		exec.StartedAt = &t
	}

	if completedAtStr.Valid {
		t, _ := time.Parse(time.RFC3339, completedAtStr.String)
		exec.CompletedAt = &t
	}

	if errorMessage.Valid {
		exec.ErrorMessage = &errorMessage.String
	}

	return exec, nil
}

// GetByID retrieves an execution by ID
func (r *ExecutionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error) {
	query := fmt.Sprintf("SELECT %s FROM executions WHERE id = ?", executionColumns)

	exec, err := scanExecution(r.db.QueryRowContext(ctx, query, id.String()))
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

	if params.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, *params.Status)
	}

	if params.WorkerID != nil {
		conditions = append(conditions, "worker_id = ?")
		args = append(args, *params.WorkerID)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Count query
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM executions %s", whereClause)
	var total int
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	// Order
	orderBy := "created_at"
	if params.OrderBy != "" {
		orderBy = params.OrderBy
	}
	orderDir := "DESC"
	if params.OrderDir != "" {
		orderDir = params.OrderDir
	}

	// Limit & offset
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
		LIMIT ? OFFSET ?
	`, executionColumns, whereClause, orderBy, orderDir)

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
			name = ?, status = ?, priority = ?,
			s3_bucket = ?, s3_key = ?, endpoint_name = ?, threshold = ?,
			inferences = ?, top_score = ?, passed = ?,
			worker_id = ?, started_at = ?, completed_at = ?,
			error_message = ?, updated_at = ?
		WHERE id = ?
	`

	inferencesJSON, _ := json.Marshal(exec.Result.Inferences)

	var startedAtStr, completedAtStr interface{}
	if exec.StartedAt != nil {
		startedAtStr = exec.StartedAt.Format(time.RFC3339)
	}
	if exec.CompletedAt != nil {
		completedAtStr = exec.CompletedAt.Format(time.RFC3339)
	}

	_, err := r.db.ExecContext(ctx, query,
		exec.Name, exec.Status, exec.Priority,
		exec.Config.S3Bucket, exec.Config.S3Key, exec.Config.EndpointName, exec.Config.Threshold,
		string(inferencesJSON), exec.Result.TopScore, exec.Result.Passed,
		exec.WorkerID, startedAtStr, completedAtStr,
		exec.ErrorMessage, time.Now().UTC().Format(time.RFC3339),
		exec.ID.String(),
	)

	return err
}

// Delete deletes an execution by ID
func (r *ExecutionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM executions WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, id.String())
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
	now := time.Now().UTC().Format(time.RFC3339)

	switch status {
	case domain.ExecutionStatusRunning:
		query = `UPDATE executions SET status = ?, started_at = ?, updated_at = ? WHERE id = ?`
		_, err := r.db.ExecContext(ctx, query, status, now, now, id.String())
		return err
	case domain.ExecutionStatusCompleted, domain.ExecutionStatusFailed, domain.ExecutionStatusCancelled:
		query = `UPDATE executions SET status = ?, completed_at = ?, worker_id = NULL, updated_at = ? WHERE id = ?`
		_, err := r.db.ExecContext(ctx, query, status, now, now, id.String())
		return err
	default:
		query = `UPDATE executions SET status = ?, updated_at = ? WHERE id = ?`
		_, err := r.db.ExecContext(ctx, query, status, now, id.String())
		return err
	}
}

// UpdateResult stores the workflow output for an execution
func (r *ExecutionRepository) UpdateResult(ctx context.Context, id uuid.UUID, result domain.ExecutionResult) error {
	query := `
		UPDATE executions SET
			inferences = ?,
			top_score = ?,
			passed = ?,
			updated_at = ?
		WHERE id = ?
	`

	inferencesJSON, err := json.Marshal(result.Inferences)
	if err != nil {
		return fmt.Errorf("failed to marshal inferences: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)

	_, err = r.db.ExecContext(ctx, query,
		string(inferencesJSON), result.TopScore, result.Passed, now, id.String())
	return err
}

// Claim claims a pending execution for a worker (atomic operation using transaction)
func (r *ExecutionRepository) Claim(ctx context.Context, workerID string) (*domain.Execution, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Find the first pending execution
	selectQuery := `
		SELECT id FROM executions
		WHERE status = 'pending'
		ORDER BY priority DESC, created_at ASC
		LIMIT 1
	`

	var execIDStr string
	err = tx.QueryRowContext(ctx, selectQuery).Scan(&execIDStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // No pending executions
	}
	if err != nil {
		return nil, err
	}

	updateQuery := `
		UPDATE executions SET
			status = 'running',
			worker_id = ?,
			started_at = ?,
			updated_at = ?
		WHERE id = ? AND status = 'pending'
	`
	now := time.Now().UTC().Format(time.RFC3339)

	res, err := tx.ExecContext(ctx, updateQuery, workerID, now, now, execIDStr)
	if err != nil {
		return nil, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		// Claimed by another worker between select and update
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	execID, _ := uuid.Parse(execIDStr)
	return r.GetByID(ctx, execID)
}

// Release releases an execution back to pending status
func (r *ExecutionRepository) Release(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE executions SET
			status = 'pending',
			worker_id = NULL,
			started_at = NULL,
			updated_at = ?
		WHERE id = ?
	`
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := r.db.ExecContext(ctx, query, now, id.String())
	return err
}

// GetStats retrieves execution statistics
func (r *ExecutionRepository) GetStats(ctx context.Context) (*domain.ExecutionStats, error) {
	query := `
		SELECT
			COUNT(*) as total,
			SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END) as pending,
			SUM(CASE WHEN status = 'queued' THEN 1 ELSE 0 END) as queued,
			SUM(CASE WHEN status = 'running' THEN 1 ELSE 0 END) as running,
			SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) as completed,
			SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END) as failed,
			SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END) as cancelled
		FROM executions
	`

	stats := &domain.ExecutionStats{}
	err := r.db.QueryRowContext(ctx, query).Scan(
		&stats.Total, &stats.Pending, &stats.Queued, &stats.Running,
		&stats.Completed, &stats.Failed, &stats.Cancelled,
	)

	return stats, err
}
