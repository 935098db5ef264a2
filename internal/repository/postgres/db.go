package postgres

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenConnection opens a PostgreSQL connection
func OpenConnection(dsn string) (*sql.DB, error) {
	// Try to parse and re-encode the DSN to handle special characters in password
	parsedDSN, err := sanitizeDSN(dsn)
	if err != nil {
		// If parsing fails, try using the original DSN
		parsedDSN = dsn
	}

	db, err := sql.Open("pgx", parsedDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

// sanitizeDSN attempts to parse and properly encode the DSN
func sanitizeDSN(dsn string) (string, error) {
	// Check if it's a URL format (postgres:// or postgresql://)
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		// Assume it's already in key-value format, return as-is
		return dsn, nil
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}

	// Re-encode the password if present
	if u.User != nil {
		password, hasPassword := u.User.Password()
		if hasPassword {
			u.User = url.UserPassword(u.User.Username(), password)
		}
	}

	return u.String(), nil
}

// RunMigrations creates the schema if it does not exist yet. The DDL is
// idempotent so it is safe to run on every startup.
func RunMigrations(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS executions (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			priority INTEGER NOT NULL DEFAULT 0,

			s3_bucket TEXT NOT NULL,
			s3_key TEXT NOT NULL,
			endpoint_name TEXT NOT NULL DEFAULT '',
			threshold DOUBLE PRECISION NOT NULL DEFAULT 0.70,

			inferences TEXT[] NOT NULL DEFAULT '{}',
			top_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			passed BOOLEAN NOT NULL DEFAULT FALSE,

			worker_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			error_message TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_executions_status ON executions (status);
		CREATE INDEX IF NOT EXISTS idx_executions_worker_id ON executions (worker_id);
		CREATE INDEX IF NOT EXISTS idx_executions_claim ON executions (status, priority DESC, created_at ASC);

		CREATE TABLE IF NOT EXISTS workers (
			id TEXT PRIMARY KEY,
			hostname TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'idle',
			current_execution_id UUID,

			executions_completed INTEGER NOT NULL DEFAULT 0,
			images_processed INTEGER NOT NULL DEFAULT 0,
			cpu_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
			mem_percent DOUBLE PRECISION NOT NULL DEFAULT 0,

			last_heartbeat TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_workers_status ON workers (status);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	return nil
}

// Repositories holds all repository instances
type Repositories struct {
	Executions *ExecutionRepository
	Workers    *WorkerRepository
}

// NewRepositories creates all repositories
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Executions: NewExecutionRepository(db),
		Workers:    NewWorkerRepository(db),
	}
}
