package cache

import (
	"context"
	"time"
)

// Cache interface for caching operations
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in cache with TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// DeleteByPattern removes all values matching a pattern (e.g., "cache:dashboard:*")
	DeleteByPattern(ctx context.Context, pattern string) error

	// Close closes the cache connection
	Close() error
}

// Key prefixes for dashboard caching
const (
	// KeyPrefixDashboardStats is the prefix for dashboard statistics
	KeyPrefixDashboardStats = "cache:dashboard:stats"

	// KeyPrefixExecutions is the prefix for execution listings
	KeyPrefixExecutions = "cache:dashboard:executions"

	// KeyPrefixWorkers is the prefix for worker listings
	KeyPrefixWorkers = "cache:dashboard:workers"
)

// TTL configurations for different cache types
const (
	// TTLStats is the TTL for dashboard statistics
	TTLStats = 30 * time.Second

	// TTLExecutionsList is the TTL for execution listings
	TTLExecutionsList = 60 * time.Second

	// TTLWorkersList is the TTL for worker listings
	TTLWorkersList = 30 * time.Second
)
