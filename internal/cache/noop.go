package cache

import (
	"context"
	"time"
)

// NoopCache is used when Redis is not configured. Every Get is a miss.
type NoopCache struct{}

// NewNoopCache creates a new no-op cache
func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

func (c *NoopCache) Get(context.Context, string) ([]byte, error) {
	return nil, ErrCacheMiss
}

func (c *NoopCache) Set(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (c *NoopCache) Delete(context.Context, string) error {
	return nil
}

func (c *NoopCache) DeleteByPattern(context.Context, string) error {
	return nil
}

func (c *NoopCache) Close() error {
	return nil
}
