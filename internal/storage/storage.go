// Package storage provides object store access for workflow inputs.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a key does not exist in the store
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore reads and writes objects by bucket and key
type ObjectStore interface {
	// Get retrieves an object
	Get(ctx context.Context, bucket, key string) ([]byte, error)

	// Put stores an object
	Put(ctx context.Context, bucket, key string, body io.Reader) error
}
