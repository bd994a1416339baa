package storage

import (
	"context"
	"errors"
	"os"
)

// ErrNotFound is returned when a key is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Gateway is durable key-value blob storage. The ledger serializes its full
// date-keyed mapping as one blob under a single key; nothing else writes to
// the gateway's keyspace.
type Gateway interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// EnsureDir ensures a directory exists with default permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
