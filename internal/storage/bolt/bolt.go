package bolt

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/tlind/screentimed/internal/storage"
	"go.etcd.io/bbolt"
)

const bucketBlobs = "blobs"

// Gateway implements the storage.Gateway interface using bbolt.
type Gateway struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed gateway.
func Open(path string) (*Gateway, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketBlobs))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket %s: %w", bucketBlobs, err)
	}

	return &Gateway{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return storage.EnsureDir(dir)
}

// Get returns the blob stored under key.
func (g *Gateway) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := g.db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketBlobs))
		if b == nil {
			return storage.ErrNotFound
		}
		data := b.Get([]byte(key))
		if data == nil {
			return storage.ErrNotFound
		}
		value = string(data)
		return nil
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

// Set stores a blob under key.
func (g *Gateway) Set(ctx context.Context, key, value string) error {
	return g.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketBlobs))
		if b == nil {
			return fmt.Errorf("bucket missing: %s", bucketBlobs)
		}
		return b.Put([]byte(key), []byte(value))
	})
}

// Remove deletes the blob stored under key.
func (g *Gateway) Remove(ctx context.Context, key string) error {
	return g.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketBlobs))
		if b == nil {
			return storage.ErrNotFound
		}
		if b.Get([]byte(key)) == nil {
			return storage.ErrNotFound
		}
		return b.Delete([]byte(key))
	})
}

// Close closes the underlying database.
func (g *Gateway) Close() error {
	return g.db.Close()
}
