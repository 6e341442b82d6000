// Package storage provides the key-value capability history is persisted
// through. Values are opaque bytes; callers own the encoding.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written or was deleted.
var ErrNotFound = errors.New("storage: key not found")

// KV is a minimal durable key-value store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

var (
	_ KV = (*FileStore)(nil)
	_ KV = (*MemoryStore)(nil)
	_ KV = (*RedisStore)(nil)
	_ KV = (*PostgresStore)(nil)
)
