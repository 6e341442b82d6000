package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"imagestudio/internal/infra"
	"imagestudio/internal/sqlinline"
)

// PostgresStore keeps values in the kv_store table.
type PostgresStore struct {
	db infra.SQLExecutor
}

// NewPostgresStore creates the kv_store table when missing.
func NewPostgresStore(ctx context.Context, db infra.SQLExecutor) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("storage: sql executor is required")
	}
	if _, err := db.Exec(ctx, sqlinline.QCreateKVTable); err != nil {
		return nil, fmt.Errorf("storage: ensure kv_store: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(ctx, sqlinline.QSelectKV, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: select kv: %w", err)
	}
	return value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.db.Exec(ctx, sqlinline.QUpsertKV, key, value); err != nil {
		return fmt.Errorf("storage: upsert kv: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, sqlinline.QDeleteKV, key); err != nil {
		return fmt.Errorf("storage: delete kv: %w", err)
	}
	return nil
}
