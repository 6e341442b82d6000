package storage

import (
	"context"
	"fmt"

	"imagestudio/internal/infra"
)

// Open builds the KV selected by cfg.HistoryBackend. The returned close
// function releases any connection the backend holds.
func Open(ctx context.Context, cfg *infra.Config, logger infra.Logger) (KV, func(), error) {
	switch cfg.HistoryBackend {
	case infra.BackendRedis:
		store, rdb, err := NewRedisStore(ctx, cfg.RedisURL, "imagestudio:")
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Msg("history backend: redis")
		return store, func() { _ = rdb.Close() }, nil

	case infra.BackendPostgres:
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		store, err := NewPostgresStore(ctx, infra.NewSQLRunner(pool, logger))
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info().Msg("history backend: postgres")
		return store, pool.Close, nil

	case infra.BackendFile, "":
		store, err := NewFileStore(cfg.HistoryPath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Str("path", store.BasePath()).Msg("history backend: file")
		return store, func() {}, nil
	}
	return nil, nil, fmt.Errorf("storage: unsupported backend %q", cfg.HistoryBackend)
}
