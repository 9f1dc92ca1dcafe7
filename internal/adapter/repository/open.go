// Package repository opens the durable domain.Store selected by
// configuration. The backends live in its subpackages.
package repository

import (
	"context"
	"log/slog"

	"github.com/V4T54L/logbeacon/internal/adapter/repository/file"
	"github.com/V4T54L/logbeacon/internal/adapter/repository/memory"
	"github.com/V4T54L/logbeacon/internal/adapter/repository/postgres"
	"github.com/V4T54L/logbeacon/internal/adapter/repository/redis"
	"github.com/V4T54L/logbeacon/internal/domain"
	"github.com/V4T54L/logbeacon/internal/pkg/config"
)

// Open returns the durable store for cfg.StoreBackend and a function
// releasing its connections.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (domain.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StoreBackend {
	case config.StoreFile:
		store, err := file.NewStore(cfg.StoreDir, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil

	case config.StoreRedis:
		client, err := redis.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return redis.NewStore(client, cfg.StoreNamespace, logger), client.Close, nil

	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		store := postgres.NewStore(db, cfg.StoreNamespace, logger)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, db.Close, nil

	default:
		return memory.NewStore(), noop, nil
	}
}
