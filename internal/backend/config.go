package backend

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"fintrack/internal/clock"
	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/metrics"
	"fintrack/internal/storage"
)

// Options overrides collaborators that tests and one-shot commands need to
// control. Zero values select production defaults.
type Options struct {
	Clock   clock.Clock
	IDs     core.IDGenerator
	Metrics *metrics.Metrics
	Logger  *log.Logger
	// Store replaces the STORAGE_BACKEND selection.
	Store storage.Store
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clock.System{}
	}
	if o.IDs == nil {
		o.IDs = core.ULIDGenerator{}
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewNop()
	}
	if o.Logger == nil {
		o.Logger = log.Discard()
	}
	return o
}

// openStore selects the key-value collaborator from STORAGE_BACKEND.
func (b *Backend) openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageBackend {
	case config.StorageMemory, "":
		return storage.NewMemoryStore(), nil
	case config.StorageFile:
		return storage.NewFileStore(cfg.DataDir)
	case config.StorageSQLite:
		return storage.NewSQLiteStore(cfg.SQLiteDBPath)
	case config.StorageRedis:
		client, err := b.redisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return storage.NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.StorageBackend)
	}
}

// redisClient dials REDIS_URL once and shares the client between the
// storage backend and the claimer.
func (b *Backend) redisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if b.Redis != nil {
		return b.Redis, nil
	}
	client, err := storage.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	b.Redis = client
	b.onClose(client.Close)
	return client, nil
}
