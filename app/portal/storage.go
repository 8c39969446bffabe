package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/evservice/core/clientstore"
	"github.com/dmitrymomot/evservice/core/health"
	"github.com/dmitrymomot/evservice/core/logger"
	"github.com/dmitrymomot/evservice/integration/database/pg"
	"github.com/dmitrymomot/evservice/integration/database/redis"
)

var ErrUnknownStorage = errors.New("portal: unknown storage backend")

// backends holds the opened client storages and what is needed to check and
// release them.
type backends struct {
	durable    clientstore.Storage
	shortLived clientstore.Storage

	checks  map[string]health.Check
	sweep   func(context.Context) (int64, error)
	closers []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// openBackends connects the configured storages. Redis and PostgreSQL
// connections are shared between scopes that select the same backend.
func openBackends(ctx context.Context, cfg Config, log *slog.Logger) (_ *backends, err error) {
	b := &backends{checks: make(map[string]health.Check)}
	defer func() {
		if err != nil {
			b.close()
		}
	}()

	var (
		rdb  *goredis.Client
		pool *pgxpool.Pool
	)
	redisClient := func() (*goredis.Client, error) {
		if rdb != nil {
			return rdb, nil
		}
		c, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		rdb = c
		b.closers = append(b.closers, func() { _ = c.Close() })
		b.checks["redis"] = redis.Healthcheck(c)
		return c, nil
	}
	pgPool := func() (*pgxpool.Pool, error) {
		if pool != nil {
			return pool, nil
		}
		p, err := pg.Connect(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		pool = p
		b.closers = append(b.closers, p.Close)
		if err := pg.Migrate(ctx, p, log.With(logger.Component("migrate"))); err != nil {
			return nil, err
		}
		b.checks["postgres"] = pg.Healthcheck(p)
		return p, nil
	}

	switch cfg.Storage.Durable {
	case StorageMemory:
		b.durable = clientstore.NewMemory()
	case StorageFile:
		b.durable = clientstore.NewFile(cfg.Storage.FilePath)
	case StorageRedis:
		c, err := redisClient()
		if err != nil {
			return nil, err
		}
		b.durable = redis.NewStorage(c, redis.WithKeyPrefix(cfg.AppName+":durable"))
	case StoragePostgres:
		p, err := pgPool()
		if err != nil {
			return nil, err
		}
		b.durable = pg.NewStorage(p)
	default:
		return nil, fmt.Errorf("%w: durable %q", ErrUnknownStorage, cfg.Storage.Durable)
	}

	switch cfg.Storage.ShortLived {
	case StorageMemory:
		b.shortLived = clientstore.NewMemory()
	case StorageRedis:
		c, err := redisClient()
		if err != nil {
			return nil, err
		}
		b.shortLived = redis.NewStorage(c, redis.WithKeyPrefix(cfg.AppName+":short"))
	case StoragePostgres:
		p, err := pgPool()
		if err != nil {
			return nil, err
		}
		// Scope keys apart from durable rows sharing the table.
		s := pg.NewStorage(p)
		b.shortLived = clientstore.Namespace(s, "short")
		b.sweep = s.DeleteExpired
	default:
		return nil, fmt.Errorf("%w: short-lived %q", ErrUnknownStorage, cfg.Storage.ShortLived)
	}

	return b, nil
}

// sweepExpired removes expired rows every interval until ctx is done.
func sweepExpired(ctx context.Context, sweep func(context.Context) (int64, error), interval time.Duration, log *slog.Logger) {
	if sweep == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sweep(ctx)
			if err != nil {
				log.WarnContext(ctx, "sweeping expired client state failed", logger.Error(err))
				continue
			}
			if n > 0 {
				log.DebugContext(ctx, "expired client state removed", slog.Int64("rows", n))
			}
		}
	}
}
