package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/practitioner-schedule/internal/config"
	"github.com/hackgods/practitioner-schedule/internal/db"
	redisclient "github.com/hackgods/practitioner-schedule/internal/redis"
	"github.com/hackgods/practitioner-schedule/internal/schedule"
)

// App holds the connections and the schedule service shared by the binaries.
type App struct {
	Config  config.Config
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Service *schedule.Service
	logger  zerolog.Logger
}

// Open connects storage and Redis according to cfg and builds the service.
func Open(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*App, error) {
	a := &App{Config: cfg, logger: logger}

	var (
		repo   schedule.Repository
		events schedule.EventSink
	)

	switch cfg.StorageBackend {
	case config.StoragePostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
		if err == nil {
			err = db.EnsureSchema(pgCtx, pool)
			if err != nil {
				pool.Close()
			}
		}
		cancel()
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.PgPool = pool
		pg := schedule.NewPgRepository(pool)
		repo, events = pg, pg
		logger.Info().Msg("connected to Postgres")
	default:
		mem := schedule.NewMemoryRepository()
		repo, events = mem, mem
		logger.Warn().Msg("using in-memory schedule storage")
	}

	rdb, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("redis: %w", err)
	}
	a.Redis = rdb
	logger.Info().Msg("connected to Redis")

	if cfg.CacheTTL > 0 {
		repo = schedule.NewCachedRepository(repo, redisclient.NewCache(rdb), cfg.CacheTTL, logger)
	}

	locker := redisclient.NewRedisScheduleLocker(rdb, cfg.LockTTL)
	a.Service = schedule.NewService(repo, events, locker, cfg.GranularityMinutes(), logger)

	return a, nil
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("error closing redis")
		}
	}
	if a.PgPool != nil {
		a.PgPool.Close()
	}
}
