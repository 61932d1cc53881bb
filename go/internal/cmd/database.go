package main

import (
	"context"
	"fmt"

	"github.com/mcdev12/retroboard/go/internal/retro"
	"github.com/mcdev12/retroboard/go/internal/retro/memstore"
	"github.com/mcdev12/retroboard/go/internal/retro/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// setupStore opens the configured store. The returned func releases it.
func setupStore(ctx context.Context, cfg Config) (retro.Store, func(), error) {
	switch cfg.Store {
	case storeMemory:
		log.Warn().Msg("using in-memory store; boards are lost on restart")
		return memstore.New(), func() {}, nil

	case storePostgres:
		if err := repository.Migrate(ctx, cfg.Database.DSN()); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		pool, err := repository.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("connected to database")
		return repository.NewRepository(pool), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown STORE %q (want %q or %q)", cfg.Store, storePostgres, storeMemory)
	}
}

// setupRedis connects to Redis when REDIS_URL is set; nil otherwise.
func setupRedis(ctx context.Context, cfg Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	log.Info().Str("addr", opts.Addr).Msg("connected to redis")
	return client, nil
}
