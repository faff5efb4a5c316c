package main

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/studyroom/internal/config"
	"github.com/dkeye/studyroom/internal/repo"
)

// openStore builds the room repo selected by cfg.Driver. The returned func
// releases its connections.
func openStore(ctx context.Context, cfg config.StoreConfig) (repo.RoomRepo, func(), error) {
	switch cfg.Driver {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		log.Info().Str("module", "store").Str("addr", cfg.RedisAddr).Msg("using redis room store")
		return repo.NewRedisRoomRepo(rdb), func() { _ = rdb.Close() }, nil
	case "postgres":
		db, err := repo.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		pg := repo.NewPostgresRoomRepo(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		log.Info().Str("module", "store").Msg("using postgres room store")
		return pg, func() { _ = db.Close() }, nil
	default:
		log.Info().Str("module", "store").Msg("using in-memory room store")
		return repo.NewMemoryRoomRepo(), func() {}, nil
	}
}
