package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/accountcore"
	"github.com/MrEthical07/accountcore/internal/config"
	"github.com/MrEthical07/accountcore/store/memstore"
	"github.com/MrEthical07/accountcore/store/pgstore"
	"github.com/MrEthical07/accountcore/store/redisstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type backend struct {
	store  accountcore.CredentialStore
	health func(ctx context.Context) error
	close  func()
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return &backend{store: memstore.New(), close: func() {}}, nil

	case config.StoreMiniredis:
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start miniredis: %w", err)
		}
		logger.Info("using embedded miniredis", "addr", mr.Addr())
		b, err := redisBackend(ctx, cfg, mr.Addr(), "")
		if err != nil {
			mr.Close()
			return nil, err
		}
		closeClient := b.close
		b.close = func() {
			closeClient()
			mr.Close()
		}
		return b, nil

	case config.StoreRedis:
		return redisBackend(ctx, cfg, cfg.RedisAddr, cfg.RedisPass)

	case config.StorePostgres:
		return postgresBackend(ctx, cfg, logger)

	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func redisBackend(ctx context.Context, cfg *config.Config, addr, password string) (*backend, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{addr},
		Password: password,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &backend{
		store: redisstore.New(client, redisstore.Options{Prefix: cfg.RedisPrefix}),
		health: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		close: func() { _ = client.Close() },
	}, nil
}

func postgresBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backend, error) {
	db, err := pgstore.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if cfg.Migrate {
		logger.Info("applying migrations")
		if err := pgstore.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &backend{
		store:  pgstore.New(db),
		health: db.PingContext,
		close:  func() { closeDB(db, logger) },
	}, nil
}

func closeDB(db *sql.DB, logger *slog.Logger) {
	if err := db.Close(); err != nil {
		logger.Warn("close database", "error", err)
	}
}
