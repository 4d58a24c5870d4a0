// Package db opens the configured persistence backend.
package db

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/attune/internal/config"
	"github.com/thebtf/attune/internal/db/badger"
	"github.com/thebtf/attune/internal/db/gorm"
	"github.com/thebtf/attune/internal/db/redis"
	"github.com/thebtf/attune/internal/db/sqlite"
	"github.com/thebtf/attune/internal/storage"
)

// Open creates the KV backend named by cfg.StoreBackend.
// An empty backend selects sqlite.
func Open(cfg *config.Config) (storage.KV, error) {
	backend := cfg.StoreBackend
	if backend == "" {
		backend = "sqlite"
	}

	var (
		kv  storage.KV
		err error
	)
	switch backend {
	case "memory":
		kv = storage.NewMemory()
	case "sqlite":
		kv, err = unwrap(sqlite.NewStore(sqlite.Config{Path: cfg.DBPath, MaxConns: cfg.MaxConns}))
	case "postgres":
		kv, err = unwrap(gorm.NewStore(gorm.Config{DSN: cfg.PostgresDSN, MaxConns: cfg.MaxConns}))
	case "redis":
		kv, err = unwrap(redis.NewStore(redis.Config{Addr: cfg.RedisAddr, MaxIdle: cfg.MaxConns}))
	case "badger":
		kv, err = unwrap(badger.NewStore(badger.Config{Path: cfg.BadgerPath}))
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", backend, err)
	}

	log.Info().Str("backend", backend).Msg("Persistence backend ready")
	return kv, nil
}

// unwrap keeps a nil *T from becoming a non-nil interface.
func unwrap[T storage.KV](store T, err error) (storage.KV, error) {
	if err != nil {
		return nil, err
	}
	return store, nil
}
