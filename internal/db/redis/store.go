// Package redis provides the Redis key-value backend.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/rs/zerolog/log"
)

// Config holds Redis connection settings.
type Config struct {
	Addr        string
	Password    string
	DB          int
	MaxIdle     int
	IdleTimeout time.Duration
}

// Store is a Redis-backed KV using a redigo connection pool.
type Store struct {
	pool *redis.Pool
}

// NewStore creates a pool and verifies the server answers PING.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address not configured")
	}
	maxIdle := cfg.MaxIdle
	if maxIdle <= 0 {
		maxIdle = 4
	}
	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = 5 * time.Minute
	}

	opts := []redis.DialOption{
		redis.DialConnectTimeout(5 * time.Second),
		redis.DialDatabase(cfg.DB),
	}
	if cfg.Password != "" {
		opts = append(opts, redis.DialPassword(cfg.Password))
	}

	pool := &redis.Pool{
		MaxIdle:     maxIdle,
		IdleTimeout: idle,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", cfg.Addr, opts...)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	s := &Store{pool: pool}
	if err := s.Ping(context.Background()); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Debug().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("Redis store opened")
	return s, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Do("PING")
	return err
}

// Load returns the value stored under key.
func (s *Store) Load(ctx context.Context, key string) ([]byte, bool, error) {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", key, err)
	}
	defer conn.Close()

	v, err := redis.Bytes(conn.Do("GET", key))
	if errors.Is(err, redis.ErrNil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", key, err)
	}
	return v, true, nil
}

// Save stores value under key without expiry.
func (s *Store) Save(ctx context.Context, key string, value []byte) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	defer conn.Close()

	if _, err := conn.Do("SET", key, value); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) error {
	conn, err := s.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	defer conn.Close()

	if _, err := conn.Do("DEL", key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.pool.Close()
}
