// Package sqlite provides the SQLite key-value backend.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // Pure Go driver
)

// Config holds SQLite connection settings.
type Config struct {
	Path        string
	MaxConns    int
	BusyTimeout time.Duration
}

// Store is a SQLite-backed KV.
type Store struct {
	db    *sql.DB
	stmts map[string]*sql.Stmt
	mu    sync.Mutex
}

const schema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// NewStore opens the database and creates the schema.
// WAL, busy_timeout and synchronous are set through the DSN so every pooled
// connection gets them.
func NewStore(cfg Config) (*Store, error) {
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		cfg.Path, busy.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	log.Debug().Str("path", cfg.Path).Int("maxConns", maxConns).Msg("SQLite store opened")
	return newStoreFromDB(db), nil
}

func newStoreFromDB(db *sql.DB) *Store {
	return &Store{db: db, stmts: make(map[string]*sql.Stmt)}
}

// GetStmt returns a cached prepared statement for query.
func (s *Store) GetStmt(query string) (*sql.Stmt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stmt, ok := s.stmts[query]; ok {
		return stmt, nil
	}
	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, err
	}
	s.stmts[query] = stmt
	return stmt, nil
}

// Load returns the value stored under key.
func (s *Store) Load(ctx context.Context, key string) ([]byte, bool, error) {
	stmt, err := s.GetStmt(`SELECT value FROM kv_entries WHERE key = ?`)
	if err != nil {
		return nil, false, err
	}
	var value []byte
	err = stmt.QueryRowContext(ctx, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load %s: %w", key, err)
	}
	return value, true, nil
}

// Save upserts value under key.
func (s *Store) Save(ctx context.Context, key string, value []byte) error {
	stmt, err := s.GetStmt(`
		INSERT INTO kv_entries (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, key, value, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Missing keys are not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	stmt, err := s.GetStmt(`DELETE FROM kv_entries WHERE key = ?`)
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Ping verifies the database connection is alive.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// Close closes cached statements and the database.
func (s *Store) Close() error {
	s.mu.Lock()
	for q, stmt := range s.stmts {
		_ = stmt.Close()
		delete(s.stmts, q)
	}
	s.mu.Unlock()
	return s.db.Close()
}
