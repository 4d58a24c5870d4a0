// Package storage provides the per-user persistence adapter.
package storage

import (
	"context"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/blake2b"
)

// KeyPrefix namespaces every key written by attune.
const KeyPrefix = "attune"

// ErrClosed is returned by backends after Close.
var ErrClosed = errors.New("storage: closed")

// Kind is the data-kind suffix of a key.
type Kind string

const (
	KindHistory     Kind = "history"
	KindJournal     Kind = "journal"
	KindReframe     Kind = "reframe"
	KindMixes       Kind = "mixes"
	KindPreferences Kind = "preferences"
	KindSettings    Kind = "settings"
)

// KV is a durable key-value store of JSON documents.
type KV interface {
	// Load returns the stored value and whether the key exists.
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// UserKey derives a stable, non-reversible key segment from a user identity.
func UserKey(identity string) string {
	sum := blake2b.Sum256([]byte(identity))
	return hex.EncodeToString(sum[:])[:16]
}

// Key builds the full key for a user's data kind.
func Key(userKey string, kind Kind) string {
	return KeyPrefix + "_" + userKey + "_" + string(kind)
}
