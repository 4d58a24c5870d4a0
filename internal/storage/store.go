package storage

import (
	"github.com/thebtf/attune/pkg/models"
)

// Store groups a user's persisted collections over one KV backend.
type Store struct {
	kv          KV
	History     *Collection[models.SessionRecord]
	Journal     *Collection[models.JournalEntry]
	Reframes    *Collection[models.ReframeEntry]
	Mixes       *Collection[models.Mix]
	Preferences *Document[models.Preferences]
	userKey     string
}

// NewStore opens the collections of identity over kv.
func NewStore(kv KV, identity string) *Store {
	uk := UserKey(identity)
	s := &Store{kv: kv, userKey: uk}

	s.History = NewCollection(kv, Key(uk, KindHistory), func(r models.SessionRecord) string { return r.ID })
	s.Journal = NewCollection(kv, Key(uk, KindJournal), func(e models.JournalEntry) string { return e.ID })
	s.Reframes = NewCollection(kv, Key(uk, KindReframe), func(e models.ReframeEntry) string { return e.ID })
	s.Mixes = NewCollection(kv, Key(uk, KindMixes), func(m models.Mix) string { return m.ID })
	s.Preferences = NewDocument(kv, Key(uk, KindPreferences), func() models.Preferences {
		return models.Preferences{}
	})
	return s
}

// UserKey returns the hashed identity segment used in keys.
func (s *Store) UserKey() string {
	return s.userKey
}

// OpenDocument returns a document of kind for this store's user.
func OpenDocument[T any](s *Store, kind Kind, def func() T) *Document[T] {
	return NewDocument(s.kv, Key(s.userKey, kind), def)
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.kv.Close()
}
