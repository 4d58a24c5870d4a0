package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/attune/pkg/models"
)

// failingKV wraps a KV and fails selected operations.
// transientLoads fails that many loads with transientErr before passing through.
type failingKV struct {
	KV
	loadErr        error
	saveErr        error
	transientErr   error
	transientLoads int
}

func (f *failingKV) Load(ctx context.Context, key string) ([]byte, bool, error) {
	if f.transientLoads > 0 {
		f.transientLoads--
		return nil, false, f.transientErr
	}
	if f.loadErr != nil {
		return nil, false, f.loadErr
	}
	return f.KV.Load(ctx, key)
}

func (f *failingKV) Save(ctx context.Context, key string, value []byte) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.KV.Save(ctx, key, value)
}

func TestUserKeyAndKey(t *testing.T) {
	uk := UserKey("user@example.com")
	assert.Len(t, uk, 16)
	assert.Equal(t, uk, UserKey("user@example.com"))
	assert.NotEqual(t, uk, UserKey("other@example.com"))
	assert.NotContains(t, uk, "example")

	assert.Equal(t, "attune_"+uk+"_history", Key(uk, KindHistory))
	assert.Equal(t, "attune_"+uk+"_reframe", Key(uk, KindReframe))
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok, err := m.Load(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	buf := []byte(`[1]`)
	require.NoError(t, m.Save(ctx, "k", buf))
	buf[0] = 'x'

	got, ok, err := m.Load(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[1]`, string(got), "stored value must not alias the caller's slice")

	require.NoError(t, m.Remove(ctx, "k"))
	_, ok, _ = m.Load(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, m.Close())
	assert.ErrorIs(t, m.Save(ctx, "k", nil), ErrClosed)
}

// StoreSuite is a test suite for the typed repositories.
type StoreSuite struct {
	suite.Suite
	kv    *Memory
	store *Store
	ctx   context.Context
	now   time.Time
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.kv = NewMemory()
	s.store = NewStore(s.kv, "tester")
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
}

func (s *StoreSuite) record(hr int) models.SessionRecord {
	bio := models.BioSnapshot{HeartRate: hr, StressLevel: models.StressLow, Activity: "walk"}
	return *models.NewSessionRecord(bio, models.EmptyRecommendation(), s.now)
}

// TestHistory_PrependOrder tests most-recent-first ordering and persistence.
func (s *StoreSuite) TestHistory_PrependOrder() {
	a, b := s.record(70), s.record(80)
	s.store.History.Prepend(s.ctx, a)
	s.store.History.Prepend(s.ctx, b)

	s.Equal([]models.SessionRecord{b, a}, s.store.History.All(s.ctx))

	reopened := NewStore(s.kv, "tester")
	if diff := cmp.Diff([]models.SessionRecord{b, a}, reopened.History.All(s.ctx)); diff != "" {
		s.Failf("history not persisted", "(-want +got):\n%s", diff)
	}

	other := NewStore(s.kv, "someone-else")
	s.Empty(other.History.All(s.ctx))
}

// TestHistory_RemoveAndClear tests individual removal and bulk clear.
func (s *StoreSuite) TestHistory_RemoveAndClear() {
	a, b := s.record(70), s.record(80)
	s.store.History.Prepend(s.ctx, a)
	s.store.History.Prepend(s.ctx, b)

	s.True(s.store.History.Remove(s.ctx, a.ID))
	s.False(s.store.History.Remove(s.ctx, a.ID))
	s.Equal(1, s.store.History.Len(s.ctx))

	got, ok := s.store.History.Get(s.ctx, b.ID)
	s.True(ok)
	s.Equal(b.ID, got.ID)

	s.store.History.Clear(s.ctx)
	s.Empty(s.store.History.All(s.ctx))
	_, stored, err := s.kv.Load(s.ctx, Key(s.store.UserKey(), KindHistory))
	s.NoError(err)
	s.False(stored)
}

// TestReadFailure_TreatedAsEmpty tests that corrupt or unreadable data starts empty.
func (s *StoreSuite) TestReadFailure_TreatedAsEmpty() {
	tests := []struct {
		name  string
		kv    KV
		setup func(kv KV)
	}{
		{
			name: "malformed json",
			kv:   NewMemory(),
			setup: func(kv KV) {
				_ = kv.Save(s.ctx, Key(UserKey("tester"), KindJournal), []byte(`{not json`))
			},
		},
		{
			name: "wrong shape",
			kv:   NewMemory(),
			setup: func(kv KV) {
				_ = kv.Save(s.ctx, Key(UserKey("tester"), KindJournal), []byte(`{"id":"x"}`))
			},
		},
		{
			name:  "backend error",
			kv:    &failingKV{KV: NewMemory(), loadErr: errors.New("disk gone")},
			setup: func(KV) {},
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			tt.setup(tt.kv)
			st := NewStore(tt.kv, "tester")
			s.Empty(st.Journal.All(s.ctx))
			s.Equal(models.Preferences{}, st.Preferences.Get(s.ctx))
		})
	}
}

// TestWriteFailure_KeepsMemory tests that a failed save keeps the in-memory list.
func (s *StoreSuite) TestWriteFailure_KeepsMemory() {
	kv := &failingKV{KV: NewMemory(), saveErr: errors.New("read-only")}
	st := NewStore(kv, "tester")

	entry, err := models.NewJournalEntry(4, "good day", nil, s.now)
	s.Require().NoError(err)
	st.Journal.Prepend(s.ctx, *entry)

	s.Len(st.Journal.All(s.ctx), 1)
	s.Empty(NewStore(kv.KV, "tester").Journal.All(s.ctx))
}

// TestLoadError_DoesNotOverwriteStoredList tests that a mutation after an
// unreadable load leaves the stored list intact and the next access reloads it.
func (s *StoreSuite) TestLoadError_DoesNotOverwriteStoredList() {
	seed := NewStore(s.kv, "tester")
	var ids []string
	for _, text := range []string{"a", "b", "c"} {
		entry, err := models.NewJournalEntry(3, text, nil, s.now)
		s.Require().NoError(err)
		seed.Journal.Prepend(s.ctx, *entry)
		ids = append([]string{entry.ID}, ids...)
	}

	kv := &failingKV{KV: s.kv, transientErr: errors.New("connection reset"), transientLoads: 1}
	st := NewStore(kv, "tester")

	entry, err := models.NewJournalEntry(5, "new", nil, s.now)
	s.Require().NoError(err)
	st.Journal.Prepend(s.ctx, *entry)

	stored := NewStore(s.kv, "tester").Journal.All(s.ctx)
	s.Require().Len(stored, 3)
	for i, e := range stored {
		s.Equal(ids[i], e.ID)
	}

	s.Len(st.Journal.All(s.ctx), 3, "next access reloads after the backend recovers")
	st.Journal.Prepend(s.ctx, *entry)
	s.Len(NewStore(s.kv, "tester").Journal.All(s.ctx), 4)
}

// TestLoadError_DocumentRetries tests that a document read error is not cached.
func (s *StoreSuite) TestLoadError_DocumentRetries() {
	s.store.Preferences.Set(s.ctx, models.Preferences{models.PrefGenre: "lofi"})

	kv := &failingKV{KV: s.kv, transientErr: errors.New("timeout"), transientLoads: 1}
	st := NewStore(kv, "tester")
	s.Equal(models.Preferences{}, st.Preferences.Get(s.ctx))
	s.Equal("lofi", st.Preferences.Get(s.ctx).String(models.PrefGenre))
}

// TestPreferencesDocument tests set/get of the preference object.
func (s *StoreSuite) TestPreferencesDocument() {
	s.store.Preferences.Set(s.ctx, models.Preferences{models.PrefGenre: "ambient", "volume": 0.4})

	reopened := NewStore(s.kv, "tester")
	prefs := reopened.Preferences.Get(s.ctx)
	s.Equal("ambient", prefs.String(models.PrefGenre))
	s.InDelta(0.4, prefs["volume"], 0.0001)

	raw, ok, err := s.kv.Load(s.ctx, Key(s.store.UserKey(), KindPreferences))
	s.Require().NoError(err)
	s.True(ok)
	var decoded map[string]any
	s.Require().NoError(json.Unmarshal(raw, &decoded))
	s.Equal("ambient", decoded["genre"])
}

// TestOpenDocument tests documents of extra kinds.
func (s *StoreSuite) TestOpenDocument() {
	type settings struct {
		Language string `json:"language"`
	}
	doc := OpenDocument(s.store, KindSettings, func() settings { return settings{Language: "en"} })
	s.Equal("en", doc.Get(s.ctx).Language)

	doc.Set(s.ctx, settings{Language: "fr"})
	again := OpenDocument(s.store, KindSettings, func() settings { return settings{Language: "en"} })
	s.Equal("fr", again.Get(s.ctx).Language)
}

// TestReplace tests bulk replacement of a list.
func (s *StoreSuite) TestReplace() {
	mix, err := models.NewMix("Evening", map[models.SoundscapeKey]float64{"rain": 0.5, "fireplace": 0.3})
	s.Require().NoError(err)

	s.store.Mixes.Replace(s.ctx, []models.Mix{*mix})
	got := NewStore(s.kv, "tester").Mixes.All(s.ctx)
	s.Require().Len(got, 1)
	s.Equal("Evening", got[0].Name)
	s.InDelta(0.5, got[0].Layers["rain"], 0.0001)
}
