package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/thebtf/attune/internal/adaptive"
	"github.com/thebtf/attune/internal/genai"
	"github.com/thebtf/attune/internal/storage"
	"github.com/thebtf/attune/pkg/models"
)

// stubRecommender answers every call immediately.
type stubRecommender struct {
	err   error
	calls []models.BioSnapshot
	mu    sync.Mutex
}

func (r *stubRecommender) Recommend(_ context.Context, bio models.BioSnapshot, _ string, _ models.Preferences) (models.Recommendation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, bio)
	if r.err != nil {
		return models.Recommendation{}, r.err
	}
	return models.Recommendation{
		Music:   models.Music{Description: "rain", Keywords: []string{}, SoundscapeKey: "rain"},
		Insight: models.Insight{Title: fmt.Sprintf("R%d", len(r.calls)), Description: "breathe", Type: models.InsightTip},
	}, nil
}

func (r *stubRecommender) seen() []models.BioSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.BioSnapshot(nil), r.calls...)
}

// ControllerSuite is a test suite for Controller operations.
type ControllerSuite struct {
	suite.Suite
	clock *adaptive.ManualClock
	rec   *stubRecommender
	kv    *storage.Memory
	store *storage.Store
	loop  *adaptive.Loop
	ctrl  *Controller
	ctx   context.Context
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = adaptive.NewManualClock(time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC))
	s.rec = &stubRecommender{}
	s.kv = storage.NewMemory()
	s.store = storage.NewStore(s.kv, "controller-test")
	s.build(false)
}

func (s *ControllerSuite) TearDownTest() {
	s.loop.Close()
}

func (s *ControllerSuite) build(archivePlaceholder bool) {
	if s.loop != nil {
		s.loop.Close()
	}
	s.loop = adaptive.New(adaptive.Options{Recommender: s.rec, Clock: s.clock, Debounce: time.Second})
	s.ctrl = New(Options{
		Loop:               s.loop,
		History:            s.store.History,
		Now:                s.clock.Now,
		ArchivePlaceholder: archivePlaceholder,
	})
}

// settled waits until no fetch is in flight and n calls were made.
func (s *ControllerSuite) settled(n int) adaptive.State {
	s.Require().Eventually(func() bool {
		return len(s.rec.seen()) == n && !s.loop.State().Loading
	}, 2*time.Second, 5*time.Millisecond)
	return s.loop.State()
}

// TestStart tests the baseline snapshot and immediate fetch.
func (s *ControllerSuite) TestStart() {
	s.Equal(models.ViewPreSession, s.ctrl.View())
	s.Require().NoError(s.ctrl.Start(s.ctx, "  Just relaxing "))

	s.True(s.ctrl.Active())
	s.Equal(models.ViewDashboard, s.ctrl.View())
	s.Equal("Just relaxing", s.ctrl.Activity())

	st := s.settled(1)
	s.Equal(models.BioSnapshot{HeartRate: 75, StressLevel: models.StressLow, Activity: "Just relaxing"}, s.rec.seen()[0])
	s.Equal("R1", st.Recommendation.Insight.Title)
}

// TestStart_Errors tests start preconditions.
func (s *ControllerSuite) TestStart_Errors() {
	s.ErrorIs(s.ctrl.Start(s.ctx, "   "), ErrInvalidActivity)
	s.False(s.ctrl.Active())

	s.Require().NoError(s.ctrl.Start(s.ctx, "yoga"))
	s.ErrorIs(s.ctrl.Start(s.ctx, "run"), ErrSessionActive)
	s.Equal("yoga", s.ctrl.Activity())
	s.settled(1)
}

// TestStop_AppendsOneRecord tests that stop archives exactly one record at the head.
func (s *ControllerSuite) TestStop_AppendsOneRecord() {
	older := models.NewSessionRecord(models.Baseline("old"), models.EmptyRecommendation(), s.clock.Now().Add(-time.Hour))
	s.store.History.Prepend(s.ctx, *older)

	s.Require().NoError(s.ctrl.Start(s.ctx, "reading"))
	st := s.settled(1)
	s.Require().NoError(s.loop.UpdateBioData(models.BioSnapshot{HeartRate: 68, StressLevel: models.StressLow, Activity: "reading"}))

	rec := s.ctrl.Stop(s.ctx)
	s.Require().NotNil(rec)

	history := s.ctrl.History(s.ctx)
	s.Require().Len(history, 2)
	s.Equal(rec.ID, history[0].ID)
	s.Equal(older.ID, history[1].ID)
	s.Equal(68, history[0].BioData.HeartRate, "bio data is the snapshot at stop time")
	s.Equal(st.Recommendation, history[0].Recommendation)
	s.Equal("reading", history[0].Activity)
	s.Equal(s.clock.Now().UTC().Format(time.RFC3339Nano), history[0].Timestamp)

	after := s.loop.State()
	s.False(after.Active)
	s.Equal(models.Baseline("reading"), after.Bio)
	s.True(after.Recommendation.IsPlaceholder())
	s.Equal(models.ViewPreSession, s.ctrl.View())
	s.Zero(s.clock.Pending(), "stop cancels the pending debounce")
}

// TestStop_Idempotent tests that a second stop appends nothing.
func (s *ControllerSuite) TestStop_Idempotent() {
	s.Require().NoError(s.ctrl.Start(s.ctx, "walk"))
	s.settled(1)

	s.NotNil(s.ctrl.Stop(s.ctx))
	s.Nil(s.ctrl.Stop(s.ctx))
	s.Len(s.ctrl.History(s.ctx), 1)

	s.Nil(New(Options{Loop: s.loop, History: s.store.History}).Stop(s.ctx), "stop before any start")
}

// TestStop_ArchivePolicy tests both placeholder archive policies.
func (s *ControllerSuite) TestStop_ArchivePolicy() {
	tests := []struct {
		name               string
		archivePlaceholder bool
		wantRecords        int
	}{
		{name: "placeholder skipped by default", archivePlaceholder: false, wantRecords: 0},
		{name: "placeholder archived when enabled", archivePlaceholder: true, wantRecords: 1},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.store.History.Clear(s.ctx)
			s.rec = &stubRecommender{err: &genai.FetchError{Kind: genai.NetworkUnavailable, Err: errors.New("offline")}}
			s.build(tt.archivePlaceholder)

			s.Require().NoError(s.ctrl.Start(s.ctx, "meditate"))
			st := s.settled(1)
			s.True(st.Recommendation.IsPlaceholder())
			s.NotEmpty(st.Error)

			rec := s.ctrl.Stop(s.ctx)
			history := s.ctrl.History(s.ctx)
			s.Len(history, tt.wantRecords)
			if tt.wantRecords == 0 {
				s.Nil(rec)
				return
			}
			s.Require().NotNil(rec)
			s.Empty(history[0].Recommendation.Insight.Title)
			s.Empty(history[0].Recommendation.Insight.Description)
		})
	}
}

// TestScenario walks the start, update, stop flow.
func (s *ControllerSuite) TestScenario() {
	s.Require().NoError(s.ctrl.Start(s.ctx, "Just relaxing"))
	st := s.settled(1)
	s.Equal("R1", st.Recommendation.Insight.Title)

	elevated := models.BioSnapshot{HeartRate: 80, StressLevel: models.StressMedium, Activity: "Just relaxing"}
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.loop.UpdateBioData(elevated))
		s.clock.Advance(500 * time.Millisecond)
	}
	s.Len(s.rec.seen(), 1)
	s.clock.Advance(500 * time.Millisecond)
	st = s.settled(2)
	s.Equal(elevated, s.rec.seen()[1])

	rec := s.ctrl.Stop(s.ctx)
	s.Require().NotNil(rec)
	history := s.ctrl.History(s.ctx)
	s.Equal("Just relaxing", history[0].Activity)
	s.Equal(elevated, history[0].BioData)
	s.Equal(st.Recommendation, history[0].Recommendation)
	s.Equal(models.BioSnapshot{HeartRate: 75, StressLevel: models.StressLow, Activity: "Just relaxing"}, s.loop.State().Bio)
}

// TestCallbacks tests start and stop notifications.
func (s *ControllerSuite) TestCallbacks() {
	var (
		started string
		stopped []*models.SessionRecord
	)
	s.ctrl.SetOnSessionStarted(func(activity string) { started = activity })
	s.ctrl.SetOnSessionStopped(func(rec *models.SessionRecord) { stopped = append(stopped, rec) })

	s.Require().NoError(s.ctrl.Start(s.ctx, "stretch"))
	s.settled(1)
	s.ctrl.Stop(s.ctx)
	s.ctrl.Stop(s.ctx)

	s.Equal("stretch", started)
	s.Require().Len(stopped, 1)
	s.NotNil(stopped[0])
}

// TestHistoryManagement tests removal, clearing and persistence.
func (s *ControllerSuite) TestHistoryManagement() {
	for i := 0; i < 2; i++ {
		s.Require().NoError(s.ctrl.Start(s.ctx, fmt.Sprintf("act-%d", i)))
		s.settled(i + 1)
		s.Require().NotNil(s.ctrl.Stop(s.ctx))
	}

	persisted := storage.NewStore(s.kv, "controller-test").History.All(s.ctx)
	s.Len(persisted, 2)
	s.Equal("act-1", persisted[0].Activity)

	s.True(s.ctrl.RemoveRecord(s.ctx, persisted[0].ID))
	s.False(s.ctrl.RemoveRecord(s.ctx, "missing"))
	s.Len(s.ctrl.History(s.ctx), 1)

	s.ctrl.ClearHistory(s.ctx)
	s.Empty(s.ctrl.History(s.ctx))
	s.Empty(storage.NewStore(s.kv, "controller-test").History.All(s.ctx))
}
