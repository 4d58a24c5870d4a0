package adaptive

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/thebtf/attune/internal/genai"
	"github.com/thebtf/attune/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeCall struct {
	reply  chan fakeReply
	locale string
	prefs  models.Preferences
	bio    models.BioSnapshot
}

type fakeReply struct {
	err error
	rec models.Recommendation
}

// fakeRecommender answers immediately unless manual is set, in which case
// each call is handed to the test through calls and waits for a reply.
type fakeRecommender struct {
	calls  chan *fakeCall
	failN  map[int]error
	seen   []models.BioSnapshot
	mu     sync.Mutex
	manual bool
}

func newFakeRecommender(manual bool) *fakeRecommender {
	return &fakeRecommender{calls: make(chan *fakeCall, 16), failN: map[int]error{}, manual: manual}
}

func (f *fakeRecommender) Recommend(ctx context.Context, bio models.BioSnapshot, locale string, prefs models.Preferences) (models.Recommendation, error) {
	f.mu.Lock()
	f.seen = append(f.seen, bio)
	n := len(f.seen)
	failure := f.failN[n]
	f.mu.Unlock()

	if !f.manual {
		if failure != nil {
			return models.Recommendation{}, failure
		}
		return recFor(bio), nil
	}

	call := &fakeCall{bio: bio, locale: locale, prefs: prefs, reply: make(chan fakeReply, 1)}
	f.calls <- call
	select {
	case r := <-call.reply:
		return r.rec, r.err
	case <-ctx.Done():
		return models.Recommendation{}, &genai.FetchError{Kind: genai.NetworkUnavailable, Err: ctx.Err()}
	}
}

func (f *fakeRecommender) failOn(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failN[n] = err
}

func (f *fakeRecommender) seenCalls() []models.BioSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.BioSnapshot(nil), f.seen...)
}

func (f *fakeRecommender) next(t *testing.T) *fakeCall {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a recommendation call")
		return nil
	}
}

func recFor(bio models.BioSnapshot) models.Recommendation {
	return models.Recommendation{
		Music: models.Music{
			Description:   fmt.Sprintf("music for %d", bio.HeartRate),
			Keywords:      []string{"calm"},
			SoundscapeKey: "rain",
		},
		Insight: models.Insight{
			Title:       fmt.Sprintf("hr %d", bio.HeartRate),
			Description: "breathe",
			Type:        models.InsightTip,
		},
	}
}
