// Package adaptive turns a stream of bio-data snapshots into recommendation fetches.
package adaptive

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/metric"

	"github.com/thebtf/attune/internal/genai"
	"github.com/thebtf/attune/pkg/models"
)

// ErrInactive is returned when a fetch is requested without an active session.
var ErrInactive = errors.New("adaptive: no active session")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("adaptive: loop closed")

// Recommender produces a recommendation for a snapshot.
// Implementations report failures as *genai.FetchError.
type Recommender interface {
	Recommend(ctx context.Context, bio models.BioSnapshot, locale string, prefs models.Preferences) (models.Recommendation, error)
}

// Phase is the loop's position in its state machine.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseAwaiting   Phase = "awaiting"
	PhaseDebouncing Phase = "debouncing"
	PhaseFetching   Phase = "fetching"
)

// State is what observers see after every change.
type State struct {
	Recommendation models.Recommendation `json:"recommendation"`
	Bio            models.BioSnapshot    `json:"bio"`
	Error          string                `json:"error,omitempty"`
	Phase          Phase                 `json:"phase"`
	Loading        bool                  `json:"loading"`
	Active         bool                  `json:"active"`
}

type observer struct {
	fn func(State)
	id uint64
}

// Options configures a Loop.
type Options struct {
	Recommender Recommender
	Clock       Clock
	// Locale returns the current language code. Defaults to "en".
	Locale func() string
	// Preferences returns the user's preference object for the next request.
	Preferences    func(ctx context.Context) models.Preferences
	Debounce       time.Duration
	RequestTimeout time.Duration
	// MeterProvider receives the fetch instruments. Defaults to the global provider.
	MeterProvider metric.MeterProvider
}

// Loop owns the current snapshot and the latest recommendation.
type Loop struct {
	recommender Recommender
	clock       Clock
	locale      func() string
	preferences func(ctx context.Context) models.Preferences
	debouncer   *Debouncer
	metrics     *loopMetrics
	ctx         context.Context
	cancel      context.CancelFunc

	observers []observer
	bio       models.BioSnapshot
	rec       models.Recommendation
	errMsg    string
	timeout   time.Duration
	epoch     uint64
	issued    uint64
	settled   uint64
	nextObs   uint64
	inflight  int
	wg        sync.WaitGroup
	mu        sync.Mutex
	notifyMu  sync.Mutex
	active    bool
	closed    bool
}

// New creates an idle Loop.
func New(opts Options) *Loop {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	locale := opts.Locale
	if locale == nil {
		locale = func() string { return "en" }
	}
	prefs := opts.Preferences
	if prefs == nil {
		prefs = func(context.Context) models.Preferences { return nil }
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Loop{
		recommender: opts.Recommender,
		clock:       clock,
		locale:      locale,
		preferences: prefs,
		debouncer:   NewDebouncer(clock, opts.Debounce),
		metrics:     newLoopMetrics(opts.MeterProvider),
		timeout:     opts.RequestTimeout,
		ctx:         ctx,
		cancel:      cancel,
		bio:         models.Baseline(""),
		rec:         models.EmptyRecommendation(),
	}
}

// Subscribe registers fn to receive every published state.
// fn runs outside the loop lock but while publication order is held, so it
// must not call any Loop method, State included.
func (l *Loop) Subscribe(fn func(State)) (unsubscribe func()) {
	l.mu.Lock()
	id := l.nextObs
	l.nextObs++
	l.observers = append(l.observers, observer{id: id, fn: fn})
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, o := range l.observers {
			if o.id == id {
				l.observers = append(l.observers[:i:i], l.observers[i+1:]...)
				return
			}
		}
	}
}

// State returns a copy of the current state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateLocked()
}

// Activate starts a session with bio as its snapshot.
// It does not fetch; call FetchNow for the initial recommendation.
func (l *Loop) Activate(bio models.BioSnapshot) error {
	if err := bio.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.debouncer.Cancel()
	l.epoch++
	l.active = true
	l.inflight = 0
	l.bio = bio
	l.errMsg = ""
	l.publishLocked()
	return nil
}

// Deactivate ends the session. It cancels the pending debounce, drops
// in-flight results, and resets the snapshot to baseline and the
// recommendation to the placeholder. The state just before the reset is returned.
func (l *Loop) Deactivate(baseline models.BioSnapshot) State {
	l.mu.Lock()
	last := l.stateLocked()
	if l.closed {
		l.mu.Unlock()
		return last
	}
	l.debouncer.Cancel()
	l.epoch++
	l.active = false
	l.inflight = 0
	l.bio = baseline
	l.rec = models.EmptyRecommendation()
	l.errMsg = ""
	l.publishLocked()
	return last
}

// UpdateBioData replaces the snapshot. While a session is active it
// (re)arms the debounce; otherwise the snapshot is only remembered.
func (l *Loop) UpdateBioData(bio models.BioSnapshot) error {
	if err := bio.Validate(); err != nil {
		return err
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.bio = bio
	if l.active {
		epoch := l.epoch
		l.debouncer.Arm(func() { l.settle(epoch) })
	}
	l.publishLocked()
	return nil
}

// UpdateActiveBio replaces the snapshot with next(current) only while a
// session is active, in one step. It reports whether the update was applied.
func (l *Loop) UpdateActiveBio(next func(models.BioSnapshot) models.BioSnapshot) (bool, error) {
	l.mu.Lock()
	switch {
	case l.closed:
		l.mu.Unlock()
		return false, ErrClosed
	case !l.active:
		l.mu.Unlock()
		return false, nil
	}
	bio := next(l.bio)
	if err := bio.Validate(); err != nil {
		l.mu.Unlock()
		return false, err
	}
	l.bio = bio
	epoch := l.epoch
	l.debouncer.Arm(func() { l.settle(epoch) })
	l.publishLocked()
	return true, nil
}

// FetchNow issues a fetch immediately, bypassing the debounce.
// A pending debounced fetch is left armed.
func (l *Loop) FetchNow(ctx context.Context) error {
	l.mu.Lock()
	switch {
	case l.closed:
		l.mu.Unlock()
		return ErrClosed
	case !l.active:
		l.mu.Unlock()
		return ErrInactive
	}
	l.issueLocked(ctx)
	l.publishLocked()
	return nil
}

// Close cancels the timer and in-flight requests and waits for them to finish.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.active = false
	l.epoch++
	l.debouncer.Cancel()
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()
}

// settle runs when the debounce quiet period elapses.
func (l *Loop) settle(epoch uint64) {
	l.mu.Lock()
	if l.closed || !l.active || epoch != l.epoch {
		l.mu.Unlock()
		return
	}
	l.issueLocked(l.ctx)
	l.publishLocked()
}

// issueLocked starts a fetch for the current snapshot. Caller holds l.mu.
func (l *Loop) issueLocked(parent context.Context) {
	l.issued++
	gen := l.issued
	epoch := l.epoch
	bio := l.bio
	l.inflight++
	l.wg.Add(1)

	log.Debug().
		Uint64("generation", gen).
		Int("heartRate", bio.HeartRate).
		Str("stress", string(bio.StressLevel)).
		Msg("Issuing recommendation fetch")

	go l.fetch(context.WithoutCancel(parent), epoch, gen, bio)
}

func (l *Loop) fetch(parent context.Context, epoch, gen uint64, bio models.BioSnapshot) {
	defer l.wg.Done()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	stop := context.AfterFunc(l.ctx, cancel)
	defer stop()
	if l.timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, l.timeout)
		defer cancelTimeout()
	}

	locale := l.locale()
	started := l.clock.Now()

	var (
		rec models.Recommendation
		err error
	)
	if l.recommender == nil {
		err = &genai.FetchError{Kind: genai.UpstreamError, Err: errors.New("no recommender configured")}
	} else {
		rec, err = l.recommender.Recommend(ctx, bio, locale, l.preferences(ctx))
	}
	if err != nil && errors.Is(err, context.DeadlineExceeded) && genai.KindOf(err) != genai.NetworkUnavailable {
		err = &genai.FetchError{Kind: genai.NetworkUnavailable, Err: err}
	}

	outcome := "success"
	if err != nil {
		outcome = string(genai.KindOf(err))
	}
	l.metrics.recordFetch(l.ctx, outcome, l.clock.Now().Sub(started))

	l.complete(epoch, gen, locale, rec, err)
}

// complete reconciles a finished fetch into the state.
func (l *Loop) complete(epoch, gen uint64, locale string, rec models.Recommendation, err error) {
	l.mu.Lock()
	if l.closed || !l.active || epoch != l.epoch {
		l.mu.Unlock()
		l.metrics.recordStale(context.Background(), "session")
		log.Debug().Uint64("generation", gen).Msg("Discarding fetch result from ended session")
		return
	}

	l.inflight--
	if gen <= l.settled {
		l.metrics.recordStale(context.Background(), "superseded")
		log.Debug().Uint64("generation", gen).Uint64("settled", l.settled).Msg("Discarding superseded fetch result")
		l.publishLocked()
		return
	}
	l.settled = gen

	if err != nil {
		log.Warn().
			Err(err).
			Str("kind", string(genai.KindOf(err))).
			Uint64("generation", gen).
			Msg("Recommendation fetch failed, keeping previous recommendation")
		l.errMsg = ErrorMessage(locale)
	} else {
		l.rec = rec.Clone()
		l.errMsg = ""
	}
	l.publishLocked()
}

func (l *Loop) stateLocked() State {
	phase := PhaseIdle
	switch {
	case !l.active:
	case l.inflight > 0:
		phase = PhaseFetching
	case l.debouncer.Pending():
		phase = PhaseDebouncing
	default:
		phase = PhaseAwaiting
	}
	return State{
		Bio:            l.bio,
		Recommendation: l.rec.Clone(),
		Loading:        l.inflight > 0,
		Error:          l.errMsg,
		Active:         l.active,
		Phase:          phase,
	}
}

// publishLocked snapshots the state, releases l.mu and notifies observers.
// notifyMu is taken before l.mu is released so observers see states in order.
func (l *Loop) publishLocked() {
	st := l.stateLocked()
	observers := l.observers
	l.notifyMu.Lock()
	l.mu.Unlock()
	defer l.notifyMu.Unlock()

	for _, o := range observers {
		o.fn(st)
	}
}
