// Package session provides session lifecycle management for attune.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/attune/internal/adaptive"
	"github.com/thebtf/attune/internal/storage"
	"github.com/thebtf/attune/pkg/models"
)

var (
	// ErrSessionActive is returned by Start while a session is running.
	ErrSessionActive = errors.New("session already active")
	// ErrInvalidActivity is returned by Start for a blank activity label.
	ErrInvalidActivity = errors.New("activity is required")
)

// Options configures a Controller.
type Options struct {
	Loop    *adaptive.Loop
	History *storage.Collection[models.SessionRecord]
	Now     func() time.Time
	// ArchivePlaceholder archives sessions that never received a recommendation.
	ArchivePlaceholder bool
}

// Controller starts and stops sessions and archives finished ones.
type Controller struct {
	loop      *adaptive.Loop
	history   *storage.Collection[models.SessionRecord]
	now       func() time.Time
	onStarted func(activity string)
	onStopped func(rec *models.SessionRecord)
	activity  string
	startedAt time.Time
	mu        sync.Mutex
	active    bool
	archivePH bool
}

// New creates a Controller in the pre-session state.
func New(opts Options) *Controller {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		loop:      opts.Loop,
		history:   opts.History,
		now:       now,
		archivePH: opts.ArchivePlaceholder,
	}
}

// SetOnSessionStarted sets the callback invoked after a session starts.
func (c *Controller) SetOnSessionStarted(fn func(activity string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStarted = fn
}

// SetOnSessionStopped sets the callback invoked after a session stops.
// rec is nil when nothing was archived.
func (c *Controller) SetOnSessionStopped(fn func(rec *models.SessionRecord)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onStopped = fn
}

// Start begins a session at baseline with the given activity and fetches immediately.
func (c *Controller) Start(ctx context.Context, activity string) error {
	activity = strings.TrimSpace(activity)
	if activity == "" {
		return ErrInvalidActivity
	}

	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return ErrSessionActive
	}
	if err := c.loop.Activate(models.Baseline(activity)); err != nil {
		c.mu.Unlock()
		return err
	}
	c.active = true
	c.activity = activity
	c.startedAt = c.now()
	onStarted := c.onStarted
	c.mu.Unlock()

	log.Info().Str("activity", activity).Msg("Session started")

	if err := c.loop.FetchNow(ctx); err != nil {
		log.Warn().Err(err).Msg("Initial recommendation fetch not issued")
	}
	if onStarted != nil {
		onStarted(activity)
	}
	return nil
}

// Stop ends the session. The final snapshot and recommendation are archived
// at the head of history unless the recommendation is still the placeholder
// and ArchivePlaceholder is off. Stopping when idle does nothing.
func (c *Controller) Stop(ctx context.Context) *models.SessionRecord {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return nil
	}

	last := c.loop.Deactivate(models.Baseline(c.activity))
	c.active = false
	duration := c.now().Sub(c.startedAt)

	var rec *models.SessionRecord
	if c.archivePH || !last.Recommendation.IsPlaceholder() {
		rec = models.NewSessionRecord(last.Bio, last.Recommendation, c.now())
		c.history.Prepend(ctx, *rec)
	}
	onStopped := c.onStopped
	c.mu.Unlock()

	evt := log.Info().Str("activity", last.Bio.Activity).Dur("duration", duration)
	if rec != nil {
		evt = evt.Str("recordId", rec.ID)
	}
	evt.Bool("archived", rec != nil).Msg("Session stopped")

	if onStopped != nil {
		onStopped(rec)
	}
	return rec
}

// Active reports whether a session is running.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Activity returns the label of the running or last session.
func (c *Controller) Activity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activity
}

// View returns which screen the user should see.
func (c *Controller) View() models.View {
	if c.Active() {
		return models.ViewDashboard
	}
	return models.ViewPreSession
}

// History returns archived sessions, most recent first.
func (c *Controller) History(ctx context.Context) []models.SessionRecord {
	return c.history.All(ctx)
}

// ClearHistory removes every archived session.
func (c *Controller) ClearHistory(ctx context.Context) {
	c.history.Clear(ctx)
}

// RemoveRecord removes one archived session. It reports whether it existed.
func (c *Controller) RemoveRecord(ctx context.Context, id string) bool {
	return c.history.Remove(ctx, id)
}
