package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidEntry is returned when a user-authored entry fails validation.
var ErrInvalidEntry = errors.New("invalid entry")

// JournalEntry is a mood log with free text.
type JournalEntry struct {
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Text      string   `json:"text"`
	Tags      []string `json:"tags,omitempty"`
	Mood      int      `json:"mood"`
}

// ReframeEntry pairs a negative thought with its reframed version.
type ReframeEntry struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Thought   string `json:"thought"`
	Reframe   string `json:"reframe"`
}

// Mix is a saved set of soundscape layers with per-layer volume.
type Mix struct {
	ID     string                    `json:"id"`
	Name   string                    `json:"name"`
	Layers map[SoundscapeKey]float64 `json:"layers"`
}

// Preferences is the user's opaque preference object.
// Only a few keys are interpreted by attune itself.
type Preferences map[string]any

const (
	PrefGenre = "genre"
	PrefNotes = "notes"
)

// String returns the string value for key, or "".
func (p Preferences) String(key string) string {
	if p == nil {
		return ""
	}
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// NewJournalEntry validates and stamps a journal entry.
func NewJournalEntry(mood int, text string, tags []string, now time.Time) (*JournalEntry, error) {
	if mood < 1 || mood > 5 {
		return nil, fmt.Errorf("%w: mood must be between 1 and 5, got %d", ErrInvalidEntry, mood)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidEntry)
	}
	return &JournalEntry{
		ID:        newID(),
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Mood:      mood,
		Text:      text,
		Tags:      tags,
	}, nil
}

// NewReframeEntry validates and stamps a reframe entry.
func NewReframeEntry(thought, reframe string, now time.Time) (*ReframeEntry, error) {
	thought = strings.TrimSpace(thought)
	reframe = strings.TrimSpace(reframe)
	if thought == "" || reframe == "" {
		return nil, fmt.Errorf("%w: thought and reframe are required", ErrInvalidEntry)
	}
	return &ReframeEntry{
		ID:        newID(),
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Thought:   thought,
		Reframe:   reframe,
	}, nil
}

// NewMix validates a mix. Volumes are clamped to [0, 1].
func NewMix(name string, layers map[SoundscapeKey]float64) (*Mix, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: mix name is required", ErrInvalidEntry)
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: mix needs at least one layer", ErrInvalidEntry)
	}
	clamped := make(map[SoundscapeKey]float64, len(layers))
	for k, v := range layers {
		clamped[k] = min(max(v, 0), 1)
	}
	return &Mix{ID: newID(), Name: name, Layers: clamped}, nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
