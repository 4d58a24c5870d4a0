// Package settings holds the process-wide language and theme selection.
package settings

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/attune/internal/config"
	"github.com/thebtf/attune/internal/storage"
)

var (
	// ErrUnsupportedLanguage is returned for a locale without translations.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrUnsupportedTheme is returned for an unknown theme.
	ErrUnsupportedTheme = errors.New("unsupported theme")
)

// Themes lists the accepted theme names.
var Themes = []string{"light", "dark", "system"}

// Settings is the user-visible app configuration.
type Settings struct {
	Language string `json:"language"`
	Theme    string `json:"theme"`
}

// Validate checks both fields.
func (s Settings) Validate() error {
	if !config.IsSupportedLanguage(s.Language) {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, s.Language)
	}
	if !slices.Contains(Themes, s.Theme) {
		return fmt.Errorf("%w: %q", ErrUnsupportedTheme, s.Theme)
	}
	return nil
}

// Manager owns the current Settings. It is initialised from the store
// (or defaults) and writes through on every change.
type Manager struct {
	doc      *storage.Document[Settings]
	onChange []func(Settings)
	current  Settings
	mu       sync.RWMutex
}

// NewManager loads settings from doc, falling back to defaults for
// missing or invalid fields.
func NewManager(ctx context.Context, doc *storage.Document[Settings], defaults Settings) *Manager {
	loaded := doc.Get(ctx)
	if !config.IsSupportedLanguage(loaded.Language) {
		loaded.Language = defaults.Language
	}
	if !slices.Contains(Themes, loaded.Theme) {
		loaded.Theme = defaults.Theme
	}
	return &Manager{doc: doc, current: loaded}
}

// Get returns the current settings.
func (m *Manager) Get() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Language returns the current locale code.
func (m *Manager) Language() string {
	return m.Get().Language
}

// Theme returns the current theme.
func (m *Manager) Theme() string {
	return m.Get().Theme
}

// OnChange registers fn to run after every successful update.
func (m *Manager) OnChange(fn func(Settings)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// Update replaces both fields. Empty fields keep their current value.
func (m *Manager) Update(ctx context.Context, next Settings) (Settings, error) {
	next.Language = strings.ToLower(strings.TrimSpace(next.Language))
	next.Theme = strings.ToLower(strings.TrimSpace(next.Theme))

	m.mu.Lock()
	if next.Language == "" {
		next.Language = m.current.Language
	}
	if next.Theme == "" {
		next.Theme = m.current.Theme
	}
	if err := next.Validate(); err != nil {
		m.mu.Unlock()
		return m.Get(), err
	}
	if next == m.current {
		m.mu.Unlock()
		return next, nil
	}
	m.current = next
	m.doc.Set(ctx, next)
	observers := slices.Clone(m.onChange)
	m.mu.Unlock()

	log.Info().Str("language", next.Language).Str("theme", next.Theme).Msg("Settings updated")
	for _, fn := range observers {
		fn(next)
	}
	return next, nil
}

// SetLanguage changes the locale.
func (m *Manager) SetLanguage(ctx context.Context, lang string) error {
	_, err := m.Update(ctx, Settings{Language: lang})
	return err
}

// SetTheme changes the theme.
func (m *Manager) SetTheme(ctx context.Context, theme string) error {
	_, err := m.Update(ctx, Settings{Theme: theme})
	return err
}
