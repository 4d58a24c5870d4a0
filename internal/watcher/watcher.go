// Package watcher reports changes to a single file, such as the settings file.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/attune/internal/adaptive"
)

// DefaultDebounce coalesces the burst of events an editor or atomic rename produces.
const DefaultDebounce = 100 * time.Millisecond

// Watcher calls onChange after the target file is written, created or replaced.
// It watches the parent directory so atomic replacements are seen.
type Watcher struct {
	watcher    *fsnotify.Watcher
	ctx        context.Context
	cancel     context.CancelFunc
	onChange   func()
	debouncer  *adaptive.Debouncer
	done       chan struct{}
	targetPath string
	parentPath string
	mu         sync.Mutex
	running    bool
}

// New creates a Watcher for targetPath.
func New(targetPath string, onChange func()) (*Watcher, error) {
	return NewWithDebounce(targetPath, DefaultDebounce, onChange)
}

// NewWithDebounce creates a Watcher with a custom quiet period.
func NewWithDebounce(targetPath string, debounce time.Duration, onChange func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	target := filepath.Clean(targetPath)

	return &Watcher{
		targetPath: target,
		parentPath: filepath.Dir(target),
		onChange:   onChange,
		watcher:    fsw,
		ctx:        ctx,
		cancel:     cancel,
		debouncer:  adaptive.NewDebouncer(adaptive.SystemClock{}, debounce),
		done:       make(chan struct{}),
	}, nil
}

// Start begins watching.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addWatch(); err != nil {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		w.cancel()
		_ = w.watcher.Close()
		return err
	}

	go w.watchLoop()
	return nil
}

// Stop stops the watcher and waits for its loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	w.cancel()
	w.debouncer.Cancel()
	err := w.watcher.Close()
	<-w.done
	return err
}

func (w *Watcher) addWatch() error {
	if _, err := os.Stat(w.parentPath); err != nil {
		return err
	}
	return w.watcher.Add(w.parentPath)
}

func (w *Watcher) watchLoop() {
	defer close(w.done)

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.targetPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			log.Debug().Str("path", w.targetPath).Str("op", event.Op.String()).Msg("Watched file changed")
			w.debouncer.Arm(w.fire)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) fire() {
	if w.ctx.Err() != nil {
		return
	}
	if _, err := os.Stat(w.targetPath); err != nil {
		// Renamed away with no replacement yet.
		return
	}
	log.Info().Str("path", w.targetPath).Msg("Reloading after file change")
	if w.onChange != nil {
		w.onChange()
	}
}
