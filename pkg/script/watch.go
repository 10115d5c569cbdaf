package script

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is the delay between the last change to a watched script
// and its re-evaluation.
const DefaultDebounce = 500 * time.Millisecond

// Watcher re-runs a script whenever its file changes.
type Watcher struct {
	evaluator *Evaluator
	logger    zerolog.Logger
	debounce  time.Duration

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher running scripts with evaluator.
func NewWatcher(evaluator *Evaluator, logger zerolog.Logger) *Watcher {
	return &Watcher{
		evaluator: evaluator,
		logger:    logger.With().Str("component", "watch").Logger(),
		debounce:  DefaultDebounce,
	}
}

// SetDebounce changes the re-evaluation delay.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Watch runs the script at path once, then again after every change, and
// passes each result to fn. It blocks until ctx is done.
//
// The directory containing the script is watched rather than the file, so
// editors that save by renaming a temporary file are handled.
func (w *Watcher) Watch(ctx context.Context, path string, fn func(*Scene, error)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve script path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	w.mu.Lock()
	w.watcher = watcher
	w.mu.Unlock()
	defer w.Stop()

	w.logger.Info().Str("script", abs).Msg("Started watching script")

	runs := make(chan struct{}, 1)
	runs <- struct{}{}
	var reloadTimer *time.Timer
	defer func() {
		if reloadTimer != nil {
			reloadTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-runs:
			scene, err := w.evaluator.RunFile(ctx, abs)
			if ctx.Err() != nil {
				return nil
			}
			fn(scene, err)

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			w.logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("Script changed")

			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			reloadTimer = time.AfterFunc(w.debounce, func() {
				select {
				case runs <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

// Stop stops watching for file changes.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	w.watcher = nil
	return err
}
