// Package watch keeps a long-running process in step with the time log
// files: it reloads modifications written by other processes and compacts
// on a schedule.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for a burst of file events to
// settle before reloading.
const DefaultDebounce = 100 * time.Millisecond

// Reloader picks up changes made to its save file by someone else.
type Reloader interface {
	MaybeReload() (bool, error)
}

// Compactor folds pending modifications into the historical log.
type Compactor interface {
	Compact() error
}

// Watcher reloads a Reloader whenever the file it persists to changes.
type Watcher struct {
	// Path is the file to watch.
	Path string
	// Target is reloaded after changes to Path.
	Target Reloader
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration
	// OnReload, if set, is called after every reload that found changes.
	OnReload func()
	// Logger is optional, uses slog.Default() if nil.
	Logger *slog.Logger
}

// Run watches until ctx is done. The directory holding Path is watched
// rather than the file itself, since every save replaces the file with a
// rename.
func (w *Watcher) Run(ctx context.Context) error {
	log := w.Logger
	if log == nil {
		log = slog.Default()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	target := filepath.Clean(w.Path)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Create|fsnotify.Write|fsnotify.Rename) {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn("file watcher error", "path", target, "error", err)
		case <-timer.C:
			reloaded, err := w.Target.MaybeReload()
			if err != nil {
				log.Error("could not reload time log modifications", "path", target, "error", err)
				continue
			}
			if reloaded {
				log.Debug("reloaded time log modifications", "path", target)
				if w.OnReload != nil {
					w.OnReload()
				}
			}
		}
	}
}

// Compact calls c.Compact every interval until ctx is done. Failures are
// logged; the next tick tries again.
func Compact(ctx context.Context, c Compactor, every time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Compact(); err != nil {
				logger.Error("scheduled compaction failed", "error", err)
			}
		}
	}
}
