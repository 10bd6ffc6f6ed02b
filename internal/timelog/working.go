package timelog

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/Tiliavir/trivial-time-log/internal/codec"
	"github.com/Tiliavir/trivial-time-log/internal/entryiter"
	"github.com/Tiliavir/trivial-time-log/internal/model"
	"github.com/Tiliavir/trivial-time-log/internal/storage"
)

const (
	// HistoricalFile holds the compacted log.
	HistoricalFile = "timelog.xml"
	// ModificationsFile holds the pending changes not yet compacted.
	ModificationsFile = "timelog-mods.xml"
)

// WorkingLog is the time log an application reads and writes: a Historical
// log with a persistent Overlay on top of it.
type WorkingLog struct {
	historical *Historical
	overlay    *Overlay
	writer     *storage.SafeWriter
	log        *slog.Logger

	idMu   sync.Mutex
	lastID uint64
	seeded bool
}

type options struct {
	logger        *slog.Logger
	compactOnOpen bool
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCompactOnOpen controls whether Open folds leftover modifications into
// the historical log. It defaults to true.
func WithCompactOnOpen(enabled bool) Option {
	return func(o *options) { o.compactOnOpen = enabled }
}

// Open opens the working log stored in dir. Both files may be missing.
//
// Leftover modifications are compacted right away. A failed compaction is
// logged and leaves them pending; the log is usable either way.
func Open(fs afero.Fs, dir string, opts ...Option) (*WorkingLog, error) {
	o := options{compactOnOpen: true}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	w := &WorkingLog{
		historical: NewHistorical(fs, filepath.Join(dir, HistoricalFile), o.logger),
		writer:     storage.NewSafeWriter(fs),
		log:        o.logger,
	}
	overlay, err := NewOverlay(w.historical,
		WithIDSource(w),
		WithSaveFile(w.writer, filepath.Join(dir, ModificationsFile)),
		WithOverlayLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}
	w.overlay = overlay

	if o.compactOnOpen {
		if err := w.Compact(); err != nil {
			w.log.Warn("could not compact time log", "dir", dir, "error", err)
		}
	}
	return w, nil
}

func (w *WorkingLog) Filter(path string, from, to time.Time) (entryiter.Entries, error) {
	return w.overlay.Filter(path, from, to)
}

func (w *WorkingLog) AddModification(m model.Modification) error {
	return w.overlay.AddModification(m)
}

func (w *WorkingLog) AddModifications(ms []model.Modification) error {
	return w.overlay.AddModifications(ms)
}

// Modification returns the pending change for id, if there is one.
func (w *WorkingLog) Modification(id uint64) (model.PendingChange, bool) {
	return w.overlay.Modification(id)
}

// Subscribe registers fn for every change to the log. Events carry the
// working log as their source.
func (w *WorkingLog) Subscribe(fn Listener) Subscription {
	return w.overlay.Subscribe(func(e Event) {
		e.Source = w
		fn(e)
	})
}

func (w *WorkingLog) Unsubscribe(s Subscription) bool {
	return w.overlay.Unsubscribe(s)
}

func (w *WorkingLog) IsDirty() bool { return w.overlay.IsDirty() }

// Save persists pending modifications.
func (w *WorkingLog) Save() error { return w.overlay.Save() }

// MaybeReload picks up modifications written by another process.
func (w *WorkingLog) MaybeReload() (bool, error) {
	reloaded, err := w.overlay.MaybeReload()
	if reloaded {
		w.idMu.Lock()
		w.seeded = false
		w.idMu.Unlock()
	}
	return reloaded, err
}

// NextID returns an id larger than any in the historical log, the pending
// modifications, or handed out before. The counter is seeded by scanning
// both on first use; when the scan fails nothing is handed out and the next
// call scans again.
func (w *WorkingLog) NextID() (uint64, error) {
	w.idMu.Lock()
	defer w.idMu.Unlock()
	if !w.seeded {
		top, err := w.maxID()
		if err != nil {
			return 0, err
		}
		w.lastID = max(w.lastID, top)
		w.seeded = true
	}
	w.lastID++
	return w.lastID, nil
}

// GetNextID is NextID for IDSource callers. It panics when the historical
// log cannot be scanned, since any id it returned could collide.
func (w *WorkingLog) GetNextID() uint64 {
	id, err := w.NextID()
	if err != nil {
		panic(fmt.Errorf("timelog: cannot assign an entry id: %w", err))
	}
	return id
}

func (w *WorkingLog) maxID() (uint64, error) {
	top, err := w.historical.MaxID()
	if err != nil {
		return 0, fmt.Errorf("scanning %s for ids: %w", w.historical.Path(), err)
	}
	w.overlay.mu.Lock()
	for id := range w.overlay.pending {
		top = max(top, id)
	}
	w.overlay.mu.Unlock()
	return top, nil
}

// Compact writes the merged view into the historical log and clears the
// pending modifications. Deleted entries are dropped and renames folded into
// their paths. Modifications another process saved since the last load are
// picked up first. Nothing is written when there is nothing pending. When
// writing fails the historical log and the modifications stay as they were.
func (w *WorkingLog) Compact() error {
	compacted, err := w.overlay.foldInto(func(all entryiter.Entries) error {
		recs := entryiter.Map(all, func(e model.LogEntry) model.PendingChange {
			return model.PendingChange{Entry: e}
		})
		return w.writer.Write(w.historical.Path(), func(out io.Writer) error {
			return codec.Write(out, recs)
		})
	})
	if compacted {
		w.log.Debug("compacted time log", "file", w.historical.Path())
	}
	// Compaction may have picked up modifications saved by another process.
	w.idMu.Lock()
	w.seeded = false
	w.idMu.Unlock()
	return err
}

// Deferred returns an in-memory overlay above the working log. Changes made
// to it stay out of the working log until Commit; Clear discards them. The
// caller should Close it when done.
func (w *WorkingLog) Deferred() *Overlay {
	o, _ := NewOverlay(w, WithIDSource(w), WithOverlayLogger(w.log))
	return o
}
