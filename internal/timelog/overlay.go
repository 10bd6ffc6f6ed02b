package timelog

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"sync"
	"time"

	"github.com/Tiliavir/trivial-time-log/internal/codec"
	"github.com/Tiliavir/trivial-time-log/internal/entryiter"
	"github.com/Tiliavir/trivial-time-log/internal/model"
	"github.com/Tiliavir/trivial-time-log/internal/storage"
)

// Overlay holds pending changes on top of a parent TimeLog.
//
// Reading through an Overlay yields the parent's entries with every pending
// rename and change applied, followed by the entries added in the overlay.
// An Overlay with a save file persists itself after every change; one
// without lives in memory until it is committed into its parent or cleared.
type Overlay struct {
	parent TimeLog
	ids    IDSource
	log    *slog.Logger
	writer *storage.SafeWriter
	path   string

	mu       sync.Mutex
	pending  map[uint64]model.PendingChange
	order    []uint64
	renames  RenameTracker
	dirty    bool
	saved    stamp

	listeners registry
	parentSrc EventSource
	parentSub Subscription
}

// OverlayOption configures an Overlay.
type OverlayOption func(*Overlay)

// WithIDSource lets the overlay hand out new entry ids.
func WithIDSource(ids IDSource) OverlayOption {
	return func(o *Overlay) { o.ids = ids }
}

// WithSaveFile persists the overlay to path through w.
func WithSaveFile(w *storage.SafeWriter, path string) OverlayOption {
	return func(o *Overlay) {
		o.writer = w
		o.path = path
	}
}

// WithOverlayLogger sets the logger. The default is slog.Default().
func WithOverlayLogger(l *slog.Logger) OverlayOption {
	return func(o *Overlay) { o.log = l }
}

// NewOverlay returns an overlay above parent, loading the save file if one
// is configured. When parent publishes events the overlay repeats them to its
// own listeners until Close is called.
func NewOverlay(parent TimeLog, opts ...OverlayOption) (*Overlay, error) {
	o := &Overlay{
		parent:  parent,
		pending: make(map[uint64]model.PendingChange),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	if o.writer != nil {
		if err := o.load(); err != nil {
			return nil, err
		}
	}
	if src, ok := parent.(EventSource); ok {
		o.parentSrc = src
		o.parentSub = src.Subscribe(o.repeat)
	}
	return o, nil
}

// Close stops repeating parent events.
func (o *Overlay) Close() {
	if o.parentSrc != nil {
		o.parentSrc.Unsubscribe(o.parentSub)
		o.parentSrc = nil
	}
}

func (o *Overlay) IsDirty() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dirty
}

// IsEmpty reports whether the overlay holds neither changes nor renames.
func (o *Overlay) IsEmpty() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.isEmptyLocked()
}

func (o *Overlay) isEmptyLocked() bool {
	return len(o.pending) == 0 && o.renames.Len() == 0
}

// Modification returns the pending change for id.
func (o *Overlay) Modification(id uint64) (model.PendingChange, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	c, ok := o.pending[id]
	return c, ok
}

// GetNextID returns a fresh id from the configured id source. It panics when
// the overlay has none.
func (o *Overlay) GetNextID() uint64 {
	if o.ids == nil {
		panic("timelog: overlay has no id source")
	}
	return o.ids.GetNextID()
}

func (o *Overlay) Subscribe(fn Listener) Subscription { return o.listeners.add(fn) }

func (o *Overlay) Unsubscribe(s Subscription) bool { return o.listeners.remove(s) }

func (o *Overlay) refresh() { o.listeners.fire(Event{Source: o}) }

// AddModification applies m. Added and deleted changes replace whatever is
// pending for the id, a modification merges into it, and a rename is
// recorded and applied to every pending change. The change stays applied in
// memory even when persisting it fails; that error is returned.
func (o *Overlay) AddModification(m model.Modification) error {
	if err := validate(m); err != nil {
		return err
	}
	o.mu.Lock()
	o.applyLocked(m)
	err := o.saveLocked()
	o.mu.Unlock()

	o.listeners.fire(Event{Source: o, Change: m})
	return err
}

// AddModifications applies ms in order, saves once and sends a single
// refresh event. Nothing is applied if any modification is invalid.
func (o *Overlay) AddModifications(ms []model.Modification) error {
	if len(ms) == 0 {
		return nil
	}
	for _, m := range ms {
		if err := validate(m); err != nil {
			return err
		}
	}
	o.mu.Lock()
	for _, m := range ms {
		o.applyLocked(m)
	}
	err := o.saveLocked()
	o.mu.Unlock()

	o.refresh()
	return err
}

func validate(m model.Modification) error {
	switch m := m.(type) {
	case model.RenameInstruction:
		if err := m.Check(); err != nil {
			return fmt.Errorf("%w: rename %q: %w", ErrInvalid, m.OldPath, err)
		}
		return nil
	case model.PendingChange:
		switch m.Flag {
		case model.Added, model.Modified, model.Deleted:
			if m.ID() == 0 {
				return fmt.Errorf("%w: %s change without an entry id", ErrInvalid, m.Flag)
			}
			return nil
		case model.BatchRename:
			if _, err := model.DecodeRename(m.Entry); err != nil {
				return fmt.Errorf("%w: %w", ErrInvalid, err)
			}
			return nil
		}
		return ErrNoChange
	}
	return fmt.Errorf("%w: unsupported modification %T", ErrNoChange, m)
}

func (o *Overlay) applyLocked(m model.Modification) {
	switch m := m.(type) {
	case model.RenameInstruction:
		o.renames.Record(m)
		o.renameLocked(m)
	case model.PendingChange:
		if m.Flag == model.BatchRename {
			r, _ := model.DecodeRename(m.Entry)
			o.applyLocked(r)
			return
		}
		if prior, ok := o.pending[m.ID()]; ok && m.Flag == model.Modified {
			m = model.Merge(prior, m)
		}
		o.putLocked(m)
	}
	o.dirty = true
}

func (o *Overlay) putLocked(c model.PendingChange) {
	if _, ok := o.pending[c.ID()]; !ok {
		o.order = append(o.order, c.ID())
	}
	o.pending[c.ID()] = c
}

func (o *Overlay) renameLocked(r model.RenameInstruction) {
	for id, c := range o.pending {
		if path, ok := r.Apply(c.Entry.Path); ok {
			c.Entry.Path = path
			o.pending[id] = c
		}
	}
}

func (o *Overlay) resetLocked() {
	o.pending = make(map[uint64]model.PendingChange)
	o.order = nil
	o.renames.Reset()
}

// recordsLocked returns the overlay in file order: renames first, then the
// pending changes in the order their ids were first seen.
func (o *Overlay) recordsLocked() []model.PendingChange {
	recs := make([]model.PendingChange, 0, o.renames.Len()+len(o.order))
	for _, r := range o.renames.Instructions() {
		recs = append(recs, model.PendingChange{Flag: model.BatchRename, Entry: r.Encode()})
	}
	for _, id := range o.order {
		recs = append(recs, o.pending[id])
	}
	return recs
}

// Save persists the overlay. Without a save file it does nothing.
func (o *Overlay) Save() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.saveLocked()
}

func (o *Overlay) saveLocked() error {
	if o.writer == nil {
		return nil
	}
	recs := o.recordsLocked()
	err := o.writer.Write(o.path, func(w io.Writer) error {
		return codec.Write(w, entryiter.FromSlice(recs))
	})
	if err != nil {
		o.log.Error("unable to save time log modifications", "file", o.path, "error", err)
		return err
	}
	o.dirty = false
	if st, err := o.stampFile(); err == nil {
		o.saved = st
	}
	return nil
}

// Clear drops every pending change and rename.
func (o *Overlay) Clear() error {
	o.mu.Lock()
	o.resetLocked()
	var err error
	if o.writer == nil {
		o.dirty = false
	} else {
		err = o.saveLocked()
	}
	o.mu.Unlock()

	o.refresh()
	return err
}

// Commit hands every rename and pending change to the parent and clears the
// overlay. It panics when the parent is not Modifiable.
func (o *Overlay) Commit() error {
	target, ok := o.parent.(Modifiable)
	if !ok {
		panic("timelog: cannot commit modifications, parent time log is not modifiable")
	}

	o.mu.Lock()
	mods := make([]model.Modification, 0, o.renames.Len()+len(o.order))
	for _, r := range o.renames.Instructions() {
		mods = append(mods, r)
	}
	for _, id := range o.order {
		mods = append(mods, o.pending[id])
	}
	o.resetLocked()
	var saveErr error
	if o.writer == nil {
		o.dirty = false
	} else {
		saveErr = o.saveLocked()
	}
	o.mu.Unlock()

	if err := target.AddModifications(mods); err != nil {
		return err
	}
	return saveErr
}

func (o *Overlay) Filter(path string, from, to time.Time) (entryiter.Entries, error) {
	o.mu.Lock()
	if o.isEmptyLocked() {
		o.mu.Unlock()
		return o.parent.Filter(path, from, to)
	}
	v := o.snapshotLocked()
	o.mu.Unlock()

	all, err := v.entries(o.parent)
	if err != nil {
		return nil, err
	}
	return entryiter.Select(all, query(path, from, to)), nil
}

// view is a copy of the overlay state that can be read without the lock.
type view struct {
	pending map[uint64]model.PendingChange
	added   []model.LogEntry
	renames []model.RenameInstruction
}

func (o *Overlay) snapshotLocked() view {
	v := view{
		pending: maps.Clone(o.pending),
		renames: o.renames.Instructions(),
	}
	for _, id := range o.order {
		if c := o.pending[id]; c.Flag == model.Added {
			v.added = append(v.added, c.Entry)
		}
	}
	return v
}

// entries merges the view with every entry of parent: parent entries first,
// renamed and modified, deleted ones dropped, then the added entries.
func (v view) entries(parent TimeLog) (entryiter.Entries, error) {
	base, err := parent.Filter("", time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	kept := entryiter.Filter(base, func(e model.LogEntry) bool {
		c, ok := v.pending[e.ID]
		return !ok || (c.Flag != model.Deleted && c.Flag != model.Added)
	})
	modified := entryiter.Map(kept, func(e model.LogEntry) model.LogEntry {
		e.Path = model.RenamePath(v.renames, e.Path)
		if c, ok := v.pending[e.ID]; ok {
			e = model.ApplyChanges(e, c.Entry, false)
		}
		return e
	})
	return entryiter.Concat(modified, entryiter.FromSlice(v.added)), nil
}

// foldInto hands the merged view of the overlay and its parent to write and,
// if write succeeds, clears the overlay. A save file replaced by another
// process is reloaded first, so a stale overlay is never folded twice. The
// lock is held throughout so no change can slip in between writing and
// clearing.
func (o *Overlay) foldInto(write func(entryiter.Entries) error) (bool, error) {
	o.mu.Lock()
	reloaded, err := o.reloadLocked()
	if err != nil {
		o.mu.Unlock()
		return false, err
	}
	if reloaded {
		defer o.refresh()
	}
	if o.isEmptyLocked() {
		o.mu.Unlock()
		return false, nil
	}
	all, err := o.snapshotLocked().entries(o.parent)
	if err != nil {
		o.mu.Unlock()
		return false, err
	}
	err = write(all)
	all.Close()
	if err != nil {
		o.mu.Unlock()
		return false, err
	}
	o.resetLocked()
	err = o.saveLocked()
	o.mu.Unlock()

	o.refresh()
	return true, err
}

// stamp identifies the content of the save file as last seen.
type stamp struct {
	mod  time.Time
	size int64
	sum  uint64
}

func (s stamp) same(o stamp) bool {
	return s.mod.Equal(o.mod) && s.size == o.size && s.sum == o.sum
}

// stampFile reads the current stamp of the save file. A missing file has
// the zero stamp.
func (o *Overlay) stampFile() (stamp, error) {
	fi, err := o.writer.Fs().Stat(o.path)
	if errors.Is(err, os.ErrNotExist) {
		return stamp{}, nil
	}
	if err != nil {
		return stamp{}, ioError("checking", o.path, err)
	}
	sum, err := o.writer.Checksum(o.path)
	if err != nil {
		return stamp{}, err
	}
	return stamp{mod: fi.ModTime(), size: fi.Size(), sum: sum}, nil
}

func (o *Overlay) load() error {
	o.mu.Lock()
	err := o.loadLocked()
	o.mu.Unlock()
	if err != nil {
		return err
	}
	o.refresh()
	return nil
}

// loadLocked replaces the in-memory state with the save file's content.
func (o *Overlay) loadLocked() error {
	st, err := o.stampFile()
	if err != nil {
		return err
	}
	recs, err := codec.Open(o.writer.Fs(), o.path, o.log)
	if err != nil {
		return ioError("opening", o.path, err)
	}
	pending := make(map[uint64]model.PendingChange)
	var order []uint64
	var renames RenameTracker
	err = entryiter.ForEach(recs, func(r model.PendingChange) error {
		switch r.Flag {
		case model.BatchRename:
			instr, err := model.DecodeRename(r.Entry)
			if err != nil {
				o.log.Warn("discarding garbled rename", "file", o.path, "error", err)
				return nil
			}
			renames.Record(instr)
		case model.NoChange:
			o.log.Warn("discarding unflagged modification", "file", o.path, "id", r.ID())
		default:
			if r.ID() == 0 {
				o.log.Warn("discarding modification without an id", "file", o.path, "flag", r.Flag)
				return nil
			}
			if _, seen := pending[r.ID()]; !seen {
				order = append(order, r.ID())
			}
			pending[r.ID()] = r
		}
		return nil
	})
	if err != nil {
		return err
	}

	o.pending, o.order, o.renames = pending, order, renames
	o.dirty = false
	o.saved = st
	return nil
}

// reloadLocked reloads the save file when another process has replaced it
// since it was last loaded or saved. Unsaved local changes are kept.
func (o *Overlay) reloadLocked() (bool, error) {
	if o.writer == nil || o.dirty {
		return false, nil
	}
	st, err := o.stampFile()
	if err != nil {
		return false, err
	}
	if st.same(o.saved) {
		return false, nil
	}
	return true, o.loadLocked()
}

// MaybeReload reloads the save file when its content differs from what was
// last loaded or saved, and reports whether it did.
func (o *Overlay) MaybeReload() (bool, error) {
	o.mu.Lock()
	reloaded, err := o.reloadLocked()
	o.mu.Unlock()
	if reloaded && err == nil {
		o.refresh()
	}
	return reloaded, err
}

// repeat passes a parent event on to the overlay's listeners, translated to
// what the change means once the overlay's own changes are applied.
func (o *Overlay) repeat(e Event) {
	change := e.Change
	switch c := change.(type) {
	case model.RenameInstruction:
		o.mu.Lock()
		o.renameLocked(c)
		o.mu.Unlock()
	case model.PendingChange:
		if c.Flag == model.BatchRename {
			if r, err := model.DecodeRename(c.Entry); err == nil {
				o.mu.Lock()
				o.renameLocked(r)
				o.mu.Unlock()
			}
			break
		}
		if local, ok := o.Modification(c.ID()); ok {
			resolved, ok := Resolve(c, &local)
			if !ok {
				return
			}
			change = resolved
		}
	}
	o.listeners.fire(Event{Source: o, Change: change})
}
