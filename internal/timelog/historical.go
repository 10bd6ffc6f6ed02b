package timelog

import (
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/Tiliavir/trivial-time-log/internal/codec"
	"github.com/Tiliavir/trivial-time-log/internal/entryiter"
	"github.com/Tiliavir/trivial-time-log/internal/model"
)

// Historical is the compacted log on disk. Nothing is cached: every Filter
// call opens and streams the file again.
type Historical struct {
	fs   afero.Fs
	path string
	log  *slog.Logger
}

// NewHistorical returns the log stored at path. A missing file is an empty
// log.
func NewHistorical(fs afero.Fs, path string, logger *slog.Logger) *Historical {
	if logger == nil {
		logger = slog.Default()
	}
	return &Historical{fs: fs, path: path, log: logger}
}

// Path returns the file the log is stored in.
func (h *Historical) Path() string { return h.path }

func (h *Historical) records() (entryiter.Records, error) {
	recs, err := codec.Open(h.fs, h.path, h.log)
	if err != nil {
		return nil, ioError("opening", h.path, err)
	}
	return recs, nil
}

func (h *Historical) Filter(path string, from, to time.Time) (entryiter.Entries, error) {
	recs, err := h.records()
	if err != nil {
		return nil, err
	}
	recs = entryiter.Filter(recs, func(r model.PendingChange) bool {
		return r.Flag != model.BatchRename
	})
	entries := entryiter.Map(recs, func(r model.PendingChange) model.LogEntry {
		return r.Entry
	})
	return entryiter.Select(entries, query(path, from, to)), nil
}

// MaxID returns the largest id stored in the file.
func (h *Historical) MaxID() (uint64, error) {
	recs, err := h.records()
	if err != nil {
		return 0, err
	}
	var top uint64
	err = entryiter.ForEach(recs, func(r model.PendingChange) error {
		if r.Entry.ID > top {
			top = r.Entry.ID
		}
		return nil
	})
	return top, err
}
