package timelog_test

import (
	"bytes"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/trivial-time-log/internal/codec"
	"github.com/Tiliavir/trivial-time-log/internal/entryiter"
	"github.com/Tiliavir/trivial-time-log/internal/model"
	"github.com/Tiliavir/trivial-time-log/internal/timelog"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func entry(id uint64, path string, start time.Time, elapsed int64) model.LogEntry {
	return model.LogEntry{ID: id, Path: path, Start: model.TimePtr(start), Elapsed: elapsed}
}

func writeRecords(t *testing.T, fs afero.Fs, path string, recs ...model.PendingChange) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, codec.Write(&buf, entryiter.FromSlice(recs)))
	require.NoError(t, afero.WriteFile(fs, path, buf.Bytes(), 0o600))
}

func writeEntries(t *testing.T, fs afero.Fs, path string, entries ...model.LogEntry) {
	t.Helper()
	recs := make([]model.PendingChange, len(entries))
	for i, e := range entries {
		recs[i] = model.PendingChange{Entry: e}
	}
	writeRecords(t, fs, path, recs...)
}

func collect(t *testing.T, tl timelog.TimeLog, path string, from, to time.Time) []model.LogEntry {
	t.Helper()
	it, err := tl.Filter(path, from, to)
	require.NoError(t, err)
	entries, err := entryiter.Collect(it)
	require.NoError(t, err)
	return entries
}

func all(t *testing.T, tl timelog.TimeLog) []model.LogEntry {
	t.Helper()
	return collect(t, tl, "", time.Time{}, time.Time{})
}

func assertEntries(t *testing.T, want, got []model.LogEntry) {
	t.Helper()
	if !assert.Len(t, got, len(want)) {
		return
	}
	for i := range want {
		assert.True(t, want[i].Equal(got[i]), "entry %d: want %+v, got %+v", i, want[i], got[i])
	}
}

func idsOf(entries []model.LogEntry) []uint64 {
	ids := make([]uint64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids
}

func byID(t *testing.T, entries []model.LogEntry, id uint64) model.LogEntry {
	t.Helper()
	for _, e := range entries {
		if e.ID == id {
			return e
		}
	}
	t.Fatalf("no entry with id %d", id)
	return model.LogEntry{}
}
