package storage_test

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/trivial-time-log/internal/storage"
	"github.com/Tiliavir/trivial-time-log/internal/storage/storagetest"
)

func writeString(s string) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	}
}

func listDir(t *testing.T, fs afero.Fs, dir string) []string {
	t.Helper()
	infos, err := afero.ReadDir(fs, dir)
	require.NoError(t, err)
	var names []string
	for _, fi := range infos {
		names = append(names, fi.Name())
	}
	return names
}

func TestSafeWriterWrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := storage.NewSafeWriter(fs)

	require.NoError(t, w.Write("/data/timelog.xml", writeString("first")))
	require.NoError(t, w.Write("/data/timelog.xml", writeString("second")))

	got, err := afero.ReadFile(fs, "/data/timelog.xml")
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
	assert.Equal(t, []string{"timelog.xml"}, listDir(t, fs, "/data"), "temp and staging files are removed")
}

func TestSafeWriterIntegrityFailure(t *testing.T) {
	fs := storagetest.NewFaultFs(afero.NewMemMapFs())
	w := storage.NewSafeWriter(fs)
	require.NoError(t, w.Write("/data/timelog.xml", writeString("original contents")))

	fs.Truncate(func(name string) bool { return strings.HasSuffix(name, ".new") })
	err := w.Write("/data/timelog.xml", writeString("replacement contents"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, storage.ErrIntegrity), "got %v", err)

	got, err := afero.ReadFile(fs, "/data/timelog.xml")
	require.NoError(t, err)
	assert.Equal(t, "original contents", string(got))
	assert.Equal(t, []string{"timelog.xml"}, listDir(t, fs, "/data"))

	fs.Truncate(nil)
	require.NoError(t, w.Write("/data/timelog.xml", writeString("replacement contents")))
}

func TestSafeWriterTempFault(t *testing.T) {
	fs := storagetest.NewFaultFs(afero.NewMemMapFs())
	w := storage.NewSafeWriter(fs)
	fs.Truncate(func(name string) bool { return strings.HasSuffix(name, ".tmp") })

	// A short temp file is copied faithfully, so only the first hash
	// disagrees with the rest.
	err := w.Write("/data/timelog.xml", writeString("contents"))
	assert.ErrorIs(t, err, storage.ErrIntegrity)
	_, statErr := fs.Stat("/data/timelog.xml")
	assert.True(t, os.IsNotExist(statErr))
}

func TestSafeWriterFillError(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := storage.NewSafeWriter(fs)
	require.NoError(t, w.Write("/data/f", writeString("keep")))

	boom := errors.New("boom")
	err := w.Write("/data/f", func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := afero.ReadFile(fs, "/data/f")
	require.NoError(t, err)
	assert.Equal(t, "keep", string(got))
	assert.Equal(t, []string{"f"}, listDir(t, fs, "/data"))
}

func TestSafeWriterIOError(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	w := storage.NewSafeWriter(fs)
	err := w.Write("/data/f", writeString("x"))
	assert.ErrorIs(t, err, storage.ErrIO)
}

func TestTimer(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := storage.NewSafeWriter(fs)

	timer, err := storage.LoadTimer(fs, "/base")
	require.NoError(t, err)
	assert.Nil(t, timer)

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, storage.SaveTimer(w, "/base", storage.Timer{Path: "/Proj/Design", Start: start}))

	timer, err = storage.LoadTimer(fs, "/base")
	require.NoError(t, err)
	require.NotNil(t, timer)
	assert.Equal(t, "/Proj/Design", timer.Path)
	assert.True(t, start.Equal(timer.Start))

	require.NoError(t, storage.ClearTimer(fs, "/base"))
	require.NoError(t, storage.ClearTimer(fs, "/base"))
	timer, err = storage.LoadTimer(fs, "/base")
	require.NoError(t, err)
	assert.Nil(t, timer)
}

func TestTimerCorrupt(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/base/timer.json", []byte("{bad json"), 0o600))

	_, err := storage.LoadTimer(fs, "/base")
	require.Error(t, err)

	exists, err := afero.Exists(fs, "/base/timer.json.corrupt")
	require.NoError(t, err)
	assert.True(t, exists, "expected backup file to exist after corrupt JSON")
}
