package watch_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/trivial-time-log/internal/watch"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeReloader struct{ calls atomic.Int32 }

func (f *fakeReloader) MaybeReload() (bool, error) {
	f.calls.Add(1)
	return true, nil
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "timelog-mods.xml")
	target := &fakeReloader{}
	var notified atomic.Int32
	w := &watch.Watcher{
		Path:     path,
		Target:   target,
		Debounce: 10 * time.Millisecond,
		OnReload: func() { notified.Add(1) },
		Logger:   quiet(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Keep writing until the watcher is set up.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(dir, "other.xml"), []byte("x"), 0o600)
		_ = os.WriteFile(path, []byte("<timeLogEntries/>"), 0o600)
		return target.calls.Load() > 0
	}, 2*time.Second, 50*time.Millisecond)
	assert.Positive(t, notified.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherMissingDirectory(t *testing.T) {
	w := &watch.Watcher{
		Path:   filepath.Join(t.TempDir(), "missing", "timelog-mods.xml"),
		Target: &fakeReloader{},
		Logger: quiet(),
	}
	assert.Error(t, w.Run(context.Background()))
}

type fakeCompactor struct {
	calls atomic.Int32
	err   error
}

func (f *fakeCompactor) Compact() error {
	f.calls.Add(1)
	return f.err
}

func TestCompactRunsUntilCancelled(t *testing.T) {
	c := &fakeCompactor{err: errors.New("disk full")}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		watch.Compact(ctx, c, 5*time.Millisecond, quiet())
		close(done)
	}()

	assert.Eventually(t, func() bool { return c.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond,
		"a failed compaction does not stop the schedule")
	cancel()
	<-done
}
