package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	// lockFile guards a data directory against concurrent writers.
	lockFile    = ".ttt.lock"
	lockTimeout = 10 * time.Second
	lockRetry   = 50 * time.Millisecond
)

// lockDataDir takes the data directory lock, waiting up to timeout for
// another process to release it.
func lockDataDir(ctx context.Context, dir string, timeout time.Duration) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("storage error: creating %s: %w", dir, err)
	}
	fl := flock.New(filepath.Join(dir, lockFile))
	if err := acquire(ctx, fl, dir, timeout); err != nil {
		return nil, err
	}
	return fl, nil
}

func acquire(ctx context.Context, fl *flock.Flock, dir string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ok, err := fl.TryLockContext(ctx, lockRetry)
	if ok {
		return nil
	}
	if err == nil || ctx.Err() != nil {
		return fmt.Errorf("time log in %s is in use by another ttt process", dir)
	}
	return fmt.Errorf("storage error: locking %s: %w", dir, err)
}

// release lets other processes use the data directory.
func (s *session) release() {
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
}

// locked runs fn while holding the data directory lock.
func (s *session) locked(ctx context.Context, fn func() error) error {
	if err := acquire(ctx, s.lock, s.dir, lockTimeout); err != nil {
		return err
	}
	defer s.release()
	return fn()
}
