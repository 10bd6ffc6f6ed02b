package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

var (
	// ErrIntegrity is returned when a guarded write could not be verified.
	// The destination file is left as it was.
	ErrIntegrity = errors.New("storage integrity check failed")
	// ErrIO wraps filesystem failures.
	ErrIO = errors.New("storage I/O failure")
)

// BaseDir returns the root data directory (~/.ttt).
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".ttt"), nil
}

func ioError(what, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrIO, what, path, err)
}

// SafeWriter replaces whole files without ever exposing a partial write.
//
// The new contents go to a temp file first and are hashed on the way. The
// temp file is then copied into a staging file next to the destination,
// hashing again, and the staging file is read back and hashed a third time.
// Only when all three sums agree is the staging file renamed over the
// destination.
type SafeWriter struct {
	fs   afero.Fs
	perm os.FileMode
}

// NewSafeWriter returns a writer operating on fs.
func NewSafeWriter(fs afero.Fs) *SafeWriter {
	return &SafeWriter{fs: fs, perm: 0o600}
}

// Fs returns the filesystem the writer operates on.
func (w *SafeWriter) Fs() afero.Fs { return w.fs }

// Write replaces dest with whatever fill writes. An error from fill aborts the
// write and is returned unchanged.
func (w *SafeWriter) Write(dest string, fill func(io.Writer) error) error {
	dir := filepath.Dir(dest)
	if err := w.fs.MkdirAll(dir, 0o700); err != nil {
		return ioError("creating directory", dir, err)
	}

	id := uuid.NewString()
	tmpPath := filepath.Join(dir, "."+filepath.Base(dest)+"."+id+".tmp")
	stagePath := dest + "." + id + ".new"
	defer w.fs.Remove(tmpPath)

	written, err := w.writeTemp(tmpPath, fill)
	if err != nil {
		return err
	}
	copied, err := w.copyFile(tmpPath, stagePath)
	if err != nil {
		_ = w.fs.Remove(stagePath)
		return err
	}
	verified, err := w.Checksum(stagePath)
	if err != nil {
		_ = w.fs.Remove(stagePath)
		return err
	}
	if written != copied || copied != verified {
		_ = w.fs.Remove(stagePath)
		return fmt.Errorf("%w: %s: wrote %016x, copied %016x, read back %016x",
			ErrIntegrity, dest, written, copied, verified)
	}
	if err := w.fs.Rename(stagePath, dest); err != nil {
		_ = w.fs.Remove(stagePath)
		return ioError("renaming into place", dest, err)
	}
	return nil
}

func (w *SafeWriter) writeTemp(path string, fill func(io.Writer) error) (uint64, error) {
	f, err := w.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, w.perm)
	if err != nil {
		return 0, ioError("creating temp file", path, err)
	}
	h := xxhash.New()
	if err := fill(io.MultiWriter(f, h)); err != nil {
		f.Close()
		return 0, err
	}
	if err := f.Close(); err != nil {
		return 0, ioError("closing temp file", path, err)
	}
	return h.Sum64(), nil
}

func (w *SafeWriter) copyFile(from, to string) (uint64, error) {
	src, err := w.fs.Open(from)
	if err != nil {
		return 0, ioError("reopening temp file", from, err)
	}
	defer src.Close()

	dst, err := w.fs.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, w.perm)
	if err != nil {
		return 0, ioError("creating staging file", to, err)
	}
	h := xxhash.New()
	if _, err := io.Copy(dst, io.TeeReader(src, h)); err != nil {
		dst.Close()
		return 0, ioError("copying to", to, err)
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		return 0, ioError("syncing", to, err)
	}
	if err := dst.Close(); err != nil {
		return 0, ioError("closing", to, err)
	}
	return h.Sum64(), nil
}

// Checksum returns the xxhash of the file at path.
func (w *SafeWriter) Checksum(path string) (uint64, error) {
	f, err := w.fs.Open(path)
	if err != nil {
		return 0, ioError("reopening", path, err)
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return 0, ioError("reading back", path, err)
	}
	return h.Sum64(), nil
}
