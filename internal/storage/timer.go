package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

const timerFile = "timer.json"

// Timer is the running stopwatch persisted between CLI invocations.
type Timer struct {
	Path    string    `json:"path"`
	Start   time.Time `json:"start"`
	Comment *string   `json:"comment"`
}

func timerPath(base string) string {
	return filepath.Join(base, timerFile)
}

// LoadTimer returns the running timer, or nil when none is running.
// A corrupt timer file is backed up and reported.
func LoadTimer(fs afero.Fs, base string) (*Timer, error) {
	path := timerPath(base)
	data, err := afero.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, ioError("reading", path, err)
	}

	var t Timer
	if err := json.Unmarshal(data, &t); err != nil {
		backupPath := path + ".corrupt"
		_ = fs.Rename(path, backupPath)
		return nil, fmt.Errorf("corrupt JSON in %s (backed up to %s): %w", path, backupPath, err)
	}
	return &t, nil
}

// SaveTimer persists t through w.
func SaveTimer(w *SafeWriter, base string, t Timer) error {
	return w.Write(timerPath(base), func(out io.Writer) error {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	})
}

// ClearTimer removes the running timer, if any.
func ClearTimer(fs afero.Fs, base string) error {
	err := fs.Remove(timerPath(base))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return ioError("removing", timerPath(base), err)
	}
	return nil
}
