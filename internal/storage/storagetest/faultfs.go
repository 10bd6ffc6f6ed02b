// Package storagetest provides filesystem fakes for persistence tests.
package storagetest

import (
	"errors"
	"io"
	"os"
	"sync"

	"github.com/spf13/afero"
)

// FaultFs wraps a filesystem and, once armed, silently drops the last byte
// of the first write to every matching file opened for writing. The write
// still reports success, which is exactly the failure a buffered atomic-write
// primitive can produce.
type FaultFs struct {
	afero.Fs

	mu       sync.Mutex
	match    func(name string) bool
	failOpen func(name string) bool
}

// ErrInjected is returned by opens that FailOpen armed.
var ErrInjected = errors.New("injected fault")

// NewFaultFs wraps base. It behaves like base until Truncate is called.
func NewFaultFs(base afero.Fs) *FaultFs {
	return &FaultFs{Fs: base}
}

// Truncate arms the fault for files whose name satisfies match. A nil match
// disarms it.
func (f *FaultFs) Truncate(match func(name string) bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.match = match
}

func (f *FaultFs) faulty(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.match != nil && f.match(name)
}

// FailOpen makes the next Open of a file whose name satisfies match fail
// with ErrInjected. The fault fires once.
func (f *FaultFs) FailOpen(match func(name string) bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOpen = match
}

func (f *FaultFs) openFails(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOpen == nil || !f.failOpen(name) {
		return false
	}
	f.failOpen = nil
	return true
}

func (f *FaultFs) Open(name string) (afero.File, error) {
	if f.openFails(name) {
		return nil, &os.PathError{Op: "open", Path: name, Err: ErrInjected}
	}
	return f.Fs.Open(name)
}

func (f *FaultFs) Create(name string) (afero.File, error) {
	file, err := f.Fs.Create(name)
	if err != nil || !f.faulty(name) {
		return file, err
	}
	return &truncatingFile{File: file}, nil
}

func (f *FaultFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	file, err := f.Fs.OpenFile(name, flag, perm)
	if err != nil || flag&(os.O_WRONLY|os.O_RDWR) == 0 || !f.faulty(name) {
		return file, err
	}
	return &truncatingFile{File: file}, nil
}

type truncatingFile struct {
	afero.File
	dropped bool
}

func (t *truncatingFile) Write(p []byte) (int, error) {
	if t.dropped || len(p) == 0 {
		return t.File.Write(p)
	}
	t.dropped = true
	if _, err := t.File.Write(p[:len(p)-1]); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteString and ReadFrom route through Write so callers like io.Copy and
// io.MultiWriter cannot bypass the fault.
func (t *truncatingFile) WriteString(s string) (int, error) {
	return t.Write([]byte(s))
}

func (t *truncatingFile) ReadFrom(r io.Reader) (int64, error) {
	return io.Copy(struct{ io.Writer }{t}, r)
}
