package model

import (
	"errors"
	"strings"
)

// renameSeparator joins the old and new path of a rename on the wire.
const renameSeparator = "\n"

var (
	// ErrNotRename is returned when a record does not encode a rename.
	ErrNotRename = errors.New("entry does not describe a batch rename")
	// ErrRootRename is returned for a rename whose source is the root path.
	ErrRootRename = errors.New("the root path cannot be renamed")
)

// RenameInstruction rewrites every path under OldPath to live under NewPath.
type RenameInstruction struct {
	OldPath string
	NewPath string
}

func (RenameInstruction) modification() {}

// Check reports whether the instruction can be applied. A rename needs a
// source path below the root.
func (r RenameInstruction) Check() error {
	if r.OldPath == "" {
		return ErrNotRename
	}
	if strings.TrimSuffix(r.OldPath, "/") == "" {
		return ErrRootRename
	}
	return nil
}

// Apply rewrites path when OldPath is a hierarchical prefix of it. Trailing
// slashes on either path are ignored. An instruction that fails Check
// matches nothing.
func (r RenameInstruction) Apply(path string) (string, bool) {
	oldPath := strings.TrimSuffix(r.OldPath, "/")
	if oldPath == "" || !HasPathPrefix(path, oldPath) {
		return path, false
	}
	out := strings.TrimSuffix(r.NewPath, "/") + path[len(oldPath):]
	if out == "" {
		out = "/"
	}
	return out, true
}

// Encode returns the wire form of the rename: id 0, both paths joined by a
// newline, every other field empty.
func (r RenameInstruction) Encode() LogEntry {
	return LogEntry{Path: r.OldPath + renameSeparator + r.NewPath}
}

// IsRenameEncoding reports whether e has the shape of an encoded rename.
func IsRenameEncoding(e LogEntry) bool {
	return e.ID == 0 &&
		e.Start == nil &&
		e.Elapsed == 0 &&
		e.Interrupt == 0 &&
		e.Comment == nil &&
		strings.Count(e.Path, renameSeparator) == 1
}

// DecodeRename turns an encoded rename back into an instruction.
func DecodeRename(e LogEntry) (RenameInstruction, error) {
	if !IsRenameEncoding(e) {
		return RenameInstruction{}, ErrNotRename
	}
	oldPath, newPath, _ := strings.Cut(e.Path, renameSeparator)
	r := RenameInstruction{OldPath: oldPath, NewPath: newPath}
	if err := r.Check(); err != nil {
		return RenameInstruction{}, err
	}
	return r, nil
}

// RenamePath runs path through every instruction in order. Each instruction
// sees the path as rewritten by the ones before it.
func RenamePath(instrs []RenameInstruction, path string) string {
	for _, r := range instrs {
		path, _ = r.Apply(path)
	}
	return path
}

// HasPathPrefix reports whether path equals prefix or lies below it.
// The empty prefix matches everything.
func HasPathPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
