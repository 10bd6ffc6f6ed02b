package timelog

import (
	"slices"

	"github.com/Tiliavir/trivial-time-log/internal/model"
)

// RenameTracker is the ordered list of path renames not yet folded into the
// historical log. It is not safe for concurrent use; the owning Overlay
// guards it.
type RenameTracker struct {
	instrs []model.RenameInstruction
}

// Apply runs path through every recorded rename, oldest first.
func (t *RenameTracker) Apply(path string) string {
	return model.RenamePath(t.instrs, path)
}

// Record appends a rename.
func (t *RenameTracker) Record(r model.RenameInstruction) {
	t.instrs = append(t.instrs, r)
}

// Instructions returns a copy of the recorded renames.
func (t *RenameTracker) Instructions() []model.RenameInstruction {
	return slices.Clone(t.instrs)
}

func (t *RenameTracker) Len() int { return len(t.instrs) }

func (t *RenameTracker) Reset() { t.instrs = nil }
