package model

import "fmt"

// ChangeFlag tells how a record relates to the log it is applied to.
type ChangeFlag int

const (
	NoChange ChangeFlag = iota
	Added
	Modified
	Deleted
	BatchRename
)

var flagCodes = [...]byte{' ', 'A', 'M', 'D', 'R'}

// Code returns the single character used for the flag on the wire.
func (f ChangeFlag) Code() byte {
	if f < NoChange || f > BatchRename {
		return '?'
	}
	return flagCodes[f]
}

// FlagFromCode maps a wire character back to its flag.
func FlagFromCode(c byte) (ChangeFlag, bool) {
	for i, code := range flagCodes {
		if code == c {
			return ChangeFlag(i), true
		}
	}
	return NoChange, false
}

func (f ChangeFlag) String() string {
	switch f {
	case NoChange:
		return "unchanged"
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case BatchRename:
		return "rename"
	}
	return fmt.Sprintf("ChangeFlag(%d)", int(f))
}

// Modification is anything that can be applied to a modifiable time log:
// a PendingChange or a RenameInstruction.
type Modification interface {
	modification()
}

// PendingChange pairs an entry with the kind of change it describes.
//
// For Modified changes Entry is a diff: an empty path, a nil start or a nil
// comment leave the field alone, and Elapsed/Interrupt are deltas added to
// the current values. A present but empty comment clears the comment.
type PendingChange struct {
	Flag  ChangeFlag
	Entry LogEntry
}

func (PendingChange) modification() {}

// ID returns the id of the entry the change targets.
func (c PendingChange) ID() uint64 { return c.Entry.ID }

// AddChange describes a new entry.
func AddChange(e LogEntry) PendingChange {
	return PendingChange{Flag: Added, Entry: e}
}

// ModifyChange describes a field-level diff against an existing entry.
func ModifyChange(diff LogEntry) PendingChange {
	return PendingChange{Flag: Modified, Entry: diff}
}

// DeleteChange describes the removal of the entry with the given id.
func DeleteChange(id uint64) PendingChange {
	return PendingChange{Flag: Deleted, Entry: LogEntry{ID: id}}
}

// FieldMask is a set of LogEntry fields.
type FieldMask uint8

const (
	FieldPath FieldMask = 1 << iota
	FieldStart
	FieldElapsed
	FieldInterrupt
	FieldComment
)

// Has reports whether every field in f is set in m.
func (m FieldMask) Has(f FieldMask) bool { return m&f == f }

// Fields returns the fields a diff entry touches. A zero delta counts as
// untouched, so a deliberate zero adjustment cannot be expressed.
func Fields(diff LogEntry) FieldMask {
	var m FieldMask
	if diff.Path != "" {
		m |= FieldPath
	}
	if diff.Start != nil {
		m |= FieldStart
	}
	if diff.Elapsed != 0 {
		m |= FieldElapsed
	}
	if diff.Interrupt != 0 {
		m |= FieldInterrupt
	}
	if diff.Comment != nil {
		m |= FieldComment
	}
	return m
}

// ApplyChanges applies diff on top of base and returns the result.
//
// When mergeDiffs is true base is itself a diff, and an empty comment in
// diff is kept as the "clear comment" marker instead of being resolved.
func ApplyChanges(base, diff LogEntry, mergeDiffs bool) LogEntry {
	result := base
	if diff.Path != "" {
		result.Path = diff.Path
	}
	if diff.Start != nil {
		result.Start = diff.Start
	}
	result.Elapsed += diff.Elapsed
	result.Interrupt += diff.Interrupt
	if diff.Comment != nil {
		if *diff.Comment == "" && !mergeDiffs {
			result.Comment = nil
		} else {
			result.Comment = diff.Comment
		}
	}
	return result
}

// Merge folds next into prior. The result keeps the flag of prior, so an
// added entry stays added and a deleted entry stays deleted.
func Merge(prior, next PendingChange) PendingChange {
	if prior.Flag == Deleted {
		return prior
	}
	return PendingChange{
		Flag:  prior.Flag,
		Entry: ApplyChanges(prior.Entry, next.Entry, prior.Flag == Modified),
	}
}
