package timelog

import "github.com/Tiliavir/trivial-time-log/internal/model"

// Resolve works out what a change made by a parent log means to a child
// overlay that holds local, its own pending change for the same entry. It
// returns the change the child should report to its listeners, or false when
// the parent change has no visible effect.
//
//   - a local add or delete hides whatever the parent does to the entry
//   - a parent delete beats a local modification
//   - when both sides modify, only the parent fields the child left alone
//     survive; deltas always survive
//   - anything else passes through with the local diff applied on top
func Resolve(parent model.Modification, local *model.PendingChange) (model.Modification, bool) {
	pc, ok := parent.(model.PendingChange)
	if !ok || local == nil {
		return parent, true
	}
	if local.Flag == model.Added || local.Flag == model.Deleted {
		return nil, false
	}

	switch pc.Flag {
	case model.Deleted:
		return pc, true
	case model.Modified:
		ours := model.Fields(local.Entry)
		diff := model.LogEntry{
			ID:        pc.ID(),
			Elapsed:   pc.Entry.Elapsed,
			Interrupt: pc.Entry.Interrupt,
		}
		if !ours.Has(model.FieldPath) {
			diff.Path = pc.Entry.Path
		}
		if !ours.Has(model.FieldStart) {
			diff.Start = pc.Entry.Start
		}
		if !ours.Has(model.FieldComment) {
			diff.Comment = pc.Entry.Comment
		}
		if model.Fields(diff) == 0 {
			return nil, false
		}
		return model.ModifyChange(diff), true
	}

	return model.PendingChange{
		Flag:  pc.Flag,
		Entry: model.ApplyChanges(pc.Entry, local.Entry, false),
	}, true
}
