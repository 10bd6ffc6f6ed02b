package msgraph

import (
	"fmt"
	"strings"
	"time"

	"github.com/Tiliavir/trivial-time-log/internal/entryiter"
	"github.com/Tiliavir/trivial-time-log/internal/model"
	"github.com/Tiliavir/trivial-time-log/internal/timecalc"
	"github.com/Tiliavir/trivial-time-log/internal/timelog"
)

// SyncResult holds counters for a sync operation.
type SyncResult struct {
	Imported int
	Skipped  int
	Updated  int
	Errors   int
}

// SyncOptions configures a sync run.
type SyncOptions struct {
	From    time.Time
	To      time.Time
	Project string
}

// Target receives imported events. It is normally a deferred overlay over
// the working log, so a run can be reviewed and committed or discarded as a
// whole.
type Target interface {
	timelog.TimeLog
	timelog.IDSource
	AddModification(m model.Modification) error
}

// parseGraphTime parses a Graph API dateTime string in the given timezone.
// Graph returns times like "2026-02-27T09:00:00.0000000" without a zone suffix
// when a Prefer: outlook.timezone header is set.
func parseGraphTime(dt, tz string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, dt); err == nil {
		return t, nil
	}

	loc := time.UTC
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	for _, layout := range []string{
		"2006-01-02T15:04:05.0000000",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.ParseInLocation(layout, dt, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse graph time %q", dt)
}

// buildComment combines bodyPreview and location into a comment string.
func buildComment(event CalendarEvent) *string {
	parts := []string{}
	if event.BodyPreview != "" {
		parts = append(parts, event.BodyPreview)
	}
	if event.Location.DisplayName != "" {
		parts = append(parts, event.Location.DisplayName)
	}
	if len(parts) == 0 {
		return nil
	}
	s := strings.Join(parts, "\n")
	return &s
}

// shouldSkip returns true if the event should not be imported.
func shouldSkip(event CalendarEvent) bool {
	if event.IsCancelled {
		return true
	}
	if event.IsAllDay {
		return true
	}
	if event.Sensitivity == "private" {
		return true
	}
	if event.ShowAs == "free" {
		return true
	}
	if event.Start.DateTime == "" || event.End.DateTime == "" {
		return true
	}
	return false
}

// ProjectPath returns the task path imported events are grouped under.
func ProjectPath(project string) string {
	return "/" + strings.Trim(project, "/")
}

// EventPath returns the task path an event is logged under: the subject
// becomes a single path segment below the project.
func EventPath(project, subject string) string {
	subject = strings.TrimSpace(strings.ReplaceAll(subject, "/", "-"))
	if subject == "" {
		subject = "(no subject)"
	}
	return ProjectPath(project) + "/" + subject
}

// MapEventToEntry converts a Graph CalendarEvent into a time log entry. The
// returned entry has no id yet.
func MapEventToEntry(event CalendarEvent, timezone, project string) (model.LogEntry, error) {
	startTime, err := parseGraphTime(event.Start.DateTime, timezone)
	if err != nil {
		return model.LogEntry{}, fmt.Errorf("parsing start time: %w", err)
	}
	endTime, err := parseGraphTime(event.End.DateTime, timezone)
	if err != nil {
		return model.LogEntry{}, fmt.Errorf("parsing end time: %w", err)
	}
	if endTime.Before(startTime) {
		return model.LogEntry{}, fmt.Errorf("event ends before it starts")
	}

	return model.LogEntry{
		Path:    EventPath(project, event.Subject),
		Start:   &startTime,
		Elapsed: timecalc.Minutes(endTime.Sub(startTime)),
		Comment: buildComment(event),
	}, nil
}

// findByStart returns the index of the entry starting at start, or -1.
func findByStart(entries []model.LogEntry, start time.Time) int {
	for i, e := range entries {
		if e.Start != nil && e.Start.Equal(start) {
			return i
		}
	}
	return -1
}

// diffEntry describes how to turn found into want. Comments are only
// touched when the event has one, so notes added by hand survive a re-sync.
func diffEntry(found, want model.LogEntry) model.LogEntry {
	diff := model.LogEntry{ID: found.ID, Elapsed: want.Elapsed - found.Elapsed}
	if want.Path != found.Path {
		diff.Path = want.Path
	}
	if want.Comment != nil && want.CommentText() != found.CommentText() {
		diff.Comment = want.Comment
	}
	return diff
}

// SyncEvents stages events into target. An event matches an existing entry
// in the project when both start at the same instant; matching entries are
// updated in place, the rest are added with fresh ids. It prints progress to
// stdout and returns a SyncResult.
func SyncEvents(events []CalendarEvent, target Target, opts SyncOptions, timezone string) (SyncResult, error) {
	var result SyncResult

	it, err := target.Filter(ProjectPath(opts.Project), opts.From, opts.To)
	if err != nil {
		return result, fmt.Errorf("reading existing entries: %w", err)
	}
	existing, err := entryiter.Collect(it)
	if err != nil {
		return result, fmt.Errorf("reading existing entries: %w", err)
	}

	for _, event := range events {
		if shouldSkip(event) {
			continue
		}

		entry, err := MapEventToEntry(event, timezone, opts.Project)
		if err != nil {
			fmt.Printf("  ! Error mapping event %q: %v\n", event.Subject, err)
			result.Errors++
			continue
		}
		dur := fmt.Sprintf(" (%s)", timecalc.FormatMinutes(entry.Elapsed))

		if i := findByStart(existing, *entry.Start); i >= 0 {
			found := existing[i]
			diff := diffEntry(found, entry)
			if model.Fields(diff) == 0 {
				fmt.Printf("  – Skipped:  %s (already exists)\n", event.Subject)
				result.Skipped++
				continue
			}
			if err := target.AddModification(model.ModifyChange(diff)); err != nil {
				fmt.Printf("  ! Error updating %q: %v\n", event.Subject, err)
				result.Errors++
				continue
			}
			existing[i] = model.ApplyChanges(found, diff, false)
			fmt.Printf("  ↑ Updated:  %s%s\n", event.Subject, dur)
			result.Updated++
			continue
		}

		entry.ID = target.GetNextID()
		if err := target.AddModification(model.AddChange(entry)); err != nil {
			fmt.Printf("  ! Error saving %q: %v\n", event.Subject, err)
			result.Errors++
			continue
		}
		existing = append(existing, entry)
		fmt.Printf("  ✓ Imported: %s%s\n", event.Subject, dur)
		result.Imported++
	}

	return result, nil
}
