package model

import "time"

// LogEntry is a single interval of logged time against a task path.
// Elapsed and Interrupt are minutes. Start and Comment are optional.
type LogEntry struct {
	ID        uint64
	Path      string
	Start     *time.Time
	Elapsed   int64
	Interrupt int64
	Comment   *string
}

// StartTime returns the start time, or the zero time when the entry has none.
func (e LogEntry) StartTime() time.Time {
	if e.Start == nil {
		return time.Time{}
	}
	return *e.Start
}

// CommentText returns the comment, or "" when the entry has none.
func (e LogEntry) CommentText() string {
	if e.Comment == nil {
		return ""
	}
	return *e.Comment
}

// Equal reports whether two entries hold the same values field for field.
func (e LogEntry) Equal(o LogEntry) bool {
	if e.ID != o.ID || e.Path != o.Path || e.Elapsed != o.Elapsed || e.Interrupt != o.Interrupt {
		return false
	}
	if (e.Start == nil) != (o.Start == nil) || (e.Start != nil && !e.Start.Equal(*o.Start)) {
		return false
	}
	if (e.Comment == nil) != (o.Comment == nil) || (e.Comment != nil && *e.Comment != *o.Comment) {
		return false
	}
	return true
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time { return &t }
