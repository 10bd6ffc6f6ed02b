package entryiter

import (
	"fmt"
	"time"

	"github.com/gobwas/glob"

	"github.com/Tiliavir/trivial-time-log/internal/model"
)

// Query selects entries by path prefix and start time. Zero fields are unset.
// Both time bounds are inclusive, and entries without a start time never
// match a query that sets a bound.
type Query struct {
	Path string
	From time.Time
	To   time.Time
}

// IsZero reports whether the query selects everything.
func (q Query) IsZero() bool {
	return q.Path == "" && q.From.IsZero() && q.To.IsZero()
}

// Match reports whether e is selected by q.
func (q Query) Match(e model.LogEntry) bool {
	if !model.HasPathPrefix(e.Path, q.Path) {
		return false
	}
	if q.From.IsZero() && q.To.IsZero() {
		return true
	}
	if e.Start == nil {
		return false
	}
	if !q.From.IsZero() && e.Start.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && e.Start.After(q.To) {
		return false
	}
	return true
}

// Select narrows it to the entries matching q.
func Select(it Entries, q Query) Entries {
	if q.IsZero() {
		return it
	}
	return Filter(it, q.Match)
}

// MatchGlob narrows it to entries whose path matches pattern. '/' separates
// path segments, so "*" stays within one segment and "**" spans several.
func MatchGlob(it Entries, pattern string) (Entries, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("invalid path pattern %q: %w", pattern, err)
	}
	return Filter(it, func(e model.LogEntry) bool {
		return g.Match(e.Path)
	}), nil
}
