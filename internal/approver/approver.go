// Package approver decides whether a task path may receive logged time.
package approver

import (
	"fmt"

	"github.com/gobwas/glob"
)

// Approver reports whether time may be logged against a path.
type Approver interface {
	IsLoggingAllowed(path string) bool
}

// Globs rejects every path matching one of its patterns.
type Globs struct {
	patterns []string
	globs    []glob.Glob
}

// NewGlobs compiles patterns with '/' as the segment separator, so "*" stays
// within one segment and "**" spans several.
func NewGlobs(patterns []string) (*Globs, error) {
	g := &Globs{}
	for _, p := range patterns {
		compiled, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid forbidden path %q: %w", p, err)
		}
		g.patterns = append(g.patterns, p)
		g.globs = append(g.globs, compiled)
	}
	return g, nil
}

func (g *Globs) IsLoggingAllowed(path string) bool {
	return g.Rule(path) == ""
}

// Rule returns the pattern that forbids path, or "" when logging is allowed.
func (g *Globs) Rule(path string) string {
	for i, compiled := range g.globs {
		if compiled.Match(path) {
			return g.patterns[i]
		}
	}
	return ""
}

// AllowAll approves every path.
type AllowAll struct{}

func (AllowAll) IsLoggingAllowed(string) bool { return true }
