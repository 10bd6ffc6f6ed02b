// Package timelog layers pending modifications over the historical time log
// and folds them back in.
//
// Reads flow from the Historical log through the rename instructions and the
// pending changes of an Overlay. Writes land in the Overlay and reach the
// Historical log when the WorkingLog compacts.
package timelog

import (
	"errors"
	"fmt"
	"time"

	"github.com/Tiliavir/trivial-time-log/internal/entryiter"
	"github.com/Tiliavir/trivial-time-log/internal/model"
	"github.com/Tiliavir/trivial-time-log/internal/storage"
)

var (
	// ErrNoChange is returned for a pending change flagged NoChange.
	ErrNoChange = errors.New("time log modifications must describe a change")
	// ErrInvalid is returned for a modification that cannot be stored, such
	// as an entry change without an id or a rename of the root path.
	ErrInvalid = errors.New("invalid time log modification")
)

// TimeLog is a queryable set of entries.
type TimeLog interface {
	// Filter returns the entries at or below path whose start lies within
	// [from, to]. Empty arguments are unset.
	Filter(path string, from, to time.Time) (entryiter.Entries, error)
}

// Modifiable is a TimeLog that accepts modifications.
type Modifiable interface {
	TimeLog
	AddModification(m model.Modification) error
	AddModifications(ms []model.Modification) error
}

// IDSource hands out entry ids.
type IDSource interface {
	GetNextID() uint64
}

// EventSource publishes change events.
type EventSource interface {
	Subscribe(fn Listener) Subscription
	Unsubscribe(s Subscription) bool
}

func query(path string, from, to time.Time) entryiter.Query {
	return entryiter.Query{Path: path, From: from, To: to}
}

func ioError(what, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", storage.ErrIO, what, path, err)
}
