package timelog

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Tiliavir/trivial-time-log/internal/model"
)

// Event reports a change to a time log. A nil Change means the log changed
// in ways that are not described by a single modification and listeners
// should refresh everything they hold.
type Event struct {
	Source TimeLog
	Change model.Modification
}

// IsRefresh reports whether the event asks for a full refresh.
func (e Event) IsRefresh() bool { return e.Change == nil }

// Listener receives events. It is called synchronously, without any time log
// lock held.
type Listener func(Event)

// Subscription identifies a registered listener. The zero value matches
// nothing.
type Subscription struct {
	registry uint64
	key      uint64
}

var registryIDs atomic.Uint64

type subscriber struct {
	key uint64
	fn  Listener
}

// registry is a list of listeners. Tokens carry the id of the registry that
// issued them, so a stale or foreign token never removes anything.
type registry struct {
	mu   sync.Mutex
	id   uint64
	next uint64
	subs []subscriber
}

func (r *registry) add(fn Listener) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.id == 0 {
		r.id = registryIDs.Add(1)
	}
	r.next++
	r.subs = append(r.subs, subscriber{key: r.next, fn: fn})
	return Subscription{registry: r.id, key: r.next}
}

func (r *registry) remove(s Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.registry == 0 || s.registry != r.id {
		return false
	}
	i := slices.IndexFunc(r.subs, func(sub subscriber) bool { return sub.key == s.key })
	if i < 0 {
		return false
	}
	r.subs = slices.Delete(r.subs, i, i+1)
	return true
}

func (r *registry) fire(e Event) {
	r.mu.Lock()
	subs := slices.Clone(r.subs)
	r.mu.Unlock()
	for _, sub := range subs {
		sub.fn(e)
	}
}
