// Package entryiter provides pull-based iterators over time log entries and
// small adapters to compose them.
//
// An iterator is used the way bufio.Scanner and sql.Rows are:
//
//	for it.Next() {
//		e := it.Entry()
//		...
//	}
//	if err := it.Err(); err != nil { ... }
//	it.Close()
package entryiter

import (
	"errors"

	"github.com/Tiliavir/trivial-time-log/internal/model"
)

// Iterator yields values of type T one at a time.
type Iterator[T any] interface {
	// Next advances to the next value and reports whether there is one.
	Next() bool
	// Entry returns the current value. Valid only after Next returned true.
	Entry() T
	// Err returns the first error that stopped iteration early.
	Err() error
	// Close releases underlying resources. It is safe to call more than once.
	Close() error
}

// Entries iterates over log entries.
type Entries = Iterator[model.LogEntry]

// Records iterates over flagged records, as read from a time log file.
type Records = Iterator[model.PendingChange]

type sliceIter[T any] struct {
	items []T
	pos   int
}

// FromSlice iterates over items in order.
func FromSlice[T any](items []T) Iterator[T] {
	return &sliceIter[T]{items: items, pos: -1}
}

// Empty returns an iterator with no values.
func Empty[T any]() Iterator[T] {
	return FromSlice[T](nil)
}

func (s *sliceIter[T]) Next() bool {
	if s.pos+1 >= len(s.items) {
		s.pos = len(s.items)
		return false
	}
	s.pos++
	return true
}

func (s *sliceIter[T]) Entry() T     { return s.items[s.pos] }
func (s *sliceIter[T]) Err() error   { return nil }
func (s *sliceIter[T]) Close() error { return nil }

type concatIter[T any] struct {
	its []Iterator[T]
	err error
}

// Concat yields every value of each iterator in turn. Iteration stops at the
// first iterator that reports an error.
func Concat[T any](its ...Iterator[T]) Iterator[T] {
	return &concatIter[T]{its: its}
}

func (c *concatIter[T]) Next() bool {
	for len(c.its) > 0 {
		if c.err != nil {
			return false
		}
		cur := c.its[0]
		if cur.Next() {
			return true
		}
		if err := cur.Err(); err != nil {
			c.err = err
			return false
		}
		if err := cur.Close(); err != nil {
			c.err = err
			return false
		}
		c.its = c.its[1:]
	}
	return false
}

func (c *concatIter[T]) Entry() T   { return c.its[0].Entry() }
func (c *concatIter[T]) Err() error { return c.err }

func (c *concatIter[T]) Close() error {
	var errs []error
	for _, it := range c.its {
		errs = append(errs, it.Close())
	}
	c.its = nil
	return errors.Join(errs...)
}

type filterIter[T any] struct {
	Iterator[T]
	keep func(T) bool
}

// Filter yields only the values for which keep returns true.
func Filter[T any](it Iterator[T], keep func(T) bool) Iterator[T] {
	return &filterIter[T]{Iterator: it, keep: keep}
}

func (f *filterIter[T]) Next() bool {
	for f.Iterator.Next() {
		if f.keep(f.Iterator.Entry()) {
			return true
		}
	}
	return false
}

type mapIter[T, U any] struct {
	src Iterator[T]
	fn  func(T) U
	cur U
}

// Map yields fn applied to every value of it.
func Map[T, U any](it Iterator[T], fn func(T) U) Iterator[U] {
	return &mapIter[T, U]{src: it, fn: fn}
}

func (m *mapIter[T, U]) Next() bool {
	if !m.src.Next() {
		return false
	}
	m.cur = m.fn(m.src.Entry())
	return true
}

func (m *mapIter[T, U]) Entry() U     { return m.cur }
func (m *mapIter[T, U]) Err() error   { return m.src.Err() }
func (m *mapIter[T, U]) Close() error { return m.src.Close() }

// Collect drains it into a slice and closes it.
func Collect[T any](it Iterator[T]) ([]T, error) {
	var out []T
	for it.Next() {
		out = append(out, it.Entry())
	}
	err := it.Err()
	if cerr := it.Close(); err == nil {
		err = cerr
	}
	return out, err
}

// ForEach calls fn for every value of it and closes it. A non-nil error from
// fn stops the iteration and is returned.
func ForEach[T any](it Iterator[T], fn func(T) error) error {
	defer it.Close()
	for it.Next() {
		if err := fn(it.Entry()); err != nil {
			return err
		}
	}
	if err := it.Err(); err != nil {
		return err
	}
	return it.Close()
}
