package entryiter_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/trivial-time-log/internal/entryiter"
	"github.com/Tiliavir/trivial-time-log/internal/model"
)

type failingIter struct {
	entryiter.Iterator[int]
	err error
}

func (f failingIter) Err() error { return f.err }

func TestConcatAndCollect(t *testing.T) {
	it := entryiter.Concat(
		entryiter.FromSlice([]int{1, 2}),
		entryiter.Empty[int](),
		entryiter.FromSlice([]int{3}),
	)
	got, err := entryiter.Collect(it)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestConcatStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	it := entryiter.Concat(
		entryiter.FromSlice([]int{1}),
		entryiter.Iterator[int](failingIter{Iterator: entryiter.FromSlice([]int{2}), err: boom}),
		entryiter.FromSlice([]int{3}),
	)
	got, err := entryiter.Collect(it)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1, 2}, got)
}

func TestFilterAndMap(t *testing.T) {
	it := entryiter.Map(
		entryiter.Filter(entryiter.FromSlice([]int{1, 2, 3, 4}), func(i int) bool { return i%2 == 0 }),
		func(i int) int { return i * 10 },
	)
	got, err := entryiter.Collect(it)
	require.NoError(t, err)
	assert.Equal(t, []int{20, 40}, got)
}

func TestForEachStopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	var seen []int
	err := entryiter.ForEach(entryiter.FromSlice([]int{1, 2, 3}), func(i int) error {
		seen = append(seen, i)
		if i == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, []int{1, 2}, seen)
}

func entriesAt(paths []string, starts []time.Time) []model.LogEntry {
	out := make([]model.LogEntry, len(paths))
	for i := range paths {
		out[i] = model.LogEntry{ID: uint64(i + 1), Path: paths[i]}
		if i < len(starts) && !starts[i].IsZero() {
			out[i].Start = model.TimePtr(starts[i])
		}
	}
	return out
}

func TestSelect(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 3, d, 9, 0, 0, 0, time.UTC) }
	entries := entriesAt(
		[]string{"/Proj/Design", "/ProjectOther", "/Proj", "/Proj/Code", "/Proj/Test"},
		[]time.Time{day(1), day(2), day(3), day(4), {}},
	)

	tests := []struct {
		name string
		q    entryiter.Query
		want []uint64
	}{
		{"all", entryiter.Query{}, []uint64{1, 2, 3, 4, 5}},
		{"prefix", entryiter.Query{Path: "/Proj"}, []uint64{1, 3, 4, 5}},
		{"inclusive bounds", entryiter.Query{From: day(2), To: day(3)}, []uint64{2, 3}},
		{"open end", entryiter.Query{From: day(3)}, []uint64{3, 4}},
		{"prefix and dates", entryiter.Query{Path: "/Proj", To: day(3)}, []uint64{1, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := entryiter.Collect(entryiter.Select(entryiter.FromSlice(entries), tt.q))
			require.NoError(t, err)
			var ids []uint64
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestMatchGlob(t *testing.T) {
	entries := entriesAt([]string{"/Proj/Design", "/Proj/Code/Review", "/Other/Design"}, nil)

	it, err := entryiter.MatchGlob(entryiter.FromSlice(entries), "/*/Design")
	require.NoError(t, err)
	got, err := entryiter.Collect(it)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "/Proj/Design", got[0].Path)
	assert.Equal(t, "/Other/Design", got[1].Path)

	it, err = entryiter.MatchGlob(entryiter.FromSlice(entries), "/Proj/**")
	require.NoError(t, err)
	got, err = entryiter.Collect(it)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = entryiter.MatchGlob(entryiter.FromSlice(entries), "/Proj/[")
	assert.Error(t, err)
}
