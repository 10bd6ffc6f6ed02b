package timelog_test

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/trivial-time-log/internal/model"
	"github.com/Tiliavir/trivial-time-log/internal/timelog"
)

func TestHistoricalMissingFile(t *testing.T) {
	h := timelog.NewHistorical(afero.NewMemMapFs(), "/data/timelog.xml", quiet())
	assert.Empty(t, all(t, h))

	top, err := h.MaxID()
	require.NoError(t, err)
	assert.Zero(t, top)
}

func TestHistoricalFilter(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeEntries(t, fs, "/data/timelog.xml",
		entry(1, "/Proj/Design", t0, 30),
		entry(2, "/Proj/Code", t0.Add(24*time.Hour), 60),
		entry(3, "/ProjectX/Code", t0.Add(48*time.Hour), 15),
		model.LogEntry{ID: 4, Path: "/Proj/Undated", Elapsed: 5},
	)
	h := timelog.NewHistorical(fs, "/data/timelog.xml", quiet())

	tests := []struct {
		name     string
		path     string
		from, to time.Time
		want     []uint64
	}{
		{"everything", "", time.Time{}, time.Time{}, []uint64{1, 2, 3, 4}},
		{"prefix is hierarchical", "/Proj", time.Time{}, time.Time{}, []uint64{1, 2, 4}},
		{"exact path", "/Proj/Code", time.Time{}, time.Time{}, []uint64{2}},
		{"trailing slash", "/Proj/", time.Time{}, time.Time{}, []uint64{1, 2, 4}},
		{"inclusive bounds", "", t0, t0.Add(24 * time.Hour), []uint64{1, 2}},
		{"from only", "", t0.Add(24 * time.Hour), time.Time{}, []uint64{2, 3}},
		{"to only", "/Proj", time.Time{}, t0, []uint64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, idsOf(collect(t, h, tt.path, tt.from, tt.to)))
		})
	}

	top, err := h.MaxID()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), top)
}

func TestHistoricalRereadsFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	h := timelog.NewHistorical(fs, "/data/timelog.xml", quiet())
	writeEntries(t, fs, "/data/timelog.xml", entry(1, "/A", t0, 10))
	assert.Equal(t, []uint64{1}, idsOf(all(t, h)))

	writeEntries(t, fs, "/data/timelog.xml", entry(1, "/A", t0, 10), entry(2, "/B", t0, 10))
	assert.Equal(t, []uint64{1, 2}, idsOf(all(t, h)))
}

func TestHistoricalSkipsRenameRecords(t *testing.T) {
	fs := afero.NewMemMapFs()
	rename := model.RenameInstruction{OldPath: "/A", NewPath: "/B"}
	writeRecords(t, fs, "/data/timelog.xml",
		model.PendingChange{Entry: entry(1, "/A", t0, 10)},
		model.PendingChange{Flag: model.BatchRename, Entry: rename.Encode()},
	)
	h := timelog.NewHistorical(fs, "/data/timelog.xml", quiet())
	assertEntries(t, []model.LogEntry{entry(1, "/A", t0, 10)}, all(t, h))
}
