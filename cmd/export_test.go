package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/Tiliavir/trivial-time-log/internal/model"
)

func TestCsvEscape(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain", "plain"},
		{"with space", "with space"},
		{"with,comma", `"with,comma"`},
		{`with"quote`, `"with""quote"`},
		{"with\nnewline", "\"with\nnewline\""},
		{"with\rreturn", "\"with\rreturn\""},
		{"", ""},
	}
	for _, tt := range tests {
		got := csvEscape(tt.input)
		if got != tt.want {
			t.Errorf("csvEscape(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestPrintCSV(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printCSV(&buf, []model.LogEntry{
		{ID: 1, Path: "/a", Start: &start, Elapsed: 30, Interrupt: 5, Comment: model.StringPtr("x, y")},
		{ID: 2, Path: "/b", Elapsed: 10},
	})
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), buf.String())
	}
	if lines[0] != "id,date,path,comment,start,elapsed_minutes,interrupt_minutes" {
		t.Errorf("header = %q", lines[0])
	}
	date := start.Local().Format("2006-01-02")
	if want := "1," + date + `,/a,"x, y",2026-03-02T09:00:00Z,30,5`; lines[1] != want {
		t.Errorf("row 1 = %q, want %q", lines[1], want)
	}
	if want := "2,,/b,,,10,0"; lines[2] != want {
		t.Errorf("row 2 = %q, want %q", lines[2], want)
	}
}
