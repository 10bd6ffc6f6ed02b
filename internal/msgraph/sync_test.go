package msgraph_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/Tiliavir/trivial-time-log/internal/entryiter"
	"github.com/Tiliavir/trivial-time-log/internal/model"
	"github.com/Tiliavir/trivial-time-log/internal/msgraph"
	"github.com/Tiliavir/trivial-time-log/internal/timelog"
)

func makeEvent(id, subject, start, end string) msgraph.CalendarEvent {
	return msgraph.CalendarEvent{
		ID:          id,
		Subject:     subject,
		BodyPreview: "",
		IsAllDay:    false,
		IsCancelled: false,
		Sensitivity: "normal",
		ShowAs:      "busy",
		Start: struct {
			DateTime string `json:"dateTime"`
			TimeZone string `json:"timeZone"`
		}{DateTime: start, TimeZone: "UTC"},
		End: struct {
			DateTime string `json:"dateTime"`
			TimeZone string `json:"timeZone"`
		}{DateTime: end, TimeZone: "UTC"},
	}
}

func openLog(t *testing.T) *timelog.WorkingLog {
	t.Helper()
	wl, err := timelog.Open(afero.NewMemMapFs(), "/data",
		timelog.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return wl
}

func entries(t *testing.T, tl timelog.TimeLog) []model.LogEntry {
	t.Helper()
	it, err := tl.Filter("", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	all, err := entryiter.Collect(it)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return all
}

// syncAndCommit runs one sync through a deferred overlay and commits it.
func syncAndCommit(t *testing.T, wl *timelog.WorkingLog, events []msgraph.CalendarEvent) msgraph.SyncResult {
	t.Helper()
	staged := wl.Deferred()
	defer staged.Close()
	result, err := msgraph.SyncEvents(events, staged, msgraph.SyncOptions{Project: "Meetings"}, "UTC")
	if err != nil {
		t.Fatalf("SyncEvents: %v", err)
	}
	if err := staged.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return result
}

func TestMapEventToEntry(t *testing.T) {
	event := makeEvent("ext-id-1", "Sprint Planning", "2026-02-27T09:00:00", "2026-02-27T10:30:00")
	entry, err := msgraph.MapEventToEntry(event, "UTC", "Meetings")
	if err != nil {
		t.Fatalf("MapEventToEntry: %v", err)
	}
	if entry.Path != "/Meetings/Sprint Planning" {
		t.Errorf("Path = %q, want %q", entry.Path, "/Meetings/Sprint Planning")
	}
	if entry.Elapsed != 90 {
		t.Errorf("Elapsed = %d, want 90", entry.Elapsed)
	}
	want := time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)
	if entry.Start == nil || !entry.Start.Equal(want) {
		t.Errorf("Start = %v, want %v", entry.Start, want)
	}
	if entry.Comment != nil {
		t.Errorf("Comment = %q, want nil", *entry.Comment)
	}
	if entry.ID != 0 {
		t.Errorf("ID = %d, want 0 until staged", entry.ID)
	}
}

func TestMapEventToEntry_WithLocation(t *testing.T) {
	event := makeEvent("ext-id-2", "Standup", "2026-02-27T10:00:00", "2026-02-27T10:15:00")
	event.BodyPreview = "Daily standup"
	event.Location.DisplayName = "Zoom"

	entry, err := msgraph.MapEventToEntry(event, "UTC", "Meetings")
	if err != nil {
		t.Fatalf("MapEventToEntry: %v", err)
	}
	if entry.Comment == nil {
		t.Fatal("expected comment, got nil")
	}
	if *entry.Comment != "Daily standup\nZoom" {
		t.Errorf("Comment = %q, want %q", *entry.Comment, "Daily standup\nZoom")
	}
}

func TestMapEventToEntry_Timezone(t *testing.T) {
	event := makeEvent("ext-tz", "Review", "2026-02-27T09:00:00.0000000", "2026-02-27T09:45:00.0000000")
	entry, err := msgraph.MapEventToEntry(event, "Europe/Berlin", "Meetings")
	if err != nil {
		t.Fatalf("MapEventToEntry: %v", err)
	}
	want := time.Date(2026, 2, 27, 8, 0, 0, 0, time.UTC)
	if !entry.Start.Equal(want) {
		t.Errorf("Start = %v, want %v", entry.Start, want)
	}
	if entry.Elapsed != 45 {
		t.Errorf("Elapsed = %d, want 45", entry.Elapsed)
	}
}

func TestMapEventToEntry_EndsBeforeStart(t *testing.T) {
	event := makeEvent("ext-bad", "Backwards", "2026-02-27T10:00:00", "2026-02-27T09:00:00")
	if _, err := msgraph.MapEventToEntry(event, "UTC", "Meetings"); err == nil {
		t.Error("expected an error")
	}
}

func TestEventPath(t *testing.T) {
	tests := []struct {
		project, subject, want string
	}{
		{"Meetings", "Standup", "/Meetings/Standup"},
		{"/Meetings/", "Standup", "/Meetings/Standup"},
		{"Meetings", "Q1/Q2 planning", "/Meetings/Q1-Q2 planning"},
		{"Meetings", "  ", "/Meetings/(no subject)"},
		{"Work/Meetings", "Sync", "/Work/Meetings/Sync"},
	}
	for _, tt := range tests {
		if got := msgraph.EventPath(tt.project, tt.subject); got != tt.want {
			t.Errorf("EventPath(%q, %q) = %q, want %q", tt.project, tt.subject, got, tt.want)
		}
	}
}

func TestSyncEvents_Import(t *testing.T) {
	wl := openLog(t)
	events := []msgraph.CalendarEvent{
		makeEvent("ext-1", "Architecture Board", "2026-02-27T09:00:00", "2026-02-27T10:30:00"),
	}

	staged := wl.Deferred()
	defer staged.Close()
	result, err := msgraph.SyncEvents(events, staged, msgraph.SyncOptions{Project: "Meetings"}, "UTC")
	if err != nil {
		t.Fatalf("SyncEvents: %v", err)
	}
	if result.Imported != 1 {
		t.Errorf("Imported = %d, want 1", result.Imported)
	}
	if result.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0", result.Skipped)
	}
	if n := len(entries(t, wl)); n != 0 {
		t.Fatalf("working log has %d entries before commit, want 0", n)
	}

	if err := staged.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got := entries(t, wl)
	if len(got) != 1 {
		t.Fatalf("entries = %d, want 1", len(got))
	}
	if got[0].Path != "/Meetings/Architecture Board" || got[0].Elapsed != 90 {
		t.Errorf("entry = %+v", got[0])
	}
	if got[0].ID == 0 {
		t.Error("imported entry has no id")
	}
}

func TestSyncEvents_Idempotent(t *testing.T) {
	wl := openLog(t)
	events := []msgraph.CalendarEvent{
		makeEvent("ext-1", "Architecture Board", "2026-02-27T09:00:00", "2026-02-27T10:30:00"),
		makeEvent("ext-2", "Retro", "2026-02-27T14:00:00", "2026-02-27T15:00:00"),
	}

	first := syncAndCommit(t, wl, events)
	if first.Imported != 2 {
		t.Fatalf("first run Imported = %d, want 2", first.Imported)
	}
	second := syncAndCommit(t, wl, events)
	if second.Imported != 0 || second.Skipped != 2 {
		t.Errorf("second run = %+v, want 2 skipped", second)
	}
	if n := len(entries(t, wl)); n != 2 {
		t.Errorf("entries = %d, want 2", n)
	}
}

func TestSyncEvents_Update(t *testing.T) {
	wl := openLog(t)
	syncAndCommit(t, wl, []msgraph.CalendarEvent{
		makeEvent("ext-1", "Architecture Board", "2026-02-27T09:00:00", "2026-02-27T10:30:00"),
	})
	before := entries(t, wl)[0]

	updated := makeEvent("ext-1", "Architecture Board (updated)", "2026-02-27T09:00:00", "2026-02-27T11:00:00")
	updated.BodyPreview = "moved to room 2"
	result := syncAndCommit(t, wl, []msgraph.CalendarEvent{updated})
	if result.Updated != 1 {
		t.Fatalf("Updated = %d, want 1", result.Updated)
	}

	got := entries(t, wl)
	if len(got) != 1 {
		t.Fatalf("entries = %d, want 1", len(got))
	}
	if got[0].ID != before.ID {
		t.Errorf("ID = %d, want %d", got[0].ID, before.ID)
	}
	if got[0].Path != "/Meetings/Architecture Board (updated)" {
		t.Errorf("Path = %q", got[0].Path)
	}
	if got[0].Elapsed != 120 {
		t.Errorf("Elapsed = %d, want 120", got[0].Elapsed)
	}
	if got[0].CommentText() != "moved to room 2" {
		t.Errorf("Comment = %q", got[0].CommentText())
	}
}

func TestSyncEvents_SkipFiltered(t *testing.T) {
	tests := []struct {
		name  string
		event msgraph.CalendarEvent
	}{
		{
			name: "cancelled",
			event: func() msgraph.CalendarEvent {
				e := makeEvent("c1", "Cancelled", "2026-02-27T09:00:00", "2026-02-27T10:00:00")
				e.IsCancelled = true
				return e
			}(),
		},
		{
			name: "all-day",
			event: func() msgraph.CalendarEvent {
				e := makeEvent("c2", "All Day", "2026-02-27T00:00:00", "2026-02-28T00:00:00")
				e.IsAllDay = true
				return e
			}(),
		},
		{
			name: "private",
			event: func() msgraph.CalendarEvent {
				e := makeEvent("c3", "Private", "2026-02-27T09:00:00", "2026-02-27T10:00:00")
				e.Sensitivity = "private"
				return e
			}(),
		},
		{
			name: "free",
			event: func() msgraph.CalendarEvent {
				e := makeEvent("c4", "Free Block", "2026-02-27T09:00:00", "2026-02-27T10:00:00")
				e.ShowAs = "free"
				return e
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wl := openLog(t)
			r := syncAndCommit(t, wl, []msgraph.CalendarEvent{tt.event})
			if r.Imported != 0 {
				t.Errorf("expected 0 imported for %s event, got %d", tt.name, r.Imported)
			}
			if n := len(entries(t, wl)); n != 0 {
				t.Errorf("entries = %d, want 0", n)
			}
		})
	}
}

func TestSyncEvents_DryRun(t *testing.T) {
	wl := openLog(t)
	events := []msgraph.CalendarEvent{
		makeEvent("ext-dry", "Dry Run Event", "2026-02-27T09:00:00", "2026-02-27T10:00:00"),
	}

	staged := wl.Deferred()
	defer staged.Close()
	result, err := msgraph.SyncEvents(events, staged, msgraph.SyncOptions{Project: "Meetings"}, "UTC")
	if err != nil {
		t.Fatalf("SyncEvents dry-run: %v", err)
	}
	if result.Imported != 1 {
		t.Errorf("dry-run Imported = %d, want 1", result.Imported)
	}
	if n := len(entries(t, staged)); n != 1 {
		t.Errorf("staged entries = %d, want 1", n)
	}

	if err := staged.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n := len(entries(t, wl)); n != 0 {
		t.Errorf("dry-run wrote %d entries, want 0", n)
	}
	if wl.IsDirty() {
		t.Error("working log is dirty after a dry run")
	}
}

func TestSyncEvents_PreservesManualEntries(t *testing.T) {
	wl := openLog(t)
	start := time.Date(2026, 2, 27, 11, 0, 0, 0, time.UTC)
	manual := model.LogEntry{
		ID:      wl.GetNextID(),
		Path:    "/Work/Coding",
		Start:   &start,
		Elapsed: 60,
		Comment: model.StringPtr("by hand"),
	}
	if err := wl.AddModification(model.AddChange(manual)); err != nil {
		t.Fatalf("adding manual entry: %v", err)
	}

	// Same start time, different project: not a match.
	result := syncAndCommit(t, wl, []msgraph.CalendarEvent{
		makeEvent("ext-1", "Meeting", "2026-02-27T11:00:00", "2026-02-27T12:00:00"),
	})
	if result.Imported != 1 {
		t.Fatalf("Imported = %d, want 1", result.Imported)
	}

	got := entries(t, wl)
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2 (manual + imported)", len(got))
	}
	if !got[0].Equal(manual) {
		t.Errorf("manual entry changed: %+v", got[0])
	}
	if got[1].ID <= manual.ID {
		t.Errorf("imported id %d not above manual id %d", got[1].ID, manual.ID)
	}
}

func TestGetCalendarView_Paging(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Prefer"); got != `outlook.timezone="Europe/Berlin"` {
			t.Errorf("Prefer header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"value": [{"id": "b", "subject": "Second"}]}`)
			return
		}
		if r.URL.Path != "/me/calendarView" || r.URL.Query().Get("startDateTime") == "" {
			t.Errorf("unexpected request %s", r.URL)
		}
		fmt.Fprintf(w, `{"value": [{"id": "a", "subject": "First"}], "@odata.nextLink": %q}`,
			srv.URL+"/me/calendarView?page=2")
	}))
	defer srv.Close()

	c := msgraph.NewClientWithHTTP(srv.Client(), srv.URL)
	from := time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)
	events, err := c.GetCalendarView(context.Background(), from, from.Add(24*time.Hour), "Europe/Berlin")
	if err != nil {
		t.Fatalf("GetCalendarView: %v", err)
	}
	if len(events) != 2 || events[0].ID != "a" || events[1].ID != "b" {
		t.Errorf("events = %+v", events)
	}
}

func TestGetCalendarView_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "denied"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	c := msgraph.NewClientWithHTTP(srv.Client(), srv.URL)
	if _, err := c.GetCalendarView(context.Background(), time.Now(), time.Now(), ""); err == nil {
		t.Error("expected an error for a 403 response")
	}
}
