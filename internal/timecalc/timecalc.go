package timecalc

import (
	"fmt"
	"time"
)

// Minutes converts d to whole minutes, rounding to the nearest minute.
func Minutes(d time.Duration) int64 {
	return int64(d.Round(time.Minute) / time.Minute)
}

// FormatMinutes formats minutes like "1h 40m" or "45m".
func FormatMinutes(minutes int64) string {
	sign := ""
	if minutes < 0 {
		sign = "-"
		minutes = -minutes
	}
	if h := minutes / 60; h > 0 {
		return fmt.Sprintf("%s%dh %dm", sign, h, minutes%60)
	}
	return fmt.Sprintf("%s%dm", sign, minutes)
}

// ParseDay parses a YYYY-MM-DD date in the local timezone.
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.Local)
}

// FormatDurationHHMMSS formats seconds as HH:MM:SS.
func FormatDurationHHMMSS(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// WeekRange returns the Monday and Sunday of the ISO week containing t.
func WeekRange(t time.Time) (time.Time, time.Time) {
	// Go's weekday: Sunday=0, Monday=1, …, Saturday=6
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7 // treat Sunday as 7 (ISO)
	}
	monday := t.AddDate(0, 0, -(wd - 1))
	monday = time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, t.Location())
	sunday := monday.AddDate(0, 0, 6)
	sunday = time.Date(sunday.Year(), sunday.Month(), sunday.Day(), 23, 59, 59, 0, t.Location())
	return monday, sunday
}

// ISOWeekLabel returns a label like "2026-W09".
func ISOWeekLabel(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// Midnight returns the start of the next day (midnight) in the same location.
func Midnight(t time.Time) time.Time {
	next := t.AddDate(0, 0, 1)
	return time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, t.Location())
}

// StartOfDay returns 00:00:00 of the same day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59 of the same day.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Span is a half-open interval [Start, End).
type Span struct {
	Start, End time.Time
}

// SplitDays cuts [start, end) at every midnight it crosses, so each span lies
// within one calendar day of start's location.
func SplitDays(start, end time.Time) []Span {
	var spans []Span
	for !SameDay(start, end) && start.Before(end) {
		next := Midnight(start)
		spans = append(spans, Span{Start: start, End: next})
		start = next
	}
	if len(spans) > 0 && !start.Before(end) {
		return spans
	}
	return append(spans, Span{Start: start, End: end})
}
