package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-time-log/internal/model"
	"github.com/Tiliavir/trivial-time-log/internal/storage"
	"github.com/Tiliavir/trivial-time-log/internal/timecalc"
)

var startComment string

var startCmd = &cobra.Command{
	Use:   "start <path>",
	Short: "Start a timer for a task path, e.g. /Project/Design",
	Args:  cobra.ExactArgs(1),
	RunE:  runStart,
}

func init() {
	startCmd.Flags().StringVar(&startComment, "comment", "", "Optional comment")
}

func runStart(cmd *cobra.Command, args []string) error {
	path := normalizePath(args[0])
	now := time.Now()

	s := openSession()
	s.checkAllowed(path)

	// Check for an active timer and auto-stop it.
	active, err := storage.LoadTimer(s.fs, s.dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if active != nil {
		fmt.Fprintf(os.Stderr, "Warning: auto-stopping active timer for %q\n", active.Path)
		stopTimer(s, active, now, nil)
	}

	timer := storage.Timer{Path: path, Start: now}
	if startComment != "" {
		timer.Comment = &startComment
	}
	if err := storage.SaveTimer(s.safe, s.dir, timer); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fmt.Printf("Started timer for %q at %s\n", path, now.Format("15:04:05"))
	return nil
}

// normalizePath makes sure a task path starts with a slash and does not end
// with one.
func normalizePath(p string) string {
	if p == "" || p[0] != '/' {
		p = "/" + p
	}
	for len(p) > 1 && p[len(p)-1] == '/' {
		p = p[:len(p)-1]
	}
	return p
}

// stopTimer logs the running timer as one entry per calendar day it covers
// and clears it. A comment is appended to the timer's own.
func stopTimer(s *session, timer *storage.Timer, stopTime time.Time, comment *string) []model.LogEntry {
	if comment != nil && *comment != "" {
		if timer.Comment != nil {
			merged := *timer.Comment + "\n" + *comment
			timer.Comment = &merged
		} else {
			timer.Comment = comment
		}
	}

	var entries []model.LogEntry
	var mods []model.Modification
	for _, span := range timecalc.SplitDays(timer.Start, stopTime) {
		minutes := timecalc.Minutes(span.End.Sub(span.Start))
		if minutes <= 0 {
			continue
		}
		e := model.LogEntry{
			ID:      s.nextID(),
			Path:    timer.Path,
			Start:   model.TimePtr(span.Start),
			Elapsed: minutes,
			Comment: timer.Comment,
		}
		entries = append(entries, e)
		mods = append(mods, model.AddChange(e))
	}
	if len(mods) > 0 {
		s.modify(mods...)
	}
	if err := storage.ClearTimer(s.fs, s.dir); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	return entries
}
