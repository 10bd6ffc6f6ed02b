package cmd

import (
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-time-log/internal/entryiter"
	"github.com/Tiliavir/trivial-time-log/internal/model"
	"github.com/Tiliavir/trivial-time-log/internal/timecalc"
)

var (
	listToday bool
	listWeek  bool
	listAll   bool
	listFrom  string
	listTo    string
	listPath  string
	listMatch string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List time entries",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listToday, "today", false, "Show today's entries")
	listCmd.Flags().BoolVar(&listWeek, "week", false, "Show this week's entries")
	listCmd.Flags().BoolVar(&listAll, "all", false, "Show every entry")
	listCmd.Flags().StringVar(&listFrom, "from", "", "First day (YYYY-MM-DD)")
	listCmd.Flags().StringVar(&listTo, "to", "", "Last day (YYYY-MM-DD)")
	listCmd.Flags().StringVar(&listPath, "path", "", "Only entries at or below this task path")
	listCmd.Flags().StringVar(&listMatch, "match", "", `Only entries whose path matches a glob, e.g. "/*/Design"`)
}

// selectRange picks the reporting range from the common flags. With no flag
// set it falls back to def.
func selectRange(now time.Time, today, week, all bool, from, to string, def func(time.Time) (time.Time, time.Time)) (time.Time, time.Time) {
	switch {
	case all:
		return time.Time{}, time.Time{}
	case from != "" || to != "":
		return parseRange(from, to)
	case week:
		return timecalc.WeekRange(now)
	case today:
		return timecalc.StartOfDay(now), timecalc.EndOfDay(now)
	}
	return def(now)
}

func today(now time.Time) (time.Time, time.Time) {
	return timecalc.StartOfDay(now), timecalc.EndOfDay(now)
}

func runList(cmd *cobra.Command, args []string) error {
	from, to := selectRange(time.Now(), listToday, listWeek, listAll, listFrom, listTo, today)

	s := openSession()
	it, err := s.log.Filter(listPath, from, to)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if listMatch != "" {
		if it, err = entryiter.MatchGlob(it, listMatch); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	entries, err := entryiter.Collect(it)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	sortByStart(entries)
	printList(os.Stdout, entries)
	return nil
}

// sortByStart orders entries chronologically; undated entries go last.
func sortByStart(entries []model.LogEntry) {
	slices.SortStableFunc(entries, func(a, b model.LogEntry) int {
		switch {
		case a.Start == nil && b.Start == nil:
			return 0
		case a.Start == nil:
			return 1
		case b.Start == nil:
			return -1
		}
		return a.Start.Compare(*b.Start)
	})
}

// printList groups entries by date and prints them.
func printList(w io.Writer, entries []model.LogEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries found.")
		return
	}

	var currentDay string
	for _, e := range entries {
		day := "undated"
		startStr := "--:--"
		endStr := "--:--"
		if e.Start != nil {
			start := e.Start.Local()
			day = start.Format("2006-01-02")
			startStr = start.Format("15:04")
			endStr = start.Add(time.Duration(e.Elapsed+e.Interrupt) * time.Minute).Format("15:04")
		}
		if day != currentDay {
			fmt.Fprintln(w, day)
			currentDay = day
		}

		extra := ""
		if e.Interrupt != 0 {
			extra = fmt.Sprintf(", %s interrupted", timecalc.FormatMinutes(e.Interrupt))
		}
		comment := ""
		if e.Comment != nil {
			comment = "  # " + *e.Comment
		}

		fmt.Fprintf(w, "%6d  %s–%s  %s (%s%s)%s\n",
			e.ID, startStr, endStr, e.Path, timecalc.FormatMinutes(e.Elapsed), extra, comment)
	}
}
