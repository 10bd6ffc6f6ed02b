package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-time-log/internal/model"
)

var (
	addStart     string
	addMinutes   int64
	addInterrupt int64
	addComment   string
)

var addCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Log time after the fact",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addStart, "start", "", `Start time "YYYY-MM-DD HH:MM" (default: now minus --minutes)`)
	addCmd.Flags().Int64Var(&addMinutes, "minutes", 0, "Elapsed minutes (required)")
	addCmd.Flags().Int64Var(&addInterrupt, "interrupt", 0, "Interrupt minutes")
	addCmd.Flags().StringVar(&addComment, "comment", "", "Optional comment")
	_ = addCmd.MarkFlagRequired("minutes")
}

// parseStart reads a local "YYYY-MM-DD HH:MM" timestamp.
func parseStart(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local)
	if err != nil {
		fail(1, fmt.Errorf("invalid --start value %q: want YYYY-MM-DD HH:MM", s))
	}
	return t
}

func runAdd(cmd *cobra.Command, args []string) error {
	path := normalizePath(args[0])
	if addMinutes <= 0 || addInterrupt < 0 {
		fmt.Fprintln(os.Stderr, "--minutes must be positive and --interrupt not negative")
		os.Exit(1)
	}

	start := time.Now().Add(-time.Duration(addMinutes+addInterrupt) * time.Minute).Truncate(time.Minute)
	if addStart != "" {
		start = parseStart(addStart)
	}

	s := openSession()
	s.checkAllowed(path)

	e := model.LogEntry{
		ID:        s.nextID(),
		Path:      path,
		Start:     &start,
		Elapsed:   addMinutes,
		Interrupt: addInterrupt,
	}
	if addComment != "" {
		e.Comment = &addComment
	}
	s.modify(model.AddChange(e))

	fmt.Printf("Added entry %d: %s, %d min at %s\n", e.ID, path, addMinutes, start.Format("2006-01-02 15:04"))
	return nil
}
