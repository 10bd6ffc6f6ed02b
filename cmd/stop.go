package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-time-log/internal/storage"
)

var stopComment string

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the currently running timer",
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

func init() {
	stopCmd.Flags().StringVar(&stopComment, "comment", "", "Append a comment to the entry")
}

func runStop(cmd *cobra.Command, args []string) error {
	now := time.Now()

	s := openSession()
	active, err := storage.LoadTimer(s.fs, s.dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if active == nil {
		fmt.Fprintln(os.Stderr, "No active timer to stop.")
		os.Exit(1)
	}

	var comment *string
	if stopComment != "" {
		comment = &stopComment
	}

	entries := stopTimer(s, active, now, comment)

	elapsed := int64(now.Sub(active.Start).Seconds())
	fmt.Printf("Stopped timer for %q. Elapsed: %s\n", active.Path, formatElapsed(elapsed))
	if len(entries) > 1 {
		fmt.Printf("Split across %d days at midnight.\n", len(entries))
	}
	if len(entries) == 0 {
		fmt.Println("Less than a minute elapsed; nothing logged.")
	}
	return nil
}

func formatElapsed(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
