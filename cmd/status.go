package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-time-log/internal/storage"
	"github.com/Tiliavir/trivial-time-log/internal/timecalc"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current timer status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	now := time.Now()

	s := openSession()
	active, err := storage.LoadTimer(s.fs, s.dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if active != nil {
		elapsed := int64(now.Sub(active.Start).Seconds())
		fmt.Println("Running:")
		fmt.Printf("  Path: %s\n", active.Path)
		if active.Comment != nil {
			fmt.Printf("  Comment: %s\n", *active.Comment)
		}
		fmt.Printf("  Since: %s\n", active.Start.Format("15:04"))
		fmt.Printf("  Elapsed: %s\n", timecalc.FormatDurationHHMMSS(elapsed))
		return nil
	}

	// Idle — show today's total.
	var total int64
	for _, e := range s.query("", timecalc.StartOfDay(now), timecalc.EndOfDay(now)) {
		total += e.Elapsed
	}

	fmt.Println("No active timer.")
	fmt.Printf("Today: %s logged.\n", timecalc.FormatMinutes(total))
	return nil
}
