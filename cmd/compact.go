package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-time-log/internal/timelog"
)

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Fold pending modifications into the time log",
	Args:  cobra.NoArgs,
	RunE:  runCompact,
}

func runCompact(cmd *cobra.Command, args []string) error {
	s := openSession(timelog.WithCompactOnOpen(false))
	if err := s.log.Compact(); err != nil {
		fail(2, fmt.Errorf("compaction failed: %w", err))
	}
	fmt.Println("Time log compacted.")
	return nil
}
