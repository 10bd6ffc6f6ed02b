package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-time-log/internal/model"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete logged entries",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDelete,
}

func runDelete(cmd *cobra.Command, args []string) error {
	ids := make([]uint64, len(args))
	for i, a := range args {
		ids[i] = parseID(a)
	}

	s := openSession()
	mods := make([]model.Modification, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.findEntry(id); !ok {
			fmt.Fprintf(os.Stderr, "No entry with id %d.\n", id)
			os.Exit(1)
		}
		mods = append(mods, model.DeleteChange(id))
	}
	s.modify(mods...)

	fmt.Printf("Deleted %d entr%s.\n", len(mods), plural(len(mods), "y", "ies"))
	return nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
