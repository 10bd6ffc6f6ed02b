package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-time-log/internal/model"
)

var renameCmd = &cobra.Command{
	Use:   "rename <old-path> <new-path>",
	Short: "Move every entry at or below a task path to a new path",
	Args:  cobra.ExactArgs(2),
	RunE:  runRename,
}

func runRename(cmd *cobra.Command, args []string) error {
	oldPath, newPath := normalizePath(args[0]), normalizePath(args[1])
	if oldPath == newPath {
		fail(1, fmt.Errorf("old and new path are the same"))
	}
	if err := (model.RenameInstruction{OldPath: oldPath, NewPath: newPath}).Check(); err != nil {
		fail(1, err)
	}

	s := openSession()
	s.checkAllowed(newPath)

	affected := len(s.query(oldPath, time.Time{}, time.Time{}))
	s.modify(model.RenameInstruction{OldPath: oldPath, NewPath: newPath})

	fmt.Printf("Renamed %s → %s (%d entr%s).\n", oldPath, newPath, affected, plural(affected, "y", "ies"))
	return nil
}
