package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-time-log/internal/model"
)

var (
	editPath         string
	editStart        string
	editElapsed      int64
	editInterrupt    int64
	editComment      string
	editClearComment bool
)

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change fields of a logged entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runEdit,
}

func init() {
	editCmd.Flags().StringVar(&editPath, "path", "", "New task path")
	editCmd.Flags().StringVar(&editStart, "start", "", `New start time "YYYY-MM-DD HH:MM"`)
	editCmd.Flags().Int64Var(&editElapsed, "elapsed", 0, "New elapsed minutes")
	editCmd.Flags().Int64Var(&editInterrupt, "interrupt", 0, "New interrupt minutes")
	editCmd.Flags().StringVar(&editComment, "comment", "", "New comment")
	editCmd.Flags().BoolVar(&editClearComment, "clear-comment", false, "Remove the comment")
}

// editDiff builds the diff that turns current into the requested values.
// Elapsed and interrupt are given as absolute values and stored as deltas.
func editDiff(current model.LogEntry, changed func(string) bool) model.LogEntry {
	diff := model.LogEntry{ID: current.ID}
	if changed("path") {
		diff.Path = normalizePath(editPath)
	}
	if changed("start") {
		start := parseStart(editStart)
		diff.Start = &start
	}
	if changed("elapsed") {
		diff.Elapsed = editElapsed - current.Elapsed
	}
	if changed("interrupt") {
		diff.Interrupt = editInterrupt - current.Interrupt
	}
	switch {
	case editClearComment:
		diff.Comment = model.StringPtr("")
	case changed("comment"):
		diff.Comment = &editComment
	}
	return diff
}

func runEdit(cmd *cobra.Command, args []string) error {
	id := parseID(args[0])
	if editClearComment && cmd.Flags().Changed("comment") {
		fail(1, fmt.Errorf("--comment and --clear-comment are mutually exclusive"))
	}
	if (cmd.Flags().Changed("elapsed") && editElapsed < 0) || (cmd.Flags().Changed("interrupt") && editInterrupt < 0) {
		fail(1, fmt.Errorf("--elapsed and --interrupt must not be negative"))
	}

	s := openSession()
	current, ok := s.findEntry(id)
	if !ok {
		fmt.Fprintf(os.Stderr, "No entry with id %d.\n", id)
		os.Exit(1)
	}

	diff := editDiff(current, cmd.Flags().Changed)
	if model.Fields(diff) == 0 {
		fmt.Println("Nothing to change.")
		return nil
	}
	if diff.Path != "" {
		s.checkAllowed(diff.Path)
	}
	s.modify(model.ModifyChange(diff))

	updated := model.ApplyChanges(current, diff, false)
	fmt.Printf("Updated entry %d: %s, %d min", id, updated.Path, updated.Elapsed)
	if c := updated.CommentText(); c != "" {
		fmt.Printf(" (%s)", c)
	}
	fmt.Println()
	return nil
}
