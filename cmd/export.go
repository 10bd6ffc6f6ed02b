package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-time-log/internal/codec"
	"github.com/Tiliavir/trivial-time-log/internal/entryiter"
	"github.com/Tiliavir/trivial-time-log/internal/model"
	"github.com/Tiliavir/trivial-time-log/internal/timecalc"
)

var (
	exportFormat string
	exportAll    bool
	exportFrom   string
	exportTo     string
	exportPath   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export time entries to stdout",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv, json, md, xml")
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "Export every entry instead of this week's")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "First day (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Last day (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportPath, "path", "", "Only entries at or below this task path")
}

func runExport(cmd *cobra.Command, args []string) error {
	from, to := selectRange(time.Now(), false, false, exportAll, exportFrom, exportTo, timecalc.WeekRange)

	s := openSession()
	entries := s.query(exportPath, from, to)

	switch exportFormat {
	case "json":
		data, err := json.MarshalIndent(toJSON(entries), "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, "error encoding JSON:", err)
			os.Exit(2)
		}
		fmt.Println(string(data))
	case "md":
		sortByStart(entries)
		printList(os.Stdout, entries)
	case "xml":
		recs := make([]model.PendingChange, len(entries))
		for i, e := range entries {
			recs[i] = model.PendingChange{Entry: e}
		}
		if err := codec.Write(os.Stdout, entryiter.FromSlice(recs)); err != nil {
			fmt.Fprintln(os.Stderr, "error encoding XML:", err)
			os.Exit(2)
		}
	default: // csv
		printCSV(os.Stdout, entries)
	}

	return nil
}

type jsonEntry struct {
	ID        uint64     `json:"id"`
	Path      string     `json:"path"`
	Start     *time.Time `json:"start,omitempty"`
	Elapsed   int64      `json:"elapsed_minutes"`
	Interrupt int64      `json:"interrupt_minutes"`
	Comment   *string    `json:"comment,omitempty"`
}

func toJSON(entries []model.LogEntry) []jsonEntry {
	out := make([]jsonEntry, len(entries))
	for i, e := range entries {
		out[i] = jsonEntry{e.ID, e.Path, e.Start, e.Elapsed, e.Interrupt, e.Comment}
	}
	return out
}

func printCSV(w io.Writer, entries []model.LogEntry) {
	fmt.Fprintln(w, "id,date,path,comment,start,elapsed_minutes,interrupt_minutes")
	for _, e := range entries {
		date, startStr := "", ""
		if e.Start != nil {
			date = e.Start.Local().Format("2006-01-02")
			startStr = e.Start.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d,%s,%s,%s,%s,%d,%d\n",
			e.ID,
			csvEscape(date),
			csvEscape(e.Path),
			csvEscape(e.CommentText()),
			csvEscape(startStr),
			e.Elapsed,
			e.Interrupt,
		)
	}
}

// csvEscape wraps a field in quotes if it contains a comma, quote, or newline.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
