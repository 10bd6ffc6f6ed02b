package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-time-log/internal/model"
	"github.com/Tiliavir/trivial-time-log/internal/timecalc"
)

var (
	reportWeek   bool
	reportAll    bool
	reportFrom   string
	reportTo     string
	reportPath   string
	reportDepth  int
	reportFormat string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show aggregated time report",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().BoolVar(&reportWeek, "week", false, "Report for this week (default)")
	reportCmd.Flags().BoolVar(&reportAll, "all", false, "Report over every entry")
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "First day (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "Last day (YYYY-MM-DD)")
	reportCmd.Flags().StringVar(&reportPath, "path", "", "Only entries at or below this task path")
	reportCmd.Flags().IntVar(&reportDepth, "depth", 1, "Number of path segments to group by")
	reportCmd.Flags().StringVar(&reportFormat, "format", "md", "Output format: md, csv, json")
}

// groupKey truncates path to its first depth segments.
func groupKey(path string, depth int) string {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	if depth > 0 && len(segs) > depth {
		segs = segs[:depth]
	}
	return "/" + strings.Join(segs, "/")
}

type reportRow struct {
	Path      string `json:"path"`
	Minutes   int64  `json:"duration_minutes"`
	Interrupt int64  `json:"interrupt_minutes"`
}

// aggregate sums elapsed and interrupt minutes per group, sorted by path.
func aggregate(entries []model.LogEntry, depth int) ([]reportRow, int64) {
	rows := map[string]*reportRow{}
	var total int64
	for _, e := range entries {
		key := groupKey(e.Path, depth)
		r, ok := rows[key]
		if !ok {
			r = &reportRow{Path: key}
			rows[key] = r
		}
		r.Minutes += e.Elapsed
		r.Interrupt += e.Interrupt
		total += e.Elapsed
	}
	out := make([]reportRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, total
}

func runReport(cmd *cobra.Command, args []string) error {
	now := time.Now()
	from, to := selectRange(now, false, reportWeek, reportAll, reportFrom, reportTo, timecalc.WeekRange)

	label := "all time"
	switch {
	case !from.IsZero() && !to.IsZero() && reportFrom == "" && reportTo == "":
		label = "Week " + timecalc.ISOWeekLabel(now)
	case !from.IsZero() || !to.IsZero():
		label = fmt.Sprintf("%s – %s", dayLabel(from), dayLabel(to))
	}

	s := openSession()
	rows, total := aggregate(s.query(reportPath, from, to), reportDepth)

	switch reportFormat {
	case "csv":
		fmt.Println("path,duration_minutes,interrupt_minutes")
		for _, r := range rows {
			fmt.Printf("%s,%d,%d\n", csvEscape(r.Path), r.Minutes, r.Interrupt)
		}
	case "json":
		data, err := json.MarshalIndent(struct {
			Range string      `json:"range"`
			Paths []reportRow `json:"paths"`
			Total int64       `json:"total_minutes"`
		}{label, rows, total}, "", "  ")
		if err != nil {
			fmt.Fprintln(os.Stderr, "error encoding JSON:", err)
			os.Exit(2)
		}
		fmt.Println(string(data))
	default: // md
		fmt.Println(label)
		fmt.Println("--------------------------------")
		for _, r := range rows {
			fmt.Printf("%-20s%s\n", r.Path, timecalc.FormatMinutes(r.Minutes))
		}
		fmt.Println("--------------------------------")
		fmt.Printf("%-20s%s\n", "Total", timecalc.FormatMinutes(total))
	}

	return nil
}

func dayLabel(t time.Time) string {
	if t.IsZero() {
		return "…"
	}
	return t.Format("2006-01-02")
}
