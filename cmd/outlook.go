package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-time-log/internal/config"
	"github.com/Tiliavir/trivial-time-log/internal/msgraph"
	"github.com/Tiliavir/trivial-time-log/internal/timecalc"
)

var (
	outlookSyncFrom    string
	outlookSyncTo      string
	outlookSyncDate    string
	outlookSyncToday   bool
	outlookSyncDryRun  bool
	outlookSyncProject string
	outlookSyncTZ      string
)

var outlookCmd = &cobra.Command{
	Use:   "outlook",
	Short: "Outlook calendar integration",
}

var outlookSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync Outlook calendar events into the time log",
	Args:  cobra.NoArgs,
	RunE:  runOutlookSync,
}

func init() {
	outlookSyncCmd.Flags().StringVar(&outlookSyncFrom, "from", "", "Start date (YYYY-MM-DD); required when --to is specified")
	outlookSyncCmd.Flags().StringVar(&outlookSyncTo, "to", "", "End date (YYYY-MM-DD); defaults to today")
	outlookSyncCmd.Flags().StringVar(&outlookSyncDate, "date", "", "Sync a specific date (YYYY-MM-DD)")
	outlookSyncCmd.Flags().BoolVar(&outlookSyncToday, "today", false, "Sync only today (default)")
	outlookSyncCmd.Flags().BoolVar(&outlookSyncDryRun, "dry-run", false, "Show what would change without writing")
	outlookSyncCmd.Flags().StringVar(&outlookSyncProject, "project", "", "Project for imported events (default from config)")
	outlookSyncCmd.Flags().StringVar(&outlookSyncTZ, "timezone", "", "IANA timezone for event times (default from config)")
	outlookCmd.AddCommand(outlookSyncCmd)
}

// syncRange resolves the --date/--from/--to flags. Today is the default.
func syncRange(now time.Time, date, from, to string) (time.Time, time.Time) {
	switch {
	case date != "":
		return parseRange(date, date)
	case from != "" || to != "":
		if from == "" {
			fail(1, fmt.Errorf("--from is required when --to is specified"))
		}
		f, t := parseRange(from, to)
		if to == "" {
			t = timecalc.EndOfDay(now)
		}
		return f, t
	}
	return today(now)
}

func runOutlookSync(cmd *cobra.Command, args []string) error {
	from, to := syncRange(time.Now(), outlookSyncDate, outlookSyncFrom, outlookSyncTo)

	s := openSession()
	oc := s.cfg.Outlook

	project := firstNonEmpty(outlookSyncProject, oc.DefaultProject, config.DefaultProject)
	timezone := firstNonEmpty(outlookSyncTZ, oc.Timezone)
	tenantID := firstNonEmpty(oc.TenantID, config.DefaultTenantID)
	clientID := firstNonEmpty(oc.ClientID, config.DefaultClientID)

	dryTag := ""
	if outlookSyncDryRun {
		dryTag = " [dry-run]"
	}
	fmt.Printf("Syncing Outlook events (%s → %s)%s...\n",
		from.Format("2006-01-02"), to.Format("2006-01-02"), dryTag)
	fmt.Println()

	ctx := context.Background()

	tok, oauthCfg, err := msgraph.GetHTTPClient(ctx, tenantID, clientID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Authentication failed: %v\n", err)
		os.Exit(1)
	}

	client := msgraph.NewClient(ctx, tok, oauthCfg)

	events, err := client.GetCalendarView(ctx, from, to, timezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to fetch calendar events: %v\n", err)
		os.Exit(1)
	}

	staged := s.log.Deferred()
	defer staged.Close()

	opts := msgraph.SyncOptions{From: from, To: to, Project: project}
	result, err := msgraph.SyncEvents(events, staged, opts, timezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Sync error: %v\n", err)
		os.Exit(1)
	}

	if outlookSyncDryRun {
		if err := staged.Clear(); err != nil {
			fail(2, err)
		}
	} else if err := staged.Commit(); err != nil {
		fail(2, fmt.Errorf("storage error: %w", err))
	}

	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  %d imported\n", result.Imported)
	fmt.Printf("  %d skipped\n", result.Skipped)
	fmt.Printf("  %d updated\n", result.Updated)
	if result.Errors > 0 {
		fmt.Printf("  %d errors\n", result.Errors)
		os.Exit(2)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
