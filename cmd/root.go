package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-time-log/internal/approver"
	"github.com/Tiliavir/trivial-time-log/internal/config"
	"github.com/Tiliavir/trivial-time-log/internal/entryiter"
	"github.com/Tiliavir/trivial-time-log/internal/model"
	"github.com/Tiliavir/trivial-time-log/internal/storage"
	"github.com/Tiliavir/trivial-time-log/internal/timecalc"
	"github.com/Tiliavir/trivial-time-log/internal/timelog"
)

var (
	dataDirFlag string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "ttt",
	Short: "Trivial Time Tracker – a minimal CLI time tracker",
	Long: `ttt is a single-binary, file-based command-line time tracker.
Entries live in an XML time log in ~/.ttt/. Changes are recorded in a
separate modifications file and folded into the log on compaction.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Directory holding the time log (default from config, else ~/.ttt)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(compactCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(outlookCmd)
}

// fail prints err and exits with code (1 for usage errors, 2 for storage
// errors).
func fail(code int, err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(code)
}

func loadConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	return cfg
}

// dataDir resolves the time log directory: --data-dir, then the config file,
// then ~/.ttt.
func dataDir(cfg config.Config) string {
	if dataDirFlag != "" {
		return dataDirFlag
	}
	if cfg.Timelog.DataDir != "" {
		return cfg.Timelog.DataDir
	}
	base, err := storage.BaseDir()
	if err != nil {
		fail(2, err)
	}
	return base
}

// session is what most commands work with.
type session struct {
	cfg  config.Config
	dir  string
	fs   afero.Fs
	log  *timelog.WorkingLog
	safe *storage.SafeWriter
	lock *flock.Flock
}

// openSession opens the working log. The data directory stays locked against
// other ttt processes until the process exits or release is called.
func openSession(opts ...timelog.Option) *session {
	cfg := loadConfig()
	s := &session{cfg: cfg, dir: dataDir(cfg), fs: afero.NewOsFs()}
	s.safe = storage.NewSafeWriter(s.fs)
	lock, err := lockDataDir(context.Background(), s.dir, lockTimeout)
	if err != nil {
		fail(2, err)
	}
	s.lock = lock
	opts = append([]timelog.Option{timelog.WithCompactOnOpen(cfg.Timelog.ShouldCompactOnOpen())}, opts...)
	wl, err := timelog.Open(s.fs, s.dir, opts...)
	if err != nil {
		fail(2, err)
	}
	s.log = wl
	return s
}

func (s *session) approver() approver.Approver {
	if len(s.cfg.Timelog.ForbiddenPaths) == 0 {
		return approver.AllowAll{}
	}
	g, err := approver.NewGlobs(s.cfg.Timelog.ForbiddenPaths)
	if err != nil {
		fail(1, fmt.Errorf("config: %w", err))
	}
	return g
}

// checkAllowed exits when the configured policy forbids logging to path.
func (s *session) checkAllowed(path string) {
	if !s.approver().IsLoggingAllowed(path) {
		fail(1, fmt.Errorf("logging time to %q is not allowed (see timelog.forbidden_paths)", path))
	}
}

// modify applies ms and reports a failed save. The change is still visible
// to this process, and the next successful save or compaction persists it.
func (s *session) modify(ms ...model.Modification) {
	if err := s.log.AddModifications(ms); err != nil {
		if errors.Is(err, timelog.ErrNoChange) || errors.Is(err, timelog.ErrInvalid) {
			fail(1, err)
		}
		fail(2, fmt.Errorf("storage error: %w", err))
	}
}

// nextID hands out a fresh entry id.
func (s *session) nextID() uint64 {
	id, err := s.log.NextID()
	if err != nil {
		fail(2, fmt.Errorf("storage error: %w", err))
	}
	return id
}

// query collects the entries of the working log matching the arguments.
func (s *session) query(path string, from, to time.Time) []model.LogEntry {
	it, err := s.log.Filter(path, from, to)
	if err != nil {
		fail(2, err)
	}
	entries, err := entryiter.Collect(it)
	if err != nil {
		fail(2, err)
	}
	return entries
}

// findEntry returns the entry with the given id.
func (s *session) findEntry(id uint64) (model.LogEntry, bool) {
	for _, e := range s.query("", time.Time{}, time.Time{}) {
		if e.ID == id {
			return e, true
		}
	}
	return model.LogEntry{}, false
}

func parseID(arg string) uint64 {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil || id == 0 {
		fail(1, fmt.Errorf("invalid entry id %q", arg))
	}
	return id
}

// parseRange turns --from/--to style flags into inclusive bounds. Empty
// values are unset.
func parseRange(from, to string) (time.Time, time.Time) {
	var f, t time.Time
	if from != "" {
		d, err := timecalc.ParseDay(from)
		if err != nil {
			fail(1, fmt.Errorf("invalid --from value %q: %w", from, err))
		}
		f = timecalc.StartOfDay(d)
	}
	if to != "" {
		d, err := timecalc.ParseDay(to)
		if err != nil {
			fail(1, fmt.Errorf("invalid --to value %q: %w", to, err))
		}
		t = timecalc.EndOfDay(d)
	}
	return f, t
}
