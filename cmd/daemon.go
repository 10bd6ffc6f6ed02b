package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-time-log/internal/model"
	"github.com/Tiliavir/trivial-time-log/internal/timelog"
	"github.com/Tiliavir/trivial-time-log/internal/watch"
)

var daemonQuiet bool

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Watch the time log for changes and compact it periodically",
	Long: `daemon keeps the time log open, reloads it whenever another ttt process
records a modification and compacts it on the configured interval
(timelog.compact_interval). Stop it with Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().BoolVarP(&daemonQuiet, "quiet", "q", false, "Do not print change events")
}

// describeEvent renders a change event as a single line.
func describeEvent(e timelog.Event) string {
	if e.IsRefresh() {
		return "reloaded"
	}
	switch c := e.Change.(type) {
	case model.PendingChange:
		switch c.Flag {
		case model.Added:
			return fmt.Sprintf("added %d %s (%d min)", c.ID(), c.Entry.Path, c.Entry.Elapsed)
		case model.Deleted:
			return fmt.Sprintf("deleted %d", c.ID())
		}
		return fmt.Sprintf("modified %d", c.ID())
	case model.RenameInstruction:
		return fmt.Sprintf("renamed %s → %s", c.OldPath, c.NewPath)
	}
	return fmt.Sprintf("changed (%T)", e.Change)
}

// lockedCompactor compacts while holding the data directory lock, so a CLI
// process never writes between the daemon's reload and its fold.
type lockedCompactor struct {
	ctx context.Context
	s   *session
}

func (c lockedCompactor) Compact() error {
	return c.s.locked(c.ctx, c.s.log.Compact)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	s := openSession()
	s.release()
	logger := slog.Default()

	if !daemonQuiet {
		sub := s.log.Subscribe(func(e timelog.Event) {
			fmt.Println(describeEvent(e))
		})
		defer s.log.Unsubscribe(sub)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := &watch.Watcher{
		Path:   filepath.Join(s.dir, timelog.ModificationsFile),
		Target: s.log,
		Logger: logger,
	}

	every := s.cfg.Timelog.CompactEvery()
	fmt.Printf("Watching %s, compacting every %s.\n", s.dir, every)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		watch.Compact(ctx, lockedCompactor{ctx: ctx, s: s}, every, logger)
	}()

	watchErr := w.Run(ctx)
	stop()
	wg.Wait()

	final := lockedCompactor{ctx: context.Background(), s: s}
	if err := final.Compact(); err != nil {
		logger.Error("final compaction failed", "error", err)
		if err := s.log.Save(); err != nil {
			fail(2, fmt.Errorf("storage error: %w", err))
		}
	}
	if watchErr != nil {
		fail(2, watchErr)
	}
	return nil
}
