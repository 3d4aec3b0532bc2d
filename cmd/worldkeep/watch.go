package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/worldkeep/worldkeep/internal/archive"
	"github.com/worldkeep/worldkeep/internal/config"
	"github.com/worldkeep/worldkeep/internal/orchestrator"
	"github.com/worldkeep/worldkeep/internal/target"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Backs up on each target's configured interval until interrupted",
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// minimumWait keeps the loop from spinning when a cycle overruns its
// interval.
const minimumWait = 5 * time.Second

type schedule struct {
	target   target.Target
	interval time.Duration
	next     time.Time
}

func buildSchedules(cfg *config.Config, now time.Time) []*schedule {
	intervals := map[string]time.Duration{
		"local": time.Duration(cfg.Local.IntervalMinutes) * time.Minute,
		"ftp":   time.Duration(cfg.FTP.IntervalMinutes) * time.Minute,
	}

	var schedules []*schedule
	for _, t := range buildTargets(cfg) {
		schedules = append(schedules, &schedule{
			target:   t,
			interval: intervals[t.ID()],
			next:     now, // first cycle runs immediately
		})
	}
	return schedules
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	archiver := archive.New(cfg.ScratchDir)
	schedules := buildSchedules(cfg, time.Now())
	for _, s := range schedules {
		logger.Info("watching", "target", s.target.ID(), "interval", s.interval)
	}

	for {
		now := time.Now()
		var due []target.Target
		for _, s := range schedules {
			if !now.Before(s.next) {
				due = append(due, s.target)
				s.next = now.Add(s.interval)
			}
		}

		if len(due) > 0 {
			o := orchestrator.New(archiver, due, logger)
			summary, err := o.Run(ctx, cfg.SourceFolder)
			if summary != nil {
				logSummary(summary)
			}
			if err != nil {
				// A failed cycle does not stop the loop; the next interval
				// retries.
				logger.Error("backup cycle failed", "error", err)
			}
		}

		earliest := schedules[0].next
		for _, s := range schedules[1:] {
			if s.next.Before(earliest) {
				earliest = s.next
			}
		}
		wait := time.Until(earliest)
		if wait < minimumWait {
			wait = minimumWait
		}

		select {
		case <-ctx.Done():
			logger.Info("stopping")
			return nil
		case <-time.After(wait):
		}
	}
}
