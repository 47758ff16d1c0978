// Package scheduler triggers planner runs on a cron schedule.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"ricorrenze/internal/core"
)

// Runner executes one planner tick; satisfied by *services.PlannerService.
type Runner interface {
	Run(ctx context.Context, now time.Time) (*core.ExecutionBatch, error)
}

type Scheduler struct {
	cronEngine *cron.Cron
	planner    Runner
	cronSpec   string
	runTimeout time.Duration
}

// New builds a scheduler firing the planner per cronSpec (standard five
// field syntax, e.g. "0 6 * * *" for 06:00 daily). Each run gets its own
// timeout; overlapping ticks are harmless because the per-date run lock
// makes the second one a no-op.
func New(planner Runner, cronSpec string, runTimeout time.Duration) *Scheduler {
	return &Scheduler{
		cronEngine: cron.New(cron.WithLocation(time.UTC)),
		planner:    planner,
		cronSpec:   cronSpec,
		runTimeout: runTimeout,
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
		defer cancel()

		now := time.Now().UTC()
		slog.InfoContext(ctx, "Scheduled planner run triggered",
			"run_date", core.DateOf(now).String())

		batch, err := s.planner.Run(ctx, now)
		switch {
		case err != nil:
			slog.ErrorContext(ctx, "Scheduled planner run failed", "error", err)
		case batch == nil:
			slog.InfoContext(ctx, "Scheduled planner run found nothing to do")
		default:
			slog.InfoContext(ctx, "Scheduled planner run complete",
				"batch_id", batch.ID,
				"created", batch.CreatedCount)
		}
	})
	if err != nil {
		return err
	}

	s.cronEngine.Start()
	slog.Info("Scheduler started", "cron_spec", s.cronSpec)
	return nil
}

// Stop halts the cron engine and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	slog.Info("Scheduler stopped")
}
