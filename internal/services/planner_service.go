// Package services orchestrates planner runs: locking, selection, batch
// execution, persistence of the audit record, and notification.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ricorrenze/internal/amqp"
	"ricorrenze/internal/core"
	"ricorrenze/internal/recurrence"
	"ricorrenze/internal/storage"
)

// PlannerStore is the persistence surface the planner run needs. It is
// satisfied by *storage.SQLiteRepository.
type PlannerStore interface {
	recurrence.Materializer

	AcquireRunLock(ctx context.Context, runDate time.Time) error
	GetActiveRecurringPayments(ctx context.Context) ([]core.RecurringPayment, error)
	SaveBatch(ctx context.Context, b core.ExecutionBatch) error
}

// BatchNotifier publishes batch-completed notifications. May be nil when
// AMQP is not configured.
type BatchNotifier interface {
	PublishBatchCompleted(ctx context.Context, msg *amqp.BatchCompletedMessage) error
}

// PlannerService runs the recurring-payment planner for one scheduler tick.
type PlannerService struct {
	store    PlannerStore
	notifier BatchNotifier
}

func NewPlannerService(store PlannerStore, notifier BatchNotifier) *PlannerService {
	return &PlannerService{
		store:    store,
		notifier: notifier,
	}
}

// Run executes one planner tick as of now. It returns nil without error
// when the tick's run lock is already held or nothing is due; a batch is
// only created when at least one payment was due.
func (s *PlannerService) Run(ctx context.Context, now time.Time) (*core.ExecutionBatch, error) {
	if err := s.store.AcquireRunLock(ctx, now); err != nil {
		if errors.Is(err, storage.ErrAlreadyRan) {
			slog.InfoContext(ctx, "Run already executed for this date, skipping",
				"run_date", core.DateOf(now).String())
			return nil, nil
		}
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}

	defs, err := s.store.GetActiveRecurringPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active recurring payments: %w", err)
	}

	due := recurrence.SelectDue(defs, now)
	slog.InfoContext(ctx, "Selected due recurring payments",
		"total_active", len(defs),
		"due", len(due),
		"run_date", core.DateOf(now).String())

	if len(due) == 0 {
		return nil, nil
	}

	batch, err := recurrence.RunBatch(ctx, due, now, s.store)
	if err != nil {
		return nil, fmt.Errorf("run batch: %w", err)
	}

	if err := s.store.SaveBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("save execution batch: %w", err)
	}

	slog.InfoContext(ctx, "Planner run complete",
		"batch_id", batch.ID,
		"processed", batch.ProcessedCount,
		"created", batch.CreatedCount,
		"total_amount_cents", batch.TotalAmount.Cents)

	s.publishCompleted(ctx, batch)

	return &batch, nil
}

// publishCompleted notifies downstream consumers. Best effort: the batch
// is already persisted, so a publish failure only delays the report
// mirror (the worker backfills unreported batches on startup).
func (s *PlannerService) publishCompleted(ctx context.Context, batch core.ExecutionBatch) {
	if s.notifier == nil {
		slog.WarnContext(ctx, "No batch notifier configured, skipping notification",
			"batch_id", batch.ID)
		return
	}

	msg := amqp.NewBatchCompletedMessage(batch.ID, batch.ExecutionDate,
		batch.CreatedCount, batch.TotalAmount.Cents)
	if err := s.notifier.PublishBatchCompleted(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish batch completed message",
			"batch_id", batch.ID,
			"error", err)
	}
}
