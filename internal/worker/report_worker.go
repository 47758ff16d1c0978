// Package worker mirrors persisted execution batches to the report,
// driven by batch-completed messages with a startup backfill for
// anything a lost message left behind.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ricorrenze/internal/amqp"
	"ricorrenze/internal/core"
	"ricorrenze/internal/report"
	"ricorrenze/internal/storage"
)

// BatchStore is the storage surface the worker needs; satisfied by
// *storage.SQLiteRepository.
type BatchStore interface {
	GetBatch(ctx context.Context, id string) (core.ExecutionBatch, error)
	UnreportedBatches(ctx context.Context, limit int) ([]core.ExecutionBatch, error)
	MarkBatchReported(ctx context.Context, id string) error
}

type ReportWorker struct {
	store     BatchStore
	reporter  report.BatchReporter
	batchSize int
}

func NewReportWorker(store BatchStore, reporter report.BatchReporter, batchSize int) *ReportWorker {
	return &ReportWorker{
		store:     store,
		reporter:  reporter,
		batchSize: batchSize,
	}
}

// HandleBatchMessage mirrors a single batch announced over AMQP.
func (w *ReportWorker) HandleBatchMessage(ctx context.Context, msg *amqp.BatchCompletedMessage) error {
	slog.InfoContext(ctx, "Processing batch completed message",
		"batch_id", msg.BatchID,
		"created_count", msg.CreatedCount)

	batch, err := w.store.GetBatch(ctx, msg.BatchID)
	if errors.Is(err, storage.ErrNotFound) {
		// The batch is gone; requeueing would loop forever.
		slog.WarnContext(ctx, "Batch not found in storage, dropping message",
			"batch_id", msg.BatchID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get batch from storage: %w", err)
	}

	return w.mirrorBatch(ctx, batch)
}

// StartupBackfill mirrors any batches that were persisted but never
// reported, recovering from lost messages or worker downtime.
func (w *ReportWorker) StartupBackfill(ctx context.Context) error {
	pending, err := w.store.UnreportedBatches(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get unreported batches: %w", err)
	}

	if len(pending) == 0 {
		slog.InfoContext(ctx, "No unreported batches found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found unreported batches on startup, mirroring",
		"count", len(pending))

	for _, batch := range pending {
		if err := w.mirrorBatch(ctx, batch); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror batch during backfill",
				"batch_id", batch.ID,
				"error", err)
			continue
		}
	}

	return nil
}

func (w *ReportWorker) mirrorBatch(ctx context.Context, batch core.ExecutionBatch) error {
	ref, err := w.reporter.AppendBatch(ctx, batch)
	if err != nil {
		return fmt.Errorf("append batch to report: %w", err)
	}

	if err := w.store.MarkBatchReported(ctx, batch.ID); err != nil {
		// The row exists; a repeated append on retry is acceptable for
		// an informational report, so log instead of failing.
		slog.ErrorContext(ctx, "Failed to mark batch reported",
			"batch_id", batch.ID,
			"error", err)
	}

	slog.InfoContext(ctx, "Mirrored batch to report",
		"batch_id", batch.ID,
		"row_ref", ref)

	return nil
}
