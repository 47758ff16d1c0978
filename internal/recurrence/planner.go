package recurrence

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ricorrenze/internal/core"
)

// ErrInvalidRunDate is returned by RunBatch when the reference date is
// missing; no per-payment work is started in that case.
var ErrInvalidRunDate = errors.New("run date is zero")

// dueTolerance keeps payments scheduled for the run day itself selectable
// regardless of the run's time of day.
const dueTolerance = 24 * time.Hour

// defaultOwnerConcurrency bounds how many owner groups run in parallel
// inside one batch.
const defaultOwnerConcurrency = 4

// MaterializeResult is what the persistence collaborator reports after
// materializing one due payment.
type MaterializeResult struct {
	Amount         core.Money
	NextOccurrence core.Date
}

// Materializer is the injected persistence collaborator. Materialize must
// create exactly one transaction dated at asOf and persist the advanced
// next occurrence as a single atomic unit; on error neither effect may be
// visible, leaving the payment due for the next run.
type Materializer interface {
	Materialize(ctx context.Context, p core.RecurringPayment, asOf time.Time) (MaterializeResult, error)
}

// MaterializerFunc adapts a function to the Materializer interface.
type MaterializerFunc func(ctx context.Context, p core.RecurringPayment, asOf time.Time) (MaterializeResult, error)

func (f MaterializerFunc) Materialize(ctx context.Context, p core.RecurringPayment, asOf time.Time) (MaterializeResult, error) {
	return f(ctx, p, asOf)
}

// SelectDue returns the payments due as of asOf: active, next occurrence
// within the run day (or overdue), and not past their end date. Output
// order is unspecified.
func SelectDue(defs []core.RecurringPayment, asOf time.Time) []core.RecurringPayment {
	cutoff := asOf.Add(dueTolerance)
	var due []core.RecurringPayment
	for _, p := range defs {
		if !p.Active {
			continue
		}
		if p.NextOccurrence.After(cutoff) {
			continue
		}
		if !p.EndDate.IsZero() && p.EndDate.Before(core.DateOf(asOf).Time) {
			continue
		}
		due = append(due, p)
	}
	return due
}

// RunBatch materializes every due payment exactly once and returns the
// finalized ExecutionBatch for the run.
//
// Payments are grouped by owner; groups run concurrently since one owner's
// payments are independent of another's. A failed materialization is
// isolated: it is recorded in the batch details and the remaining payments
// still fire. Details are ordered by owner, then by the payments' input
// order within each owner.
func RunBatch(ctx context.Context, due []core.RecurringPayment, asOf time.Time, m Materializer) (core.ExecutionBatch, error) {
	if asOf.IsZero() {
		return core.ExecutionBatch{}, ErrInvalidRunDate
	}

	batch := core.ExecutionBatch{
		ID:            uuid.NewString(),
		ExecutionDate: asOf,
	}

	groups := groupByOwner(due)
	owners := make([]int64, 0, len(groups))
	for owner := range groups {
		owners = append(owners, owner)
	}
	sort.Slice(owners, func(i, j int) bool { return owners[i] < owners[j] })

	results := make([][]core.ExecutionDetail, len(owners))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultOwnerConcurrency)
	for i, owner := range owners {
		i, payments := i, groups[owner]
		g.Go(func() error {
			results[i] = materializeGroup(gctx, payments, asOf, m)
			return nil
		})
	}
	// Goroutines never return errors; failures live in the details.
	_ = g.Wait()

	for _, details := range results {
		for _, d := range details {
			batch.ProcessedCount++
			if d.Failed() {
				continue
			}
			batch.CreatedCount++
			batch.TotalAmount = batch.TotalAmount.Add(core.Money{Cents: d.AmountCents})
		}
		batch.Details = append(batch.Details, details...)
	}

	return batch, nil
}

func groupByOwner(due []core.RecurringPayment) map[int64][]core.RecurringPayment {
	groups := make(map[int64][]core.RecurringPayment)
	for _, p := range due {
		groups[p.OwnerID] = append(groups[p.OwnerID], p)
	}
	return groups
}

func materializeGroup(ctx context.Context, payments []core.RecurringPayment, asOf time.Time, m Materializer) []core.ExecutionDetail {
	details := make([]core.ExecutionDetail, 0, len(payments))
	for _, p := range payments {
		res, err := m.Materialize(ctx, p, asOf)
		if err != nil {
			slog.ErrorContext(ctx, "Materialization failed, payment stays due",
				"payment_id", p.ID,
				"owner_id", p.OwnerID,
				"name", p.Name,
				"error", err)
			details = append(details, core.ExecutionDetail{
				PaymentName:    p.Name,
				OwnerID:        p.OwnerID,
				AmountCents:    p.Amount.Cents,
				NextOccurrence: p.NextOccurrence,
				Error:          err.Error(),
			})
			continue
		}
		details = append(details, core.ExecutionDetail{
			PaymentName:    p.Name,
			OwnerID:        p.OwnerID,
			AmountCents:    res.Amount.Cents,
			NextOccurrence: res.NextOccurrence,
		})
	}
	return details
}
