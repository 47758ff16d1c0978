package recurrence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ricorrenze/internal/core"
)

func payment(id, owner int64, name string, cents int64, next time.Time) core.RecurringPayment {
	return core.RecurringPayment{
		ID:             id,
		OwnerID:        owner,
		Name:           name,
		Amount:         core.Money{Cents: cents},
		Category:       "Casa",
		Every:          core.Monthly,
		DayOfMonth:     core.NoDayOfMonth,
		DayOfWeek:      core.NoDayOfWeek,
		StartDate:      core.NewDate(2024, 1, 1),
		NextOccurrence: core.DateOf(next),
		Active:         true,
	}
}

func TestSelectDue(t *testing.T) {
	asOf := date(2024, 3, 15)

	active := payment(1, 10, "Affitto", 80000, date(2024, 3, 15))
	overdue := payment(2, 10, "Luce", 4500, date(2024, 3, 1))
	future := payment(3, 11, "Assicurazione", 12000, date(2024, 3, 20))

	inactive := payment(4, 11, "Palestra", 3000, date(2024, 3, 15))
	inactive.Active = false

	expired := payment(5, 12, "Abbonamento", 999, date(2024, 3, 10))
	expired.EndDate = core.NewDate(2024, 2, 28)

	endsToday := payment(6, 12, "Internet", 2999, date(2024, 3, 15))
	endsToday.EndDate = core.NewDate(2024, 3, 15)

	defs := []core.RecurringPayment{active, overdue, future, inactive, expired, endsToday}

	due := SelectDue(defs, asOf)

	wantIDs := map[int64]bool{1: true, 2: true, 6: true}
	if len(due) != len(wantIDs) {
		t.Fatalf("SelectDue() returned %d payments, want %d", len(due), len(wantIDs))
	}
	for _, p := range due {
		if !wantIDs[p.ID] {
			t.Errorf("SelectDue() unexpectedly selected payment %d (%s)", p.ID, p.Name)
		}
	}
}

func TestSelectDue_ToleranceIncludesRunDay(t *testing.T) {
	// A run fired at midnight must still pick up occurrences scheduled
	// for later that same day.
	asOf := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	p := payment(1, 10, "Affitto", 80000, date(2024, 3, 15))

	if got := SelectDue([]core.RecurringPayment{p}, asOf); len(got) != 1 {
		t.Errorf("SelectDue() = %d payments, want 1", len(got))
	}
}

func TestSelectDue_StartDateInFuture(t *testing.T) {
	// A series that has not started yet is simply not due, not an error.
	p := payment(1, 10, "Affitto", 80000, date(2024, 6, 1))
	p.StartDate = core.NewDate(2024, 6, 1)

	if got := SelectDue([]core.RecurringPayment{p}, date(2024, 3, 15)); len(got) != 0 {
		t.Errorf("SelectDue() = %d payments, want 0", len(got))
	}
}

// countingMaterializer advances each payment per its interval and records
// every invocation; payments whose name appears in failOn return an error.
type countingMaterializer struct {
	mu     sync.Mutex
	calls  map[int64]int
	failOn map[string]bool
}

func newCountingMaterializer(failOn ...string) *countingMaterializer {
	fail := make(map[string]bool, len(failOn))
	for _, name := range failOn {
		fail[name] = true
	}
	return &countingMaterializer{calls: make(map[int64]int), failOn: fail}
}

func (m *countingMaterializer) Materialize(_ context.Context, p core.RecurringPayment, _ time.Time) (MaterializeResult, error) {
	m.mu.Lock()
	m.calls[p.ID]++
	m.mu.Unlock()

	if m.failOn[p.Name] {
		return MaterializeResult{}, errors.New("storage unavailable")
	}
	next, err := NextOccurrence(p.NextOccurrence.Time, p.Every, AnchorOf(p))
	if err != nil {
		return MaterializeResult{}, err
	}
	return MaterializeResult{
		Amount:         p.Amount,
		NextOccurrence: core.DateOf(next),
	}, nil
}

func TestRunBatch(t *testing.T) {
	asOf := date(2024, 3, 15)
	due := []core.RecurringPayment{
		payment(1, 10, "Affitto", 80000, asOf),
		payment(2, 10, "Luce", 4500, asOf),
		payment(3, 11, "Assicurazione", 12000, asOf),
	}
	m := newCountingMaterializer()

	batch, err := RunBatch(context.Background(), due, asOf, m)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	if batch.ID == "" {
		t.Error("RunBatch() batch has empty ID")
	}
	if !batch.ExecutionDate.Equal(asOf) {
		t.Errorf("ExecutionDate = %v, want %v", batch.ExecutionDate, asOf)
	}
	if batch.ProcessedCount != 3 {
		t.Errorf("ProcessedCount = %d, want 3", batch.ProcessedCount)
	}
	if batch.CreatedCount != 3 {
		t.Errorf("CreatedCount = %d, want 3", batch.CreatedCount)
	}
	if want := int64(80000 + 4500 + 12000); batch.TotalAmount.Cents != want {
		t.Errorf("TotalAmount = %d cents, want %d", batch.TotalAmount.Cents, want)
	}
	if len(batch.Details) != 3 {
		t.Fatalf("Details length = %d, want 3", len(batch.Details))
	}

	for id, n := range m.calls {
		if n != 1 {
			t.Errorf("payment %d materialized %d times, want exactly 1", id, n)
		}
	}

	// Details are grouped by owner in ascending order.
	wantOwners := []int64{10, 10, 11}
	for i, d := range batch.Details {
		if d.OwnerID != wantOwners[i] {
			t.Errorf("Details[%d].OwnerID = %d, want %d", i, d.OwnerID, wantOwners[i])
		}
	}

	// The example: monthly on the 15th advances to the 15th of next month.
	next, err := NextOccurrence(asOf, core.Monthly, MonthDay(15))
	if err != nil {
		t.Fatalf("NextOccurrence() error = %v", err)
	}
	if want := date(2024, 4, 15); !next.Equal(want) {
		t.Errorf("NextOccurrence() = %v, want %v", next, want)
	}
}

func TestRunBatch_FailureIsolation(t *testing.T) {
	asOf := date(2024, 3, 15)
	due := []core.RecurringPayment{
		payment(1, 10, "Affitto", 80000, asOf),
		payment(2, 11, "Luce", 4500, asOf),
		payment(3, 12, "Assicurazione", 12000, asOf),
	}
	m := newCountingMaterializer("Luce")

	batch, err := RunBatch(context.Background(), due, asOf, m)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	if batch.ProcessedCount != 3 {
		t.Errorf("ProcessedCount = %d, want 3", batch.ProcessedCount)
	}
	if batch.CreatedCount != 2 {
		t.Errorf("CreatedCount = %d, want 2", batch.CreatedCount)
	}
	if want := int64(80000 + 12000); batch.TotalAmount.Cents != want {
		t.Errorf("TotalAmount = %d cents, want %d", batch.TotalAmount.Cents, want)
	}

	var failed []core.ExecutionDetail
	for _, d := range batch.Details {
		if d.Failed() {
			failed = append(failed, d)
		}
	}
	if len(failed) != 1 {
		t.Fatalf("failed details = %d, want 1", len(failed))
	}
	if failed[0].PaymentName != "Luce" {
		t.Errorf("failed payment = %q, want %q", failed[0].PaymentName, "Luce")
	}
	// The failed payment keeps its prior next occurrence so it is
	// re-evaluated as due on the next run.
	if !failed[0].NextOccurrence.Equal(core.DateOf(asOf).Time) {
		t.Errorf("failed NextOccurrence = %v, want unchanged %v", failed[0].NextOccurrence, asOf)
	}
}

func TestRunBatch_ZeroRunDate(t *testing.T) {
	_, err := RunBatch(context.Background(), nil, time.Time{}, newCountingMaterializer())
	if !errors.Is(err, ErrInvalidRunDate) {
		t.Errorf("RunBatch() error = %v, want ErrInvalidRunDate", err)
	}
}

func TestRunBatch_SecondRunFindsNothingDue(t *testing.T) {
	asOf := date(2024, 3, 15)
	defs := []core.RecurringPayment{payment(1, 10, "Affitto", 80000, asOf)}
	m := newCountingMaterializer()

	due := SelectDue(defs, asOf)
	batch, err := RunBatch(context.Background(), due, asOf, m)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if batch.CreatedCount != 1 {
		t.Fatalf("CreatedCount = %d, want 1", batch.CreatedCount)
	}

	// The caller persists the advanced next occurrence before any retry;
	// with that contract upheld the same run date selects nothing.
	defs[0].NextOccurrence = batch.Details[0].NextOccurrence

	if again := SelectDue(defs, asOf); len(again) != 0 {
		t.Fatalf("SelectDue() after advance = %d payments, want 0", len(again))
	}

	batch2, err := RunBatch(context.Background(), nil, asOf, m)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if batch2.CreatedCount != 0 || batch2.ProcessedCount != 0 {
		t.Errorf("second run created %d/processed %d, want 0/0", batch2.CreatedCount, batch2.ProcessedCount)
	}
	if n := m.calls[1]; n != 1 {
		t.Errorf("payment materialized %d times across runs, want exactly 1", n)
	}
}

func TestRunBatch_ManyOwnersConcurrently(t *testing.T) {
	asOf := date(2024, 3, 15)
	var due []core.RecurringPayment
	for i := int64(1); i <= 20; i++ {
		due = append(due, payment(i, i, fmt.Sprintf("Pagamento %d", i), 1000, asOf))
	}
	m := newCountingMaterializer()

	batch, err := RunBatch(context.Background(), due, asOf, m)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if batch.ProcessedCount != 20 || batch.CreatedCount != 20 {
		t.Errorf("processed %d / created %d, want 20/20", batch.ProcessedCount, batch.CreatedCount)
	}
	if want := int64(20000); batch.TotalAmount.Cents != want {
		t.Errorf("TotalAmount = %d cents, want %d", batch.TotalAmount.Cents, want)
	}
	for i, d := range batch.Details {
		if want := int64(i + 1); d.OwnerID != want {
			t.Errorf("Details[%d].OwnerID = %d, want %d (owner order)", i, d.OwnerID, want)
			break
		}
	}
}
