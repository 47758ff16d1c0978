// Package storage persists recurring payments, materialized transactions,
// and execution batches in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ricorrenze/internal/core"
	"ricorrenze/internal/recurrence"

	_ "modernc.org/sqlite"
)

const dateLayout = "2006-01-02"

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyRan is returned by AcquireRunLock when a run for the
	// same date already holds the lock.
	ErrAlreadyRan = errors.New("run already executed for this date")
)

type SQLiteRepository struct {
	db *sql.DB
}

// The repository doubles as the planner's persistence collaborator.
var _ recurrence.Materializer = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateRecurringPayment inserts a validated definition and returns its ID.
func (r *SQLiteRepository) CreateRecurringPayment(ctx context.Context, p core.RecurringPayment) (int64, error) {
	if err := p.Validate(); err != nil {
		return 0, fmt.Errorf("validate payment: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_payments
			(owner_id, name, amount_cents, category, every, day_of_month, day_of_week,
			 start_date, end_date, next_occurrence, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.OwnerID, p.Name, p.Amount.Cents, p.Category, string(p.Every),
		p.DayOfMonth, p.DayOfWeek,
		p.StartDate.Format(dateLayout), nullableDate(p.EndDate),
		p.NextOccurrence.Format(dateLayout), p.Active)
	if err != nil {
		return 0, fmt.Errorf("insert recurring payment: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Recurring payment saved",
		"id", id,
		"owner_id", p.OwnerID,
		"name", p.Name,
		"amount_cents", p.Amount.Cents,
		"every", p.Every,
		"next_occurrence", p.NextOccurrence.String())

	return id, nil
}

const paymentColumns = `id, owner_id, name, amount_cents, category, every,
	day_of_month, day_of_week, start_date, end_date, next_occurrence, is_active`

// GetRecurringPayment loads one definition by ID.
func (r *SQLiteRepository) GetRecurringPayment(ctx context.Context, id int64) (core.RecurringPayment, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM recurring_payments WHERE id = ?`, id)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringPayment{}, ErrNotFound
	}
	if err != nil {
		return core.RecurringPayment{}, fmt.Errorf("get recurring payment %d: %w", id, err)
	}
	return p, nil
}

// ListRecurringPayments returns all definitions for an owner, newest first.
func (r *SQLiteRepository) ListRecurringPayments(ctx context.Context, ownerID int64) ([]core.RecurringPayment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM recurring_payments WHERE owner_id = ? ORDER BY id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list recurring payments: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows)
}

// GetActiveRecurringPayments returns every active definition; the planner
// does the due-ness filtering itself.
func (r *SQLiteRepository) GetActiveRecurringPayments(ctx context.Context) ([]core.RecurringPayment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM recurring_payments WHERE is_active = 1 ORDER BY owner_id, id`)
	if err != nil {
		return nil, fmt.Errorf("get active recurring payments: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows)
}

// DeactivateRecurringPayment turns a definition off; it is never selected
// as due again until reactivated.
func (r *SQLiteRepository) DeactivateRecurringPayment(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_payments SET is_active = 0, updated_at = datetime('now') WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deactivate recurring payment %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Materialize implements recurrence.Materializer: it creates exactly one
// transaction dated at asOf and advances the payment's next occurrence,
// both inside a single database transaction so a crash cannot leave one
// effect without the other.
func (r *SQLiteRepository) Materialize(ctx context.Context, p core.RecurringPayment, asOf time.Time) (recurrence.MaterializeResult, error) {
	next, err := recurrence.NextOccurrence(p.NextOccurrence.Time, p.Every, recurrence.AnchorOf(p))
	if err != nil {
		return recurrence.MaterializeResult{}, fmt.Errorf("compute next occurrence: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return recurrence.MaterializeResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (owner_id, name, amount_cents, category, tx_date, recurring_payment_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.OwnerID, p.Name, p.Amount.Cents, p.Category,
		core.DateOf(asOf).String(), p.ID)
	if err != nil {
		return recurrence.MaterializeResult{}, fmt.Errorf("insert transaction: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE recurring_payments SET next_occurrence = ?, updated_at = datetime('now') WHERE id = ?`,
		core.DateOf(next).String(), p.ID)
	if err != nil {
		return recurrence.MaterializeResult{}, fmt.Errorf("advance next occurrence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return recurrence.MaterializeResult{}, fmt.Errorf("commit materialization: %w", err)
	}

	slog.InfoContext(ctx, "Materialized recurring payment",
		"payment_id", p.ID,
		"owner_id", p.OwnerID,
		"name", p.Name,
		"amount_cents", p.Amount.Cents,
		"next_occurrence", core.DateOf(next).String())

	return recurrence.MaterializeResult{
		Amount:         p.Amount,
		NextOccurrence: core.DateOf(next),
	}, nil
}

// SaveBatch stores a finalized execution batch. Batches are append-only;
// there is no update path.
func (r *SQLiteRepository) SaveBatch(ctx context.Context, b core.ExecutionBatch) error {
	details, err := json.Marshal(b.Details)
	if err != nil {
		return fmt.Errorf("marshal batch details: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO execution_batches
			(id, execution_date, processed_count, created_count, total_amount_cents, details)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.ExecutionDate.UTC().Format(time.RFC3339),
		b.ProcessedCount, b.CreatedCount, b.TotalAmount.Cents, string(details))
	if err != nil {
		return fmt.Errorf("insert execution batch: %w", err)
	}
	return nil
}

// GetBatch loads one execution batch by ID.
func (r *SQLiteRepository) GetBatch(ctx context.Context, id string) (core.ExecutionBatch, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, execution_date, processed_count, created_count, total_amount_cents, details
		FROM execution_batches WHERE id = ?`, id)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExecutionBatch{}, ErrNotFound
	}
	if err != nil {
		return core.ExecutionBatch{}, fmt.Errorf("get batch %s: %w", id, err)
	}
	return b, nil
}

// LatestBatch returns the most recent execution batch, the record callers
// query for "what happened in the last run".
func (r *SQLiteRepository) LatestBatch(ctx context.Context) (core.ExecutionBatch, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, execution_date, processed_count, created_count, total_amount_cents, details
		FROM execution_batches ORDER BY execution_date DESC LIMIT 1`)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExecutionBatch{}, ErrNotFound
	}
	if err != nil {
		return core.ExecutionBatch{}, fmt.Errorf("latest batch: %w", err)
	}
	return b, nil
}

// UnreportedBatches returns batches not yet mirrored to the report,
// oldest first. Used by the report worker's startup backfill.
func (r *SQLiteRepository) UnreportedBatches(ctx context.Context, limit int) ([]core.ExecutionBatch, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, execution_date, processed_count, created_count, total_amount_cents, details
		FROM execution_batches WHERE reported_at IS NULL
		ORDER BY execution_date ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("unreported batches: %w", err)
	}
	defer rows.Close()

	var batches []core.ExecutionBatch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// MarkBatchReported records that a batch has been mirrored to the report.
func (r *SQLiteRepository) MarkBatchReported(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE execution_batches SET reported_at = datetime('now') WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark batch reported: %w", err)
	}
	return nil
}

// AcquireRunLock claims the run lock for a date. The primary key on
// run_date makes the claim exclusive: a second claim for the same date
// returns ErrAlreadyRan.
func (r *SQLiteRepository) AcquireRunLock(ctx context.Context, runDate time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO run_locks (run_date) VALUES (?)`,
		core.DateOf(runDate).String())
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrAlreadyRan
	}
	return nil
}

// ListTransactions returns an owner's most recent transactions.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, ownerID int64, limit int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, name, amount_cents, category, tx_date, COALESCE(recurring_payment_id, 0)
		FROM transactions WHERE owner_id = ?
		ORDER BY tx_date DESC, id DESC LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var txDate string
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Name, &t.Amount.Cents, &t.Category, &txDate, &t.RecurringPaymentID); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		d, err := parseDate(txDate)
		if err != nil {
			return nil, err
		}
		t.Date = d
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPayment(row rowScanner) (core.RecurringPayment, error) {
	var (
		p          core.RecurringPayment
		every      string
		startDate  string
		endDate    sql.NullString
		occurrence string
	)
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Amount.Cents, &p.Category, &every,
		&p.DayOfMonth, &p.DayOfWeek, &startDate, &endDate, &occurrence, &p.Active)
	if err != nil {
		return core.RecurringPayment{}, err
	}

	p.Every = core.Interval(every)
	if p.StartDate, err = parseDate(startDate); err != nil {
		return core.RecurringPayment{}, err
	}
	if endDate.Valid && endDate.String != "" {
		if p.EndDate, err = parseDate(endDate.String); err != nil {
			return core.RecurringPayment{}, err
		}
	}
	if p.NextOccurrence, err = parseDate(occurrence); err != nil {
		return core.RecurringPayment{}, err
	}
	return p, nil
}

func collectPayments(rows *sql.Rows) ([]core.RecurringPayment, error) {
	var payments []core.RecurringPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func scanBatch(row rowScanner) (core.ExecutionBatch, error) {
	var (
		b        core.ExecutionBatch
		execDate string
		details  string
	)
	err := row.Scan(&b.ID, &execDate, &b.ProcessedCount, &b.CreatedCount, &b.TotalAmount.Cents, &details)
	if err != nil {
		return core.ExecutionBatch{}, err
	}
	if b.ExecutionDate, err = time.Parse(time.RFC3339, execDate); err != nil {
		return core.ExecutionBatch{}, fmt.Errorf("parse execution date: %w", err)
	}
	if err := json.Unmarshal([]byte(details), &b.Details); err != nil {
		return core.ExecutionBatch{}, fmt.Errorf("unmarshal batch details: %w", err)
	}
	return b, nil
}

func parseDate(s string) (core.Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return core.Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return core.Date{Time: t}, nil
}

func nullableDate(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.Format(dateLayout)
}
