package core

import "time"

// ExecutionBatch is the audit record of one scheduler run. It is written
// once, after every due payment in the run has been processed, and never
// mutated afterwards. Callers read it to answer "what happened in the
// last run".
type ExecutionBatch struct {
	ID             string
	ExecutionDate  time.Time
	ProcessedCount int
	CreatedCount   int
	TotalAmount    Money
	Details        []ExecutionDetail
}

// ExecutionDetail records the outcome for a single due payment within a
// batch. Error is empty on success; on failure NextOccurrence carries the
// unchanged prior value, so the payment is picked up again on the next run.
type ExecutionDetail struct {
	PaymentName    string `json:"payment_name"`
	OwnerID        int64  `json:"owner_id"`
	AmountCents    int64  `json:"amount_cents"`
	NextOccurrence Date   `json:"next_occurrence"`
	Error          string `json:"error,omitempty"`
}

// Failed reports whether the detail records a materialization failure.
func (d ExecutionDetail) Failed() bool { return d.Error != "" }
