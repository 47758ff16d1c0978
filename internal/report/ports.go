// Package report defines the outbound port for mirroring execution
// batches to an external report.
package report

import (
	"context"

	"ricorrenze/internal/core"
)

// BatchReporter appends one row per execution batch to a report and
// returns a reference to the appended entry.
type BatchReporter interface {
	AppendBatch(ctx context.Context, b core.ExecutionBatch) (rowRef string, err error)
}
