// Package memory is an in-memory BatchReporter for tests and deployments
// without a configured report sheet.
package memory

import (
	"context"
	"fmt"
	"sync"

	"ricorrenze/internal/core"
)

type Store struct {
	mu      sync.Mutex
	batches []core.ExecutionBatch
}

func New() *Store {
	return &Store{}
}

// AppendBatch stores the batch and returns a synthetic row reference.
func (s *Store) AppendBatch(_ context.Context, b core.ExecutionBatch) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, b)
	return fmt.Sprintf("mem:%d", len(s.batches)), nil
}

// Batches returns a copy of everything appended so far.
func (s *Store) Batches() []core.ExecutionBatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.ExecutionBatch(nil), s.batches...)
}
