package scheduler

import (
	"context"
	"testing"
	"time"

	"ricorrenze/internal/core"
)

type nopRunner struct{}

func (nopRunner) Run(context.Context, time.Time) (*core.ExecutionBatch, error) {
	return nil, nil
}

func TestScheduler_StartRejectsBadSpec(t *testing.T) {
	s := New(nopRunner{}, "not a cron spec", time.Minute)
	if err := s.Start(); err == nil {
		t.Error("Start() expected error for invalid cron spec")
	}
}

func TestScheduler_StartAndStop(t *testing.T) {
	s := New(nopRunner{}, "0 6 * * *", time.Minute)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	s.Stop()
}
