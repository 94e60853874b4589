package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestEveryRejectsBadJobs(t *testing.T) {
	s := New(zerolog.Nop())

	if err := s.Every("zero", 0, func() {}); err == nil {
		t.Error("expected error for zero interval")
	}
	if err := s.Every("sweep", time.Second, func() {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Every("sweep", time.Second, func() {}); err == nil {
		t.Error("expected error for duplicate job name")
	}
	if len(s.Jobs()) != 1 {
		t.Errorf("expected 1 job, got %d", len(s.Jobs()))
	}
}

func TestJobsRunAndSurvivePanics(t *testing.T) {
	s := New(zerolog.Nop())

	var runs, panics atomic.Int32
	if err := s.Every("count", time.Second, func() { runs.Add(1) }); err != nil {
		t.Fatal(err)
	}
	if err := s.Every("boom", time.Second, func() {
		panics.Add(1)
		panic("boom")
	}); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	defer cancel()

	deadline := time.After(5 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected the job to run twice, ran %d times", runs.Load())
		case <-time.After(50 * time.Millisecond):
		}
	}
	if panics.Load() == 0 {
		t.Error("expected the panicking job to have run")
	}
}
