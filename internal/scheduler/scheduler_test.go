package scheduler

import (
	"context"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"
)

func TestAddJobRejectsBadSpec(t *testing.T) {
	s := New(log.New(io.Discard, "", 0), time.Second)
	if err := s.AddJob("every five minutes", "sweep", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected parse error")
	}
	if err := s.AddJob("@every 5m", "sweep", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("descriptor rejected: %v", err)
	}
	if err := s.AddJob("*/5 * * * *", "sweep", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("five-field spec rejected: %v", err)
	}
}

func TestRunAppliesTimeoutAndSurvivesErrors(t *testing.T) {
	s := New(log.New(io.Discard, "", 0), 10*time.Millisecond)

	var sawDeadline atomic.Bool
	s.run("deadline", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		sawDeadline.Store(ok)
		return nil
	})
	if !sawDeadline.Load() {
		t.Fatal("job context has no deadline")
	}

	s.run("failing", func(context.Context) error { return errors.New("boom") })
}

func TestStartStop(t *testing.T) {
	s := New(log.New(io.Discard, "", 0), time.Second)
	var runs atomic.Int32
	if err := s.AddJob("@every 1s", "tick", func(context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	s.Start()

	deadline := time.Now().Add(3 * time.Second)
	for runs.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if runs.Load() == 0 {
		t.Fatal("job never ran")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
