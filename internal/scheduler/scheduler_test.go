package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"city-stats-platform/internal/services"
	"city-stats-platform/pkg/logging"
)

type countingRunner struct {
	calls atomic.Int32
	err   error
}

func (r *countingRunner) Run(ctx context.Context) (*services.RunResult, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return &services.RunResult{}, nil
}

func waitFor(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for scheduled run")
		return nil
	}
}

func TestScheduler_RunsImmediately(t *testing.T) {
	runner := &countingRunner{}
	s := New(runner, time.Hour, time.Second, logging.NewNopLogger())

	done := make(chan error, 1)
	s.OnComplete(func(_ *services.RunResult, err error) {
		select {
		case done <- err:
		default:
		}
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if err := waitFor(t, done); err != nil {
		t.Errorf("run error = %v", err)
	}
	if runner.calls.Load() != 1 {
		t.Errorf("runner called %d times, want 1", runner.calls.Load())
	}
	if !s.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}
}

func TestScheduler_ReportsRunErrors(t *testing.T) {
	boom := errors.New("boom")
	s := New(&countingRunner{err: boom}, time.Hour, 0, logging.NewNopLogger())

	done := make(chan error, 1)
	s.OnComplete(func(_ *services.RunResult, err error) {
		select {
		case done <- err:
		default:
		}
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	if err := waitFor(t, done); !errors.Is(err, boom) {
		t.Errorf("run error = %v, want %v", err, boom)
	}
}

func TestScheduler_NoRunner(t *testing.T) {
	s := New(nil, 0, 0, logging.NewNopLogger())
	if err := s.Start(context.Background()); !errors.Is(err, ErrNoRunner) {
		t.Errorf("Start() error = %v, want ErrNoRunner", err)
	}
	if s.interval != DefaultInterval {
		t.Errorf("interval = %v, want %v", s.interval, DefaultInterval)
	}
}
