package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// TaskError accumulates errors produced during a settlement sweep.
type TaskError struct {
	Errors []error
}

func (e *TaskError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := "multiple errors:"
	for _, err := range e.Errors {
		msg += " " + err.Error() + ";"
	}
	return msg
}

func (e *TaskError) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *TaskError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Settler pays out pending rewards using a worker pool, either as a one-off
// sweep or as a background loop.
type Settler struct {
	rewards *RewardService
	workers int
	logger  *slog.Logger
}

// NewSettler creates a Settler with the provided concurrency.
func NewSettler(rewards *RewardService, workers int, logger *slog.Logger) *Settler {
	if workers <= 0 {
		workers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Settler{
		rewards: rewards,
		workers: workers,
		logger:  logger,
	}
}

// ProcessPending settles every currently pending reward concurrently and
// aggregates per-reward failures. One failed settlement does not stop the
// rest of the sweep.
func (s *Settler) ProcessPending(ctx context.Context) (int, error) {
	pending, err := s.rewards.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	indexCh := make(chan int)
	errCh := make(chan error, len(pending))
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for idx := range indexCh {
			if err := s.rewards.Settle(ctx, pending[idx]); err != nil {
				select {
				case errCh <- err:
				case <-ctx.Done():
					return
				}
			}
		}
	}

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for i := 0; i < len(pending); i++ {
		select {
		case indexCh <- i:
		case <-ctx.Done():
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()
	close(errCh)

	var taskErr TaskError
	for err := range errCh {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return len(pending), err
		}
		taskErr.append(err)
	}
	return len(pending), taskErr.asError()
}

// Run sweeps pending rewards on the given interval until the context is
// cancelled.
func (s *Settler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("settler started", "interval", interval.String(), "workers", s.workers)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("settler stopped")
			return
		case <-ticker.C:
			processed, err := s.ProcessPending(ctx)
			if err != nil {
				s.logger.Error("settlement sweep finished with errors", "processed", processed, "error", err)
				continue
			}
			if processed > 0 {
				s.logger.Info("settlement sweep complete", "processed", processed)
			}
		}
	}
}
