package usecase

import (
	"context"
	"time"

	"ClaimScanner/internal/ports"
)

// Scheduler wires a polling driver with a worker: every tick drains the queue.
type Scheduler struct {
	driver ports.Scheduler
	worker *Worker
}

// NewScheduler returns a helper to start/stop the polling loop.
func NewScheduler(driver ports.Scheduler, worker *Worker) *Scheduler {
	return &Scheduler{driver: driver, worker: worker}
}

// Start registers the worker with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.worker == nil {
		return nil
	}

	job := func(time.Time) {
		s.worker.Drain(ctx)
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

// Run starts polling and blocks until ctx is done, then stops the driver.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout+time.Second)
	defer cancel()
	return s.Stop(stopCtx)
}
