package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ClaimScanner/internal/domain"
	"ClaimScanner/internal/metrics"
	"ClaimScanner/internal/ports"
)

const finishTimeout = 10 * time.Second

// Analyzer scores one input.
type Analyzer interface {
	Analyze(ctx context.Context, in domain.Input) (domain.Result, error)
}

// WorkerDeps wires a worker loop.
type WorkerDeps struct {
	Repository ports.JobRepository
	Analyzer   Analyzer
	Notifier   ports.Notifier
	Metrics    ports.Metrics
	Logger     *slog.Logger
	JobTimeout time.Duration
}

// Worker claims jobs one at a time and records their outcome.
type Worker struct {
	repo       ports.JobRepository
	analyzer   Analyzer
	notifier   ports.Notifier
	metrics    ports.Metrics
	log        *slog.Logger
	jobTimeout time.Duration
}

// NewWorker builds a single-threaded worker.
func NewWorker(deps WorkerDeps) *Worker {
	m := deps.Metrics
	if m == nil {
		m = metrics.Nop{}
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	timeout := deps.JobTimeout
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &Worker{
		repo:       deps.Repository,
		analyzer:   deps.Analyzer,
		notifier:   deps.Notifier,
		metrics:    m,
		log:        log,
		jobTimeout: timeout,
	}
}

// ProcessNext claims and processes one job. It reports false when nothing was claimable.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	job, ok, err := w.repo.ClaimNext(ctx)
	if err != nil {
		return false, fmt.Errorf("claim next job: %w", err)
	}
	if !ok {
		return false, nil
	}
	w.metrics.JobClaimed()

	log := w.log.With("job_id", job.ID, "attempt", job.Attempts, "max_attempts", job.MaxAttempts)
	log.Debug("job claimed", "kind", job.Input.Kind)

	jobCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	result, err := w.analyzer.Analyze(jobCtx, job.Input)
	cancel()

	// Outcome writes must land even when ctx is being cancelled for shutdown.
	finishCtx, finishCancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer finishCancel()

	if err == nil {
		var payload []byte
		payload, err = json.Marshal(result)
		if err != nil {
			err = fmt.Errorf("encode result: %w", err)
		} else {
			return true, w.complete(finishCtx, log, job, result, payload)
		}
	}
	return true, w.handleFailure(finishCtx, log, job, err)
}

// Drain processes jobs until none is claimable or ctx is done.
func (w *Worker) Drain(ctx context.Context) {
	for ctx.Err() == nil {
		processed, err := w.ProcessNext(ctx)
		if err != nil {
			if ctx.Err() == nil {
				w.log.Error("worker iteration failed", "error", err)
			}
			return
		}
		if !processed {
			return
		}
	}
}

func (w *Worker) complete(ctx context.Context, log *slog.Logger, job domain.Job, result domain.Result, payload []byte) error {
	if err := w.repo.Complete(ctx, job, result.Score, payload); err != nil {
		if errors.Is(err, domain.ErrClaimLost) {
			log.Warn("claim lost before completion, result discarded")
			return nil
		}
		return fmt.Errorf("complete job %s: %w", job.ID, err)
	}

	w.metrics.JobCompleted(result.Tier, result.Score)
	attrs := []any{"tier", result.Tier}
	if result.Score != nil {
		attrs = append(attrs, "score", domain.FormatScore(*result.Score))
	}
	log.Info("job done", attrs...)
	return nil
}

// handleFailure requeues retryable failures while attempts remain; everything else
// fails the job permanently and alerts the notifier.
func (w *Worker) handleFailure(ctx context.Context, log *slog.Logger, job domain.Job, cause error) error {
	code := domain.ErrorCode(cause)
	message := cause.Error()

	if domain.Retryable(cause) && job.CanRetry() {
		if err := w.repo.Requeue(ctx, job, code, message); err != nil {
			if errors.Is(err, domain.ErrClaimLost) {
				log.Warn("claim lost before requeue", "error", cause)
				return nil
			}
			return fmt.Errorf("requeue job %s: %w", job.ID, err)
		}
		w.metrics.JobRequeued(code)
		log.Warn("job attempt failed, requeued", "code", code, "error", cause)
		return nil
	}

	if err := w.repo.Fail(ctx, job, code, message); err != nil {
		if errors.Is(err, domain.ErrClaimLost) {
			log.Warn("claim lost before failure was recorded", "error", cause)
			return nil
		}
		return fmt.Errorf("fail job %s: %w", job.ID, err)
	}
	w.metrics.JobFailed(code)
	log.Error("job failed permanently", "code", code, "error", cause)

	if w.notifier != nil {
		job.Status = domain.JobFailed
		job.ErrorCode = code
		job.ErrorMessage = message
		if err := w.notifier.JobFailed(ctx, job); err != nil {
			log.Warn("failure alert not delivered", "error", err)
		}
	}
	return nil
}
