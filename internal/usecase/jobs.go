package usecase

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"

	"ClaimScanner/internal/domain"
	"ClaimScanner/internal/ports"
)

// JobService is the caller-facing side of the queue: submit inputs and poll status.
type JobService struct {
	repo ports.JobRepository
	log  *slog.Logger
}

// NewJobService wires the repository.
func NewJobService(repo ports.JobRepository, logger *slog.Logger) *JobService {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobService{repo: repo, log: logger}
}

// Submit enqueues an input; duplicates resolve to the live job with the same key.
func (s *JobService) Submit(ctx context.Context, in domain.Input, forceRefresh bool) (domain.Submission, error) {
	sub, err := s.repo.Submit(ctx, in, forceRefresh)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("submit job: %w", err)
	}
	s.log.Info("job submitted",
		"job_id", sub.Job.ID,
		"status", sub.Job.Status,
		"created", sub.Created,
		"reset", sub.Reset,
		"force_refresh", forceRefresh,
	)
	return sub, nil
}

// Status returns the job state for a caller presenting the job token. The result
// payload is included only once the job is done.
func (s *JobService) Status(ctx context.Context, id, token string) (domain.JobStatusView, error) {
	job, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.JobStatusView{}, err
	}
	if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(job.Token)) != 1 {
		return domain.JobStatusView{}, domain.ErrTokenMismatch
	}

	view := domain.JobStatusView{
		ID:           job.ID,
		Status:       job.Status,
		Attempts:     job.Attempts,
		ErrorCode:    job.ErrorCode,
		ErrorMessage: job.ErrorMessage,
	}
	if job.Status != domain.JobDone {
		return view, nil
	}

	view.FinalScore = job.FinalScore
	if len(job.Result) > 0 {
		var res domain.Result
		if err := json.Unmarshal(job.Result, &res); err != nil {
			return domain.JobStatusView{}, fmt.Errorf("decode result of job %s: %w", job.ID, err)
		}
		view.Result = &res
	}
	return view, nil
}
