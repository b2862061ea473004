package ports

import (
	"context"
	"time"

	"ClaimScanner/internal/domain"
)

// JobRepository is the only component that writes job rows.
type JobRepository interface {
	// Submit enqueues an input or resolves it to the live job with the same dedup key.
	Submit(ctx context.Context, in domain.Input, forceRefresh bool) (domain.Submission, error)
	Get(ctx context.Context, id string) (domain.Job, error)
	// ClaimNext atomically claims the oldest claimable job. ok is false when none is available.
	ClaimNext(ctx context.Context) (job domain.Job, ok bool, err error)
	Complete(ctx context.Context, job domain.Job, score *float64, result []byte) error
	Requeue(ctx context.Context, job domain.Job, code, message string) error
	Fail(ctx context.Context, job domain.Job, code, message string) error
}

// ReportProvider sends an instruction/user message pair to the text-generation service.
type ReportProvider interface {
	Complete(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// PageFetcher turns a URL into bounded plain text.
type PageFetcher interface {
	FetchText(ctx context.Context, rawURL string) (string, error)
}

// Notifier alerts operators about permanently failed jobs.
type Notifier interface {
	JobFailed(ctx context.Context, job domain.Job) error
}

// Metrics receives worker and pipeline events.
type Metrics interface {
	JobClaimed()
	JobCompleted(tier domain.Tier, score *float64)
	JobRequeued(code string)
	JobFailed(code string)
	ReportRetried()
	ProviderCall(d time.Duration, err error)
}

// Scheduler drives periodic work such as polling for claimable jobs.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
