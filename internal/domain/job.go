package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Terminal reports whether no further processing will happen without a resubmission.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobFailed
}

// DefaultMaxAttempts bounds job-level processing attempts.
const DefaultMaxAttempts = 3

// Error codes recorded on failed jobs.
const (
	CodeReportInvalid       = "report_invalid"
	CodeProviderUnavailable = "provider_unavailable"
	CodeInvalidInput        = "invalid_input"
	CodeStaleClaimExhausted = "stale_claim_exhausted"
	CodeSuperseded          = "superseded"
	CodeInternal            = "internal_error"
)

var (
	// ErrJobNotFound is returned when no job matches the requested id.
	ErrJobNotFound = errors.New("job not found")
	// ErrTokenMismatch is returned when a status poll presents the wrong token.
	ErrTokenMismatch = errors.New("job token mismatch")
	// ErrInvalidInput marks submissions that cannot be scored at all.
	ErrInvalidInput = errors.New("invalid input")
	// ErrClaimLost is returned when a job was reclaimed before its worker finished.
	ErrClaimLost = errors.New("job claim lost")
)

// Job is the persisted unit of work shared by all workers.
type Job struct {
	ID           string          `json:"id"`
	Status       JobStatus       `json:"status"`
	DedupKey     string          `json:"dedupKey"`
	Token        string          `json:"token,omitempty"`
	Input        Input           `json:"input"`
	Attempts     int             `json:"attempts"`
	MaxAttempts  int             `json:"maxAttempts"`
	ClaimID      string          `json:"-"`
	ClaimedAt    *time.Time      `json:"claimedAt,omitempty"`
	FinalScore   *float64        `json:"finalScore"`
	Result       json.RawMessage `json:"resultPayload"`
	ErrorCode    string          `json:"errorCode,omitempty"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// CanRetry reports whether a failed attempt may be requeued.
func (j Job) CanRetry() bool {
	return j.Attempts < j.MaxAttempts
}

// Submission is the outcome of enqueueing an input.
type Submission struct {
	Job     Job  `json:"job"`
	Created bool `json:"created"`
	Reset   bool `json:"reset"`
}

// JobStatusView is the status-check response for a caller holding the job token.
type JobStatusView struct {
	ID           string    `json:"id"`
	Status       JobStatus `json:"status"`
	Attempts     int       `json:"attempts"`
	FinalScore   *float64  `json:"finalScore"`
	Result       *Result   `json:"resultPayload,omitempty"`
	ErrorCode    string    `json:"errorCode,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// CodedError carries a stable job error code alongside its cause.
type CodedError interface {
	error
	Code() string
}

// ErrorCode maps a processing failure to the code stored on the job record.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var coded CodedError
	if errors.As(err, &coded) {
		return coded.Code()
	}
	if errors.Is(err, ErrInvalidInput) {
		return CodeInvalidInput
	}
	return CodeInternal
}

// Retryable reports whether a failure should consume a job attempt and requeue.
// Validation and input failures are permanent.
func Retryable(err error) bool {
	switch ErrorCode(err) {
	case CodeReportInvalid, CodeInvalidInput:
		return false
	}
	return true
}
