package usecase

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"ClaimScanner/internal/domain"
)

const validReport = `CLAIMRISK REPORT v1
### SUMMARY
A face serum marketed with broad anti-aging claims.
### EVIDENCE
- No clinical trial is cited.
- Testimonials are the only support offered.
- The ingredient list is incomplete.
- Before and after photos are unverified.
- The formula is described as a proprietary blend.
### SUBSCORES
evidence_strength: 7.5
verifiability: 7
transparency: 6.5
harm_potential: 3
### KEY CLAIMS
- Erases wrinkles in seven days
- Works for every skin type
- Recommended by dermatologists
### RED FLAGS
- Unverified before and after photos
- Proprietary blend hides concentrations
- Limited time pricing pressure
### CITATIONS
none`

const reportWithoutRedFlags = `CLAIMRISK REPORT v1
### SUMMARY
Summary.
### EVIDENCE
- one
- two
- three
- four
- five
### SUBSCORES
evidence_strength: 5
verifiability: 5
transparency: 5
harm_potential: 5
### KEY CLAIMS
- a
- b
- c
### CITATIONS
none`

type fakeProvider struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   [][]domain.ChatMessage
}

func (f *fakeProvider) Complete(_ context.Context, messages []domain.ChatMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

type fakeFetcher struct {
	text string
	err  error
}

func (f fakeFetcher) FetchText(context.Context, string) (string, error) {
	return f.text, f.err
}

type codedErr struct {
	code string
}

func (e codedErr) Error() string { return "coded failure " + e.code }
func (e codedErr) Code() string  { return e.code }

type fakeAnalyzer struct {
	result domain.Result
	err    error
}

func (f fakeAnalyzer) Analyze(context.Context, domain.Input) (domain.Result, error) {
	return f.result, f.err
}

type fakeNotifier struct {
	mu     sync.Mutex
	failed []domain.Job
}

func (n *fakeNotifier) JobFailed(_ context.Context, job domain.Job) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, job)
	return nil
}

// memRepository is an in-memory queue honoring claim ownership.
type memRepository struct {
	mu    sync.Mutex
	order []string
	jobs  map[string]*domain.Job
	seq   int
}

func newMemRepository() *memRepository {
	return &memRepository{jobs: map[string]*domain.Job{}}
}

func (r *memRepository) add(job domain.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job.MaxAttempts == 0 {
		job.MaxAttempts = domain.DefaultMaxAttempts
	}
	if job.Status == "" {
		job.Status = domain.JobQueued
	}
	r.jobs[job.ID] = &job
	r.order = append(r.order, job.ID)
}

func (r *memRepository) Submit(_ context.Context, in domain.Input, _ bool) (domain.Submission, error) {
	if err := in.Validate(); err != nil {
		return domain.Submission{}, err
	}
	r.mu.Lock()
	for _, id := range r.order {
		if j := r.jobs[id]; j.DedupKey == in.DedupKey() {
			r.mu.Unlock()
			return domain.Submission{Job: *j}, nil
		}
	}
	r.seq++
	id := "job-" + strconv.Itoa(r.seq)
	r.mu.Unlock()

	r.add(domain.Job{ID: id, Token: "tok-" + id, DedupKey: in.DedupKey(), Input: in})
	job, _ := r.Get(context.Background(), id)
	return domain.Submission{Job: job, Created: true}, nil
}

func (r *memRepository) Get(_ context.Context, id string) (domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return domain.Job{}, domain.ErrJobNotFound
	}
	return *j, nil
}

func (r *memRepository) ClaimNext(context.Context) (domain.Job, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		j := r.jobs[id]
		if j.Status == domain.JobQueued && j.Attempts < j.MaxAttempts {
			j.Status = domain.JobRunning
			j.Attempts++
			j.ClaimID = id + "-claim"
			return *j, true, nil
		}
	}
	return domain.Job{}, false, nil
}

func (r *memRepository) finish(job domain.Job, apply func(*domain.Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[job.ID]
	if !ok || j.Status != domain.JobRunning || j.ClaimID != job.ClaimID {
		return domain.ErrClaimLost
	}
	apply(j)
	return nil
}

func (r *memRepository) Complete(_ context.Context, job domain.Job, score *float64, result []byte) error {
	return r.finish(job, func(j *domain.Job) {
		j.Status = domain.JobDone
		j.FinalScore = score
		j.Result = result
	})
}

func (r *memRepository) Requeue(_ context.Context, job domain.Job, code, message string) error {
	return r.finish(job, func(j *domain.Job) {
		j.Status = domain.JobQueued
		j.ClaimID = ""
		j.ErrorCode, j.ErrorMessage = code, message
	})
}

func (r *memRepository) Fail(_ context.Context, job domain.Job, code, message string) error {
	return r.finish(job, func(j *domain.Job) {
		j.Status = domain.JobFailed
		j.ClaimID = ""
		j.ErrorCode, j.ErrorMessage = code, message
	})
}
