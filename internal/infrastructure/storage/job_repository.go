package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"ClaimScanner/internal/domain"
	"ClaimScanner/internal/ports"
)

const jobColumns = "id, status, dedup_key, token, input, attempts, max_attempts, claim_id, claimed_at, " +
	"final_score, result, error_code, error_message, created_at, updated_at"

// JobRepository persists jobs in Postgres or SQLite. Every status transition goes
// through a conditional UPDATE so concurrent workers never share a job.
type JobRepository struct {
	db          *sql.DB
	dialect     Dialect
	sb          sq.StatementBuilderType
	staleAfter  time.Duration
	maxAttempts int
	now         func() time.Time
}

var _ ports.JobRepository = (*JobRepository)(nil)

// NewJobRepository wires a sql.DB. staleAfter is the window after which a running
// job may be reclaimed; maxAttempts bounds processing attempts of new jobs.
func NewJobRepository(db *sql.DB, dialect Dialect, staleAfter time.Duration, maxAttempts int) *JobRepository {
	var placeholder sq.PlaceholderFormat = sq.Question
	if dialect == DialectPostgres {
		placeholder = sq.Dollar
	}
	if maxAttempts <= 0 {
		maxAttempts = domain.DefaultMaxAttempts
	}
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	return &JobRepository{
		db:          db,
		dialect:     dialect,
		sb:          sq.StatementBuilder.PlaceholderFormat(placeholder),
		staleAfter:  staleAfter,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Submit inserts a queued job unless a live job with the same dedup key exists.
// A failed live job is reset to queued with exactly one attempt left. With
// forceRefresh the live job is superseded and a new row is always created.
func (r *JobRepository) Submit(ctx context.Context, in domain.Input, forceRefresh bool) (domain.Submission, error) {
	if err := in.Validate(); err != nil {
		return domain.Submission{}, err
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("marshal input: %w", err)
	}

	key := in.DedupKey()
	now := r.nowMillis()
	id, err := uuid.NewV7()
	if err != nil {
		return domain.Submission{}, fmt.Errorf("new job id: %w", err)
	}

	insert := r.sb.Insert("jobs").
		Columns("id", "status", "dedup_key", "token", "input", "attempts", "max_attempts", "created_at", "updated_at").
		Values(id.String(), string(domain.JobQueued), key, uuid.NewString(), string(payload), 0, r.maxAttempts, now, now).
		Suffix("ON CONFLICT (dedup_key) WHERE superseded_at IS NULL DO NOTHING RETURNING id")

	if forceRefresh {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return domain.Submission{}, fmt.Errorf("begin submit: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		supersede := r.sb.Update("jobs").
			Set("superseded_at", now).
			Set("updated_at", now).
			Where(sq.Eq{"dedup_key": key}).
			Where("superseded_at IS NULL")
		if err := r.exec(ctx, tx, supersede); err != nil {
			return domain.Submission{}, fmt.Errorf("supersede live job: %w", err)
		}
		// Superseded queued jobs are never claimed again; close them for their token holders.
		closeQueued := r.supersededFailure(now).
			Where(sq.Eq{"dedup_key": key, "status": string(domain.JobQueued)})
		if err := r.exec(ctx, tx, closeQueued); err != nil {
			return domain.Submission{}, fmt.Errorf("close superseded job: %w", err)
		}

		created, err := r.insert(ctx, tx, insert)
		if err != nil {
			return domain.Submission{}, err
		}
		if err := tx.Commit(); err != nil {
			return domain.Submission{}, fmt.Errorf("commit submit: %w", err)
		}
		if created {
			job, err := r.Get(ctx, id.String())
			return domain.Submission{Job: job, Created: true}, err
		}
		// A concurrent refresh won the insert; resolve to its row below.
	} else {
		created, err := r.insert(ctx, r.db, insert)
		if err != nil {
			return domain.Submission{}, err
		}
		if created {
			job, err := r.Get(ctx, id.String())
			return domain.Submission{Job: job, Created: true}, err
		}
	}

	existing, err := r.liveByKey(ctx, key)
	if err != nil {
		return domain.Submission{}, err
	}
	if existing.Status != domain.JobFailed {
		return domain.Submission{Job: existing}, nil
	}

	reset := r.sb.Update("jobs").
		Set("status", string(domain.JobQueued)).
		Set("attempts", sq.Expr("max_attempts - 1")).
		Set("claim_id", nil).
		Set("claimed_at", nil).
		Set("error_code", nil).
		Set("error_message", nil).
		Set("updated_at", now).
		Where(sq.Eq{"id": existing.ID, "status": string(domain.JobFailed)})
	res, err := r.execResult(ctx, r.db, reset)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("reset failed job: %w", err)
	}
	n, _ := res.RowsAffected()

	job, err := r.Get(ctx, existing.ID)
	return domain.Submission{Job: job, Reset: n > 0}, err
}

func (r *JobRepository) insert(ctx context.Context, q queryRower, insert sq.InsertBuilder) (bool, error) {
	query, args, err := insert.ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert: %w", err)
	}
	var returned string
	err = q.QueryRowContext(ctx, query, args...).Scan(&returned)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert job: %w", err)
	}
	return true, nil
}

// Get loads a job by id.
func (r *JobRepository) Get(ctx context.Context, id string) (domain.Job, error) {
	query, args, err := r.sb.Select(jobColumns).From("jobs").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Job{}, fmt.Errorf("build select: %w", err)
	}
	job, err := scanJob(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Job{}, domain.ErrJobNotFound
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("load job %s: %w", id, err)
	}
	return job, nil
}

func (r *JobRepository) liveByKey(ctx context.Context, key string) (domain.Job, error) {
	query, args, err := r.sb.Select(jobColumns).From("jobs").
		Where(sq.Eq{"dedup_key": key}).
		Where("superseded_at IS NULL").
		ToSql()
	if err != nil {
		return domain.Job{}, fmt.Errorf("build select: %w", err)
	}
	job, err := scanJob(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Job{}, fmt.Errorf("live job for key %s vanished: %w", key, domain.ErrJobNotFound)
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("load live job: %w", err)
	}
	return job, nil
}

// ClaimNext claims the oldest claimable job inside one transaction: queued jobs
// with attempts left, or running jobs whose claim is older than the staleness
// window. Stale running jobs without attempts left are failed first.
func (r *JobRepository) ClaimNext(ctx context.Context) (domain.Job, bool, error) {
	now := r.nowMillis()
	cutoff := now - r.staleAfter.Milliseconds()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Job{}, false, fmt.Errorf("begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// A superseded running job is finished by its worker or, once stale, failed here.
	abandoned := r.supersededFailure(now).
		Where(sq.Eq{"status": string(domain.JobRunning)}).
		Where(sq.Lt{"claimed_at": cutoff})
	if err := r.exec(ctx, tx, abandoned); err != nil {
		return domain.Job{}, false, fmt.Errorf("sweep superseded jobs: %w", err)
	}

	sweep := r.sb.Update("jobs").
		Set("status", string(domain.JobFailed)).
		Set("claim_id", nil).
		Set("error_code", domain.CodeStaleClaimExhausted).
		Set("error_message", "job stayed running past the staleness window with no attempts left").
		Set("updated_at", now).
		Where("superseded_at IS NULL").
		Where(sq.Eq{"status": string(domain.JobRunning)}).
		Where(sq.Lt{"claimed_at": cutoff}).
		Where("attempts >= max_attempts")
	if err := r.exec(ctx, tx, sweep); err != nil {
		return domain.Job{}, false, fmt.Errorf("sweep exhausted jobs: %w", err)
	}

	next := sq.Select("id").From("jobs").
		Where("superseded_at IS NULL").
		Where("attempts < max_attempts").
		Where(sq.Or{
			sq.Eq{"status": string(domain.JobQueued)},
			sq.And{sq.Eq{"status": string(domain.JobRunning)}, sq.Lt{"claimed_at": cutoff}},
		}).
		OrderBy("created_at", "id").
		Limit(1)
	if r.dialect == DialectPostgres {
		next = next.Suffix("FOR UPDATE SKIP LOCKED")
	}
	nextSQL, nextArgs, err := next.ToSql()
	if err != nil {
		return domain.Job{}, false, fmt.Errorf("build claim subquery: %w", err)
	}

	claim := r.sb.Update("jobs").
		Set("status", string(domain.JobRunning)).
		Set("claim_id", uuid.NewString()).
		Set("claimed_at", now).
		Set("attempts", sq.Expr("attempts + 1")).
		Set("updated_at", now).
		Where(sq.Expr("id = ("+nextSQL+")", nextArgs...)).
		Suffix("RETURNING " + jobColumns)
	query, args, err := claim.ToSql()
	if err != nil {
		return domain.Job{}, false, fmt.Errorf("build claim: %w", err)
	}

	job, err := scanJob(tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		if err := tx.Commit(); err != nil {
			return domain.Job{}, false, fmt.Errorf("commit sweep: %w", err)
		}
		return domain.Job{}, false, nil
	}
	if err != nil {
		return domain.Job{}, false, fmt.Errorf("claim job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Job{}, false, fmt.Errorf("commit claim: %w", err)
	}
	return job, true, nil
}

func (r *JobRepository) supersededFailure(now int64) sq.UpdateBuilder {
	return r.sb.Update("jobs").
		Set("status", string(domain.JobFailed)).
		Set("claim_id", nil).
		Set("error_code", domain.CodeSuperseded).
		Set("error_message", "job was replaced by a forced refresh of the same input").
		Set("updated_at", now).
		Where("superseded_at IS NOT NULL")
}

// Complete stores the result of a claimed job.
func (r *JobRepository) Complete(ctx context.Context, job domain.Job, score *float64, result []byte) error {
	var payload any
	if result != nil {
		payload = string(result)
	}
	var final any
	if score != nil {
		final = *score
	}
	update := r.sb.Update("jobs").
		Set("status", string(domain.JobDone)).
		Set("final_score", final).
		Set("result", payload).
		Set("error_code", nil).
		Set("error_message", nil).
		Set("updated_at", r.nowMillis())
	return r.finish(ctx, job, update)
}

// Requeue returns a claimed job to the queue, keeping the last error for visibility.
func (r *JobRepository) Requeue(ctx context.Context, job domain.Job, code, message string) error {
	update := r.sb.Update("jobs").
		Set("status", string(domain.JobQueued)).
		Set("claim_id", nil).
		Set("claimed_at", nil).
		Set("error_code", code).
		Set("error_message", message).
		Set("updated_at", r.nowMillis())
	return r.finish(ctx, job, update)
}

// Fail marks a claimed job permanently failed.
func (r *JobRepository) Fail(ctx context.Context, job domain.Job, code, message string) error {
	update := r.sb.Update("jobs").
		Set("status", string(domain.JobFailed)).
		Set("claim_id", nil).
		Set("error_code", code).
		Set("error_message", message).
		Set("updated_at", r.nowMillis())
	return r.finish(ctx, job, update)
}

// finish applies a terminal or requeue update only while the caller still owns the claim.
func (r *JobRepository) finish(ctx context.Context, job domain.Job, update sq.UpdateBuilder) error {
	update = update.Where(sq.Eq{"id": job.ID, "claim_id": job.ClaimID, "status": string(domain.JobRunning)})
	res, err := r.execResult(ctx, r.db, update)
	if err != nil {
		return fmt.Errorf("update job %s: %w", job.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("job %s: %w", job.ID, domain.ErrClaimLost)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *JobRepository) exec(ctx context.Context, e execer, b sq.Sqlizer) error {
	_, err := r.execResult(ctx, e, b)
	return err
}

func (r *JobRepository) execResult(ctx context.Context, e execer, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build statement: %w", err)
	}
	return e.ExecContext(ctx, query, args...)
}

func (r *JobRepository) nowMillis() int64 {
	return r.now().UnixMilli()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (domain.Job, error) {
	var (
		job          domain.Job
		status       string
		input        string
		claimID      sql.NullString
		claimedAt    sql.NullInt64
		finalScore   sql.NullFloat64
		result       sql.NullString
		errorCode    sql.NullString
		errorMessage sql.NullString
		createdAt    int64
		updatedAt    int64
	)
	err := row.Scan(&job.ID, &status, &job.DedupKey, &job.Token, &input, &job.Attempts, &job.MaxAttempts,
		&claimID, &claimedAt, &finalScore, &result, &errorCode, &errorMessage, &createdAt, &updatedAt)
	if err != nil {
		return domain.Job{}, err
	}

	if err := json.Unmarshal([]byte(input), &job.Input); err != nil {
		return domain.Job{}, fmt.Errorf("decode input of job %s: %w", job.ID, err)
	}
	job.Status = domain.JobStatus(status)
	job.ClaimID = claimID.String
	if claimedAt.Valid {
		t := time.UnixMilli(claimedAt.Int64).UTC()
		job.ClaimedAt = &t
	}
	if finalScore.Valid {
		v := finalScore.Float64
		job.FinalScore = &v
	}
	if result.Valid {
		job.Result = json.RawMessage(result.String)
	}
	job.ErrorCode = errorCode.String
	job.ErrorMessage = errorMessage.String
	job.CreatedAt = time.UnixMilli(createdAt).UTC()
	job.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return job, nil
}
