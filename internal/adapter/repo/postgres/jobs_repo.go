package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// JobRepo persists and loads processing jobs from PostgreSQL using a
// minimal pgx pool.
type JobRepo struct{ Pool PgxPool }

// NewJobRepo constructs a JobRepo with the given pool.
func NewJobRepo(p PgxPool) *JobRepo { return &JobRepo{Pool: p} }

// CreateWithCandidate inserts the job and its placeholder candidate row in
// one transaction and returns both ids. First versions are born latest;
// re-analysis versions stay non-latest until Finalize promotes them.
func (r *JobRepo) CreateWithCandidate(ctx domain.Context, j domain.ProcessingJob, c domain.Candidate) (string, string, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.CreateWithCandidate")
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.sql.table", "processing_jobs"),
	)

	jobID := j.ID
	if jobID == "" {
		jobID = uuid.New().String()
	}
	candID := c.ID
	if candID == "" {
		candID = uuid.New().String()
	}
	rootID := c.RootID
	isLatest := true
	if c.ParentID != nil {
		isLatest = false
	} else if rootID == "" {
		rootID = candID
	}
	version := c.Version
	if version == 0 {
		version = 1
	}
	status := j.Status
	if status == "" {
		status = domain.JobQueued
	}

	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", "", fmt.Errorf("op=job.create: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `INSERT INTO candidates (id, tenant_id, root_id, parent_id, version, is_latest, status, name, created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		candID, j.TenantID, rootID, c.ParentID, version, isLatest, domain.CandidateProcessing, c.Name, now, now)
	if err != nil {
		return "", "", fmt.Errorf("op=job.create: candidate: %w", err)
	}

	_, err = tx.Exec(ctx, `INSERT INTO processing_jobs (id, tenant_id, candidate_id, status, attempt_count, idempotency_key, file_name, file_type, file_size, file_path, analysis_mode, created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		jobID, j.TenantID, candID, status, j.AttemptCount, j.IdempotencyKey,
		j.FileName, j.FileType, j.FileSize, j.FilePath, j.AnalysisMode, now, now)
	if err != nil {
		return "", "", fmt.Errorf("op=job.create: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", "", fmt.Errorf("op=job.create: commit: %w", err)
	}
	return jobID, candID, nil
}

// Create inserts a job row bound to an existing candidate. The retry
// path uses this to start a fresh attempt family on the same candidate.
func (r *JobRepo) Create(ctx domain.Context, j domain.ProcessingJob) (string, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Create")
	defer span.End()

	jobID := j.ID
	if jobID == "" {
		jobID = uuid.New().String()
	}
	status := j.Status
	if status == "" {
		status = domain.JobQueued
	}
	now := time.Now().UTC()
	_, err := r.Pool.Exec(ctx, `INSERT INTO processing_jobs (id, tenant_id, candidate_id, status, attempt_count, idempotency_key, file_name, file_type, file_size, file_path, analysis_mode, created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		jobID, j.TenantID, j.CandidateID, status, j.AttemptCount, j.IdempotencyKey,
		j.FileName, j.FileType, j.FileSize, j.FilePath, j.AnalysisMode, now, now)
	if err != nil {
		return "", fmt.Errorf("op=job.create_row: %w", err)
	}
	return jobID, nil
}

const jobColumns = `id, tenant_id, candidate_id, status, error_code, error_message, attempt_count, idempotency_key, file_name, file_type, file_size, file_path, analysis_mode, created_at, updated_at`

func scanJob(row pgx.Row) (domain.ProcessingJob, error) {
	var j domain.ProcessingJob
	err := row.Scan(&j.ID, &j.TenantID, &j.CandidateID, &j.Status, &j.ErrorCode, &j.ErrorMessage,
		&j.AttemptCount, &j.IdempotencyKey, &j.FileName, &j.FileType, &j.FileSize, &j.FilePath,
		&j.AnalysisMode, &j.CreatedAt, &j.UpdatedAt)
	return j, err
}

// Get loads a job by id within the tenant boundary.
func (r *JobRepo) Get(ctx domain.Context, tenantID, id string) (domain.ProcessingJob, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.Get")
	defer span.End()
	q := `SELECT ` + jobColumns + ` FROM processing_jobs WHERE tenant_id=$1 AND id=$2`
	j, err := scanJob(r.Pool.QueryRow(ctx, q, tenantID, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ProcessingJob{}, fmt.Errorf("op=job.get: %w", domain.ErrNotFound)
		}
		return domain.ProcessingJob{}, fmt.Errorf("op=job.get: %w", err)
	}
	return j, nil
}

// GetAny loads a job by id without a tenant guard. Worker-side only; the
// queue payload's tenant id is re-checked against the returned row.
func (r *JobRepo) GetAny(ctx domain.Context, id string) (domain.ProcessingJob, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.GetAny")
	defer span.End()
	q := `SELECT ` + jobColumns + ` FROM processing_jobs WHERE id=$1`
	j, err := scanJob(r.Pool.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ProcessingJob{}, fmt.Errorf("op=job.get_any: %w", domain.ErrNotFound)
		}
		return domain.ProcessingJob{}, fmt.Errorf("op=job.get_any: %w", err)
	}
	return j, nil
}

// UpdateStatus advances the job state machine. Rows already in a terminal
// state are never modified; such writes are dropped silently so replayed
// deliveries stay idempotent.
func (r *JobRepo) UpdateStatus(ctx domain.Context, id string, status domain.JobStatus, errCode, errMsg *string) error {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.UpdateStatus")
	defer span.End()
	q := `UPDATE processing_jobs SET status=$2, error_code=$3, error_message=$4, updated_at=$5
	WHERE id=$1 AND status NOT IN ('completed','failed')`
	tag, err := r.Pool.Exec(ctx, q, id, status, errCode, errMsg, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=job.update_status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either terminal (no-op) or missing.
		var existing domain.JobStatus
		err := r.Pool.QueryRow(ctx, `SELECT status FROM processing_jobs WHERE id=$1`, id).Scan(&existing)
		if err != nil {
			if err == pgx.ErrNoRows {
				return fmt.Errorf("op=job.update_status: %w", domain.ErrNotFound)
			}
			return fmt.Errorf("op=job.update_status: %w", err)
		}
	}
	return nil
}

// IncrementAttempt bumps attempt_count and returns the new value.
func (r *JobRepo) IncrementAttempt(ctx domain.Context, id string) (int, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.IncrementAttempt")
	defer span.End()
	q := `UPDATE processing_jobs SET attempt_count = attempt_count + 1, updated_at=$2 WHERE id=$1 RETURNING attempt_count`
	var n int
	if err := r.Pool.QueryRow(ctx, q, id, time.Now().UTC()).Scan(&n); err != nil {
		if err == pgx.ErrNoRows {
			return 0, fmt.Errorf("op=job.increment_attempt: %w", domain.ErrNotFound)
		}
		return 0, fmt.Errorf("op=job.increment_attempt: %w", err)
	}
	return n, nil
}

// FindByIdempotencyKey loads a job by its tenant-scoped idempotency key.
func (r *JobRepo) FindByIdempotencyKey(ctx domain.Context, tenantID, key string) (domain.ProcessingJob, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.FindByIdempotencyKey")
	defer span.End()
	q := `SELECT ` + jobColumns + ` FROM processing_jobs WHERE tenant_id=$1 AND idempotency_key=$2 LIMIT 1`
	j, err := scanJob(r.Pool.QueryRow(ctx, q, tenantID, key))
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ProcessingJob{}, fmt.Errorf("op=job.find_idem: %w", domain.ErrNotFound)
		}
		return domain.ProcessingJob{}, fmt.Errorf("op=job.find_idem: %w", err)
	}
	return j, nil
}

// ListStale returns non-terminal jobs whose updated_at is older than the
// cutoff, oldest first. The stuck-job sweeper fails these.
func (r *JobRepo) ListStale(ctx domain.Context, cutoff time.Time, limit int) ([]domain.ProcessingJob, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.ListStale")
	defer span.End()
	q := `SELECT ` + jobColumns + ` FROM processing_jobs
	WHERE status NOT IN ('completed','failed') AND updated_at < $1
	ORDER BY updated_at ASC LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("op=job.list_stale: %w", err)
	}
	defer rows.Close()
	var jobs []domain.ProcessingJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("op=job.list_stale_scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=job.list_stale_rows: %w", err)
	}
	return jobs, nil
}

// ListByErrorCode returns failed jobs with the given error code, newest
// first. Operators use it to audit dead-lettered jobs.
func (r *JobRepo) ListByErrorCode(ctx domain.Context, code string, limit int) ([]domain.ProcessingJob, error) {
	tracer := otel.Tracer("repo.jobs")
	ctx, span := tracer.Start(ctx, "jobs.ListByErrorCode")
	defer span.End()
	q := `SELECT ` + jobColumns + ` FROM processing_jobs
	WHERE status = 'failed' AND error_code = $1
	ORDER BY updated_at DESC LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, code, limit)
	if err != nil {
		return nil, fmt.Errorf("op=job.list_by_error_code: %w", err)
	}
	defer rows.Close()
	var jobs []domain.ProcessingJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("op=job.list_by_error_code_scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=job.list_by_error_code_rows: %w", err)
	}
	return jobs, nil
}
