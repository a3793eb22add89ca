package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// WebhookFailureRepo is the dead-letter store for webhooks that exhausted
// their immediate retries. A background sweeper replays due rows.
type WebhookFailureRepo struct{ Pool PgxPool }

// NewWebhookFailureRepo constructs a WebhookFailureRepo with the given pool.
func NewWebhookFailureRepo(p PgxPool) *WebhookFailureRepo { return &WebhookFailureRepo{Pool: p} }

// Record stores an undeliverable webhook payload and returns the row id.
func (r *WebhookFailureRepo) Record(ctx domain.Context, f domain.WebhookFailure) (string, error) {
	tracer := otel.Tracer("repo.webhook_failures")
	ctx, span := tracer.Start(ctx, "webhook_failures.Record")
	defer span.End()
	id := f.ID
	if id == "" {
		id = uuid.New().String()
	}
	status := f.Status
	if status == "" {
		status = domain.WebhookFailurePending
	}
	now := time.Now().UTC()
	q := `INSERT INTO webhook_failures (id, job_id, payload, status, error, retry_count, next_retry_at, created_at, updated_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.Pool.Exec(ctx, q, id, f.JobID, f.Payload, status, f.Error, f.RetryCount, f.NextRetryAt, now, now)
	if err != nil {
		return "", fmt.Errorf("op=webhook_failure.record: %w", err)
	}
	return id, nil
}

const webhookFailureColumns = `id, job_id, payload, status, error, retry_count, next_retry_at, created_at, updated_at`

func scanWebhookFailure(row pgx.Row) (domain.WebhookFailure, error) {
	var f domain.WebhookFailure
	err := row.Scan(&f.ID, &f.JobID, &f.Payload, &f.Status, &f.Error, &f.RetryCount, &f.NextRetryAt, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

// ListDue returns pending failures whose next retry time has passed,
// oldest first.
func (r *WebhookFailureRepo) ListDue(ctx domain.Context, now time.Time, limit int) ([]domain.WebhookFailure, error) {
	tracer := otel.Tracer("repo.webhook_failures")
	ctx, span := tracer.Start(ctx, "webhook_failures.ListDue")
	defer span.End()
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT ` + webhookFailureColumns + ` FROM webhook_failures
	WHERE status='pending' AND next_retry_at <= $1 ORDER BY next_retry_at ASC LIMIT $2`
	rows, err := r.Pool.Query(ctx, q, now, limit)
	if err != nil {
		return nil, fmt.Errorf("op=webhook_failure.list_due: %w", err)
	}
	defer rows.Close()
	var out []domain.WebhookFailure
	for rows.Next() {
		f, err := scanWebhookFailure(rows)
		if err != nil {
			return nil, fmt.Errorf("op=webhook_failure.list_due_scan: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=webhook_failure.list_due_rows: %w", err)
	}
	return out, nil
}

// MarkDelivered closes a failure row after a successful replay.
func (r *WebhookFailureRepo) MarkDelivered(ctx domain.Context, id string) error {
	tracer := otel.Tracer("repo.webhook_failures")
	ctx, span := tracer.Start(ctx, "webhook_failures.MarkDelivered")
	defer span.End()
	q := `UPDATE webhook_failures SET status=$2, updated_at=$3 WHERE id=$1`
	_, err := r.Pool.Exec(ctx, q, id, domain.WebhookFailureDelivered, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=webhook_failure.mark_delivered: %w", err)
	}
	return nil
}

// Bump records another failed replay and schedules the next attempt.
func (r *WebhookFailureRepo) Bump(ctx domain.Context, id string, errMsg string, nextRetryAt time.Time) error {
	tracer := otel.Tracer("repo.webhook_failures")
	ctx, span := tracer.Start(ctx, "webhook_failures.Bump")
	defer span.End()
	q := `UPDATE webhook_failures SET retry_count = retry_count + 1, error=$2, next_retry_at=$3, updated_at=$4 WHERE id=$1`
	_, err := r.Pool.Exec(ctx, q, id, errMsg, nextRetryAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=webhook_failure.bump: %w", err)
	}
	return nil
}

// MarkAbandoned retires a row whose replay budget is spent.
func (r *WebhookFailureRepo) MarkAbandoned(ctx domain.Context, id string) error {
	tracer := otel.Tracer("repo.webhook_failures")
	ctx, span := tracer.Start(ctx, "webhook_failures.MarkAbandoned")
	defer span.End()
	q := `UPDATE webhook_failures SET status=$2, updated_at=$3 WHERE id=$1`
	_, err := r.Pool.Exec(ctx, q, id, domain.WebhookFailureAbandoned, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=webhook_failure.mark_abandoned: %w", err)
	}
	return nil
}

// ListPending returns open failure rows for the operator surface, newest
// first.
func (r *WebhookFailureRepo) ListPending(ctx domain.Context, limit int) ([]domain.WebhookFailure, error) {
	tracer := otel.Tracer("repo.webhook_failures")
	ctx, span := tracer.Start(ctx, "webhook_failures.ListPending")
	defer span.End()
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + webhookFailureColumns + ` FROM webhook_failures
	WHERE status='pending' ORDER BY created_at DESC LIMIT $1`
	rows, err := r.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("op=webhook_failure.list_pending: %w", err)
	}
	defer rows.Close()
	var out []domain.WebhookFailure
	for rows.Next() {
		f, err := scanWebhookFailure(rows)
		if err != nil {
			return nil, fmt.Errorf("op=webhook_failure.list_pending_scan: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=webhook_failure.list_pending_rows: %w", err)
	}
	return out, nil
}
