package postgres

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// EmailNotificationRepo queues outbound notification rows; an external
// mailer drains them.
type EmailNotificationRepo struct{ Pool PgxPool }

// NewEmailNotificationRepo constructs an EmailNotificationRepo.
func NewEmailNotificationRepo(p PgxPool) *EmailNotificationRepo {
	return &EmailNotificationRepo{Pool: p}
}

// Enqueue inserts a pending notification and returns its id.
func (r *EmailNotificationRepo) Enqueue(ctx domain.Context, n domain.EmailNotification) (string, error) {
	tracer := otel.Tracer("repo.email_notifications")
	ctx, span := tracer.Start(ctx, "email_notifications.Enqueue")
	defer span.End()
	id := n.ID
	if id == "" {
		id = uuid.New().String()
	}
	status := n.Status
	if status == "" {
		status = domain.EmailStatusPending
	}
	q := `INSERT INTO email_notifications (id, tenant_id, job_id, candidate_id, kind, recipient, subject, body, status, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`
	_, err := r.Pool.Exec(ctx, q, id, n.TenantID, nullIfEmpty(n.JobID), nullIfEmpty(n.CandidateID),
		n.Kind, n.Recipient, n.Subject, n.Body, status, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("op=email_notification.enqueue: %w", err)
	}
	return id, nil
}
