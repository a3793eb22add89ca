package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Tx is the transaction subset the cleanup service needs.
type Tx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Beginner starts transactions; satisfied by an adapted pgx pool.
type Beginner interface {
	Begin(ctx context.Context) (Tx, error)
}

type poolBeginner struct{ pool *pgxpool.Pool }

func (b poolBeginner) Begin(ctx context.Context) (Tx, error) {
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// NewPoolBeginner adapts a pgx pool to the Beginner interface.
func NewPoolBeginner(pool *pgxpool.Pool) Beginner { return poolBeginner{pool: pool} }

// CleanupService handles data retention and cleanup
type CleanupService struct {
	DB            Beginner
	RetentionDays int
}

// NewCleanupService creates a new cleanup service
func NewCleanupService(db Beginner, retentionDays int) *CleanupService {
	if retentionDays <= 0 {
		retentionDays = 90 // default 90 days
	}
	return &CleanupService{DB: db, RetentionDays: retentionDays}
}

// CleanupOldData removes rows past the retention window: delivered or
// abandoned webhook failures, sent notifications, terminal jobs, and
// non-latest failed candidate versions no job references anymore.
func (s *CleanupService) CleanupOldData(ctx context.Context) error {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.RetentionDays)

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("cleanup begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `DELETE FROM webhook_failures WHERE updated_at < $1 AND status <> 'pending'`, cutoff)
	if err != nil {
		return fmt.Errorf("cleanup webhook_failures: %w", err)
	}
	deletedWebhooks := tag.RowsAffected()

	tag, err = tx.Exec(ctx, `DELETE FROM email_notifications WHERE created_at < $1 AND status <> 'pending'`, cutoff)
	if err != nil {
		return fmt.Errorf("cleanup email_notifications: %w", err)
	}
	deletedEmails := tag.RowsAffected()

	tag, err = tx.Exec(ctx, `DELETE FROM processing_jobs WHERE created_at < $1 AND status IN ('completed','failed')`, cutoff)
	if err != nil {
		return fmt.Errorf("cleanup jobs: %w", err)
	}
	deletedJobs := tag.RowsAffected()

	// Failed superseded candidate versions with no surviving job.
	tag, err = tx.Exec(ctx, `DELETE FROM candidates
	WHERE created_at < $1 AND status = 'failed' AND NOT is_latest
	AND id NOT IN (SELECT candidate_id FROM processing_jobs)`, cutoff)
	if err != nil {
		return fmt.Errorf("cleanup candidates: %w", err)
	}
	deletedCandidates := tag.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("cleanup commit: %w", err)
	}

	slog.Info("data cleanup completed",
		slog.Int64("deleted_jobs", deletedJobs),
		slog.Int64("deleted_candidates", deletedCandidates),
		slog.Int64("deleted_webhook_failures", deletedWebhooks),
		slog.Int64("deleted_email_notifications", deletedEmails),
		slog.Time("cutoff", cutoff),
	)

	return nil
}

// RunPeriodic starts a periodic cleanup job
func (s *CleanupService) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour // daily by default
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run initial cleanup
	if err := s.CleanupOldData(ctx); err != nil {
		slog.Error("initial cleanup failed", slog.Any("error", err))
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup service stopping")
			return
		case <-ticker.C:
			if err := s.CleanupOldData(ctx); err != nil {
				slog.Error("periodic cleanup failed", slog.Any("error", err))
			}
		}
	}
}
