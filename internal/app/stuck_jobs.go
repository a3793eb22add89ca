package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// StuckJobSweeper periodically fails jobs whose status stopped moving.
// A worker crash between stages leaves the row in an in-flight status
// forever; the sweeper turns that into a terminal failure so the tenant
// sees PIPELINE_TIMEOUT instead of a permanently queued poll.
type StuckJobSweeper struct {
	jobs       domain.JobRepository
	webhooks   domain.WebhookEmitter
	staleAfter time.Duration
	interval   time.Duration
}

// NewStuckJobSweeper builds a sweeper; zero durations take defaults and
// webhooks may be nil.
func NewStuckJobSweeper(jobs domain.JobRepository, webhooks domain.WebhookEmitter, staleAfter, interval time.Duration) *StuckJobSweeper {
	if jobs == nil {
		return nil
	}
	if staleAfter <= 0 {
		staleAfter = 15 * time.Minute
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &StuckJobSweeper{jobs: jobs, webhooks: webhooks, staleAfter: staleAfter, interval: interval}
}

// Run sweeps on the configured interval until ctx is canceled.
func (s *StuckJobSweeper) Run(ctx context.Context) {
	if s == nil || s.jobs == nil {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.Info("stuck job sweeper stopping")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce fails every job stale past the cutoff and returns how many
// rows it settled.
func (s *StuckJobSweeper) SweepOnce(ctx context.Context) int {
	tracer := otel.Tracer("jobs.sweeper")
	ctx, span := tracer.Start(ctx, "StuckJobSweeper.SweepOnce")
	defer span.End()

	const pageSize = 100
	cutoff := time.Now().Add(-s.staleAfter)
	span.SetAttributes(
		attribute.Float64("jobs.stale_after_seconds", s.staleAfter.Seconds()),
	)

	settled := 0
	for {
		jobs, err := s.jobs.ListStale(ctx, cutoff, pageSize)
		if err != nil {
			span.RecordError(err)
			slog.Error("stuck job sweep failed to list jobs", slog.Any("error", err))
			return settled
		}
		if len(jobs) == 0 {
			break
		}
		settledThisPage := 0
		for _, j := range jobs {
			code := "PIPELINE_TIMEOUT"
			msg := fmt.Sprintf("no progress for over %v; failed by sweeper", s.staleAfter)
			if err := s.jobs.UpdateStatus(ctx, j.ID, domain.JobFailed, &code, &msg); err != nil {
				span.RecordError(err)
				slog.Error("stuck job sweep failed to update job",
					slog.String("job_id", j.ID), slog.Any("error", err))
				continue
			}
			settled++
			settledThisPage++
			if s.webhooks != nil {
				event := domain.WebhookEvent{
					JobID:    j.ID,
					TenantID: j.TenantID,
					Status:   domain.WebhookFailed,
					Error:    msg,
					Result:   &domain.WebhookResult{CandidateID: j.CandidateID},
				}
				if err := s.webhooks.Emit(ctx, event); err != nil {
					slog.Warn("stale job webhook failed",
						slog.String("job_id", j.ID), slog.Any("error", err))
				}
			}
			slog.Warn("stale job settled as failed",
				slog.String("job_id", j.ID),
				slog.String("tenant_id", j.TenantID),
				slog.String("last_status", string(j.Status)))
		}
		// A page where nothing settled would repeat forever.
		if settledThisPage == 0 || len(jobs) < pageSize {
			break
		}
	}
	span.SetAttributes(attribute.Int("jobs.settled", settled))
	return settled
}
