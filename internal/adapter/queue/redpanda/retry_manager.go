package redpanda

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/config"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// DLQRecord is the wire format of the dead letter topic. It carries the
// original payload so an operator can replay the job after fixing the
// underlying fault.
type DLQRecord struct {
	Payload  domain.ProcessTaskPayload `json:"payload"`
	Attempt  int                       `json:"attempt"`
	Reason   string                    `json:"reason"`
	FailedAt time.Time                 `json:"failed_at"`
}

// publisher is the producer surface the retry manager needs; *Producer
// implements it.
type publisher interface {
	Requeue(ctx domain.Context, payload domain.ProcessTaskPayload, attempt int) error
	EnqueueDLQ(ctx domain.Context, rec DLQRecord) error
}

// RetryManager redelivers nacked jobs with exponential backoff and
// dead-letters them once the delivery budget is spent.
type RetryManager struct {
	producer publisher
	jobs     domain.JobRepository
	cfg      config.Config
}

// NewRetryManager constructs a RetryManager.
func NewRetryManager(producer *Producer, jobs domain.JobRepository, cfg config.Config) *RetryManager {
	return &RetryManager{producer: producer, jobs: jobs, cfg: cfg}
}

// HandleFailure routes one nacked delivery: re-publish with the next
// attempt number, or move to the DLQ when the budget is exhausted. A nil
// return means this manager now owns the redelivery and the original
// record may be committed.
func (rm *RetryManager) HandleFailure(ctx domain.Context, payload domain.ProcessTaskPayload, attempt int, cause error) error {
	next := attempt + 1
	if next > rm.cfg.JobMaxAttempts {
		slog.Warn("delivery budget exhausted, moving job to dlq",
			slog.String("job_id", payload.JobID),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", rm.cfg.JobMaxAttempts))
		return rm.MoveToDLQ(ctx, payload, attempt, cause.Error())
	}

	delay := rm.backoffFor(next)
	slog.Info("scheduling job redelivery",
		slog.String("job_id", payload.JobID),
		slog.Int("next_attempt", next),
		slog.Duration("delay", delay),
		slog.String("cause", cause.Error()))

	// The wait runs detached from the consumer's record context; the
	// stuck-job sweeper covers a crash inside the window.
	go rm.redeliverAfter(context.WithoutCancel(ctx), payload, next, delay)
	return nil
}

// redeliverAfter waits out the backoff and re-publishes unless the job
// settled in the meantime.
func (rm *RetryManager) redeliverAfter(ctx domain.Context, payload domain.ProcessTaskPayload, attempt int, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return
	}

	job, err := rm.jobs.GetAny(ctx, payload.JobID)
	if err != nil {
		slog.Error("redelivery lookup failed",
			slog.String("job_id", payload.JobID),
			slog.Any("error", err))
		return
	}
	if job.Status.Terminal() {
		slog.Info("job settled during backoff, skipping redelivery",
			slog.String("job_id", payload.JobID),
			slog.String("status", string(job.Status)))
		return
	}

	if err := rm.producer.Requeue(ctx, payload, attempt); err != nil {
		slog.Error("redelivery publish failed",
			slog.String("job_id", payload.JobID),
			slog.Int("attempt", attempt),
			slog.Any("error", err))
	}
}

// MoveToDLQ publishes the job to the dead letter topic. The DLQ consumer
// settles the job row.
func (rm *RetryManager) MoveToDLQ(ctx domain.Context, payload domain.ProcessTaskPayload, attempt int, reason string) error {
	return rm.producer.EnqueueDLQ(ctx, DLQRecord{
		Payload:  payload,
		Attempt:  attempt,
		Reason:   reason,
		FailedAt: time.Now().UTC(),
	})
}

// backoffFor computes the delay before the given delivery attempt:
// initial * multiplier^(attempt-2), capped, with up to 20% jitter.
func (rm *RetryManager) backoffFor(attempt int) time.Duration {
	delay := rm.cfg.RetryInitialDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	multiplier := rm.cfg.RetryMultiplier
	if multiplier < 1 {
		multiplier = 2
	}
	for i := 2; i < attempt; i++ {
		delay = time.Duration(float64(delay) * multiplier)
		if rm.cfg.RetryMaxDelay > 0 && delay >= rm.cfg.RetryMaxDelay {
			delay = rm.cfg.RetryMaxDelay
			break
		}
	}
	if rm.cfg.RetryMaxDelay > 0 && delay > rm.cfg.RetryMaxDelay {
		delay = rm.cfg.RetryMaxDelay
	}
	if rm.cfg.RetryJitter {
		delay += time.Duration(rand.Int63n(int64(delay)/5 + 1))
	}
	return delay
}
