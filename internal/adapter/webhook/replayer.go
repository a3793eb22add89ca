package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/config"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

const (
	// replayBudget bounds how many replays a recorded failure gets
	// before it is abandoned.
	replayBudget = 10
	replayBatch  = 50
	// replayMaxWait caps the growing gap between replays of one row.
	replayMaxWait = time.Hour
)

// Replayer drains webhook_failures: each cycle it picks up due rows,
// re-delivers each once, and either settles the row or pushes its next
// attempt further out. Runs alongside the worker, one instance per
// deployment.
type Replayer struct {
	cfg      config.Config
	failures domain.WebhookFailureRepository
	jobs     domain.JobRepository
	tenants  domain.TenantRepository
	client   *http.Client
}

// NewReplayer constructs a Replayer.
func NewReplayer(cfg config.Config, failures domain.WebhookFailureRepository, jobs domain.JobRepository, tenants domain.TenantRepository) *Replayer {
	timeout := cfg.WebhookTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Replayer{
		cfg:      cfg,
		failures: failures,
		jobs:     jobs,
		tenants:  tenants,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Run replays due failures on a fixed interval until ctx is cancelled.
func (r *Replayer) Run(ctx domain.Context) {
	interval := r.cfg.WebhookReplayInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				slog.Error("webhook replay cycle failed", slog.Any("error", err))
			}
		}
	}
}

// RunOnce replays one batch of due failures and reports how many were
// delivered. Also invoked directly by the admin replay endpoint.
func (r *Replayer) RunOnce(ctx domain.Context) (int, error) {
	tracer := otel.Tracer("webhook.replayer")
	ctx, span := tracer.Start(ctx, "webhook.replay_cycle")
	defer span.End()

	rows, err := r.failures.ListDue(ctx, time.Now().UTC(), replayBatch)
	if err != nil {
		return 0, fmt.Errorf("op=webhook.replay: %w", err)
	}
	delivered := 0
	for _, f := range rows {
		if ctx.Err() != nil {
			return delivered, ctx.Err()
		}
		if r.replayOne(ctx, f) {
			delivered++
		}
	}
	if len(rows) > 0 {
		slog.Info("webhook replay cycle finished",
			slog.Int("due", len(rows)),
			slog.Int("delivered", delivered))
	}
	return delivered, nil
}

// replayOne re-delivers a single recorded failure. Reports whether the
// receiver accepted it.
func (r *Replayer) replayOne(ctx domain.Context, f domain.WebhookFailure) bool {
	if f.RetryCount >= replayBudget {
		r.abandon(ctx, f, "replay budget spent")
		return false
	}

	// The stored payload omits the tenant id, so the owning job resolves
	// the receiver.
	job, err := r.jobs.GetAny(ctx, f.JobID)
	if errors.Is(err, domain.ErrNotFound) {
		r.abandon(ctx, f, "job no longer exists")
		return false
	}
	if err != nil {
		slog.Warn("webhook replay job lookup failed, leaving row due",
			slog.String("failure_id", f.ID),
			slog.String("job_id", f.JobID),
			slog.Any("error", err))
		return false
	}

	url := receiverURL(ctx, r.tenants, job.TenantID, r.cfg.WebhookURL)
	if url == "" {
		r.abandon(ctx, f, "no receiver configured")
		return false
	}

	statusLabel := statusLabelOf(f.Payload)
	if err := postJSON(ctx, r.client, url, r.cfg.WebhookSecret, f.Payload); err != nil {
		observability.WebhookDeliveriesTotal.WithLabelValues(statusLabel, "replay_failed").Inc()
		next := time.Now().UTC().Add(r.nextDelay(f.RetryCount))
		if bumpErr := r.failures.Bump(ctx, f.ID, err.Error(), next); bumpErr != nil {
			slog.Error("webhook replay bump failed",
				slog.String("failure_id", f.ID),
				slog.Any("error", bumpErr))
		}
		return false
	}

	observability.WebhookDeliveriesTotal.WithLabelValues(statusLabel, "replayed").Inc()
	if err := r.failures.MarkDelivered(ctx, f.ID); err != nil {
		// The receiver has the event; worst case the row replays once
		// more and the receiver dedupes on (job_id, status).
		slog.Error("webhook replay settle failed",
			slog.String("failure_id", f.ID),
			slog.Any("error", err))
	}
	slog.Info("webhook replayed",
		slog.String("failure_id", f.ID),
		slog.String("job_id", f.JobID),
		slog.Int("retry_count", f.RetryCount))
	return true
}

func (r *Replayer) abandon(ctx domain.Context, f domain.WebhookFailure, reason string) {
	slog.Warn("abandoning webhook failure",
		slog.String("failure_id", f.ID),
		slog.String("job_id", f.JobID),
		slog.Int("retry_count", f.RetryCount),
		slog.String("reason", reason))
	if err := r.failures.MarkAbandoned(ctx, f.ID); err != nil {
		slog.Error("webhook abandon failed",
			slog.String("failure_id", f.ID),
			slog.Any("error", err))
	}
}

// nextDelay doubles the replay gap per spent attempt, capped.
func (r *Replayer) nextDelay(retryCount int) time.Duration {
	base := r.cfg.WebhookReplayInterval
	if base <= 0 {
		base = time.Minute
	}
	d := base
	for i := 0; i < retryCount && d < replayMaxWait; i++ {
		d *= 2
	}
	if d > replayMaxWait {
		d = replayMaxWait
	}
	return d
}

// statusLabelOf recovers the event status from a stored payload for
// metric labelling.
func statusLabelOf(payload []byte) string {
	var ev struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(payload, &ev); err == nil && ev.Status != "" {
		return ev.Status
	}
	return "unknown"
}
