// Package webhook delivers progressive phase notifications to the
// configured receiver. Delivery is bounded-retry; payloads that exhaust
// their attempts land in webhook_failures, where a background replayer
// picks them up.
package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/config"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

const (
	maxAttempts    = 3
	initialBackoff = time.Second
	maxBackoff     = 10 * time.Second
)

// retryableStatus reports whether the receiver's response is worth
// another attempt. Other 4xx codes are rejections and other 5xx codes
// (501, 505) signal the receiver will never accept this request shape.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Emitter implements domain.WebhookEmitter. Receivers resolve per
// tenant: a tenant row with its own webhook URL overrides the global
// one.
type Emitter struct {
	cfg      config.Config
	tenants  domain.TenantRepository
	failures domain.WebhookFailureRepository
	client   *http.Client

	backoffBase time.Duration
	backoffCap  time.Duration
}

// NewEmitter constructs an Emitter.
func NewEmitter(cfg config.Config, tenants domain.TenantRepository, failures domain.WebhookFailureRepository) *Emitter {
	timeout := cfg.WebhookTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Emitter{
		cfg:      cfg,
		tenants:  tenants,
		failures: failures,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		backoffBase: initialBackoff,
		backoffCap:  maxBackoff,
	}
}

// Emit delivers one event. When delivery exhausts its attempts the
// payload is recorded for replay and Emit returns nil: the replayer owns
// the event from then on. Only a failure to record propagates.
func (e *Emitter) Emit(ctx domain.Context, event domain.WebhookEvent) error {
	url := e.receiverFor(ctx, event.TenantID)
	if url == "" {
		slog.Debug("no webhook receiver configured, dropping event",
			slog.String("job_id", event.JobID),
			slog.String("status", string(event.Status)))
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("op=webhook.emit: marshal: %w", err)
	}

	attempts, deliverErr := e.deliver(ctx, url, payload, string(event.Status))
	if deliverErr == nil {
		return nil
	}

	id, recErr := e.failures.Record(ctx, domain.WebhookFailure{
		JobID:       event.JobID,
		Payload:     payload,
		Status:      domain.WebhookFailurePending,
		Error:       deliverErr.Error(),
		RetryCount:  attempts,
		NextRetryAt: time.Now().UTC().Add(e.replayDelay()),
	})
	if recErr != nil {
		return fmt.Errorf("op=webhook.emit: deliver: %v; record: %w", deliverErr, recErr)
	}
	slog.Warn("webhook delivery exhausted, recorded for replay",
		slog.String("job_id", event.JobID),
		slog.String("status", string(event.Status)),
		slog.String("failure_id", id),
		slog.Any("error", deliverErr))
	return nil
}

// deliver POSTs the payload with bounded retries. Returns how many
// attempts were spent so the recorded failure row carries the count.
func (e *Emitter) deliver(ctx domain.Context, url string, payload []byte, statusLabel string) (int, error) {
	attempts := 0
	op := func() error {
		attempts++
		err := e.post(ctx, url, payload)
		switch {
		case err == nil:
			observability.WebhookDeliveriesTotal.WithLabelValues(statusLabel, "ok").Inc()
			return nil
		case isPermanent(err):
			observability.WebhookDeliveriesTotal.WithLabelValues(statusLabel, "rejected").Inc()
			return backoff.Permanent(err)
		default:
			observability.WebhookDeliveriesTotal.WithLabelValues(statusLabel, "retryable").Inc()
			return err
		}
	}
	base, limit := e.backoffBase, e.backoffCap
	if base <= 0 {
		base = initialBackoff
	}
	if limit <= 0 {
		limit = maxBackoff
	}
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = base
	expo.MaxInterval = limit
	expo.Multiplier = 2
	expo.RandomizationFactor = 0.2
	err := backoff.Retry(op, backoff.WithMaxRetries(backoff.WithContext(expo, ctx), maxAttempts-1))
	return attempts, err
}

// receiverError marks responses that no amount of retrying will fix.
type receiverError struct {
	status int
}

func (e *receiverError) Error() string { return fmt.Sprintf("receiver status %d", e.status) }

func isPermanent(err error) bool {
	re, ok := err.(*receiverError)
	return ok && !retryableStatus(re.status)
}

// post performs one delivery attempt.
func (e *Emitter) post(ctx domain.Context, url string, payload []byte) error {
	return postJSON(ctx, e.client, url, e.cfg.WebhookSecret, payload)
}

// postJSON performs a single signed delivery. Transport errors come
// back as-is; non-2xx responses come back as *receiverError.
func postJSON(ctx domain.Context, client *http.Client, url, secret string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &receiverError{status: http.StatusBadRequest}
	}
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("X-Webhook-Secret", secret)
	}

	resp, err := client.Do(req)
	if err != nil {
		// Timeouts and connection errors retry.
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &receiverError{status: resp.StatusCode}
}

// receiverFor resolves the receiver URL, preferring the tenant's own.
func (e *Emitter) receiverFor(ctx domain.Context, tenantID string) string {
	return receiverURL(ctx, e.tenants, tenantID, e.cfg.WebhookURL)
}

// receiverURL resolves a tenant's receiver with the configured default
// as fallback. Lookup failures fall back rather than block delivery.
func receiverURL(ctx domain.Context, tenants domain.TenantRepository, tenantID, fallback string) string {
	if tenantID != "" && tenants != nil {
		t, err := tenants.Get(ctx, tenantID)
		switch {
		case err != nil:
			slog.Warn("tenant receiver lookup failed, using default",
				slog.String("tenant_id", tenantID),
				slog.Any("error", err))
		case t.WebhookURL != "":
			return t.WebhookURL
		}
	}
	return fallback
}

func (e *Emitter) replayDelay() time.Duration {
	if e.cfg.WebhookReplayInterval > 0 {
		return e.cfg.WebhookReplayInterval
	}
	return time.Minute
}
