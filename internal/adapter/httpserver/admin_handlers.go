package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/usecase"
)

// WebhookReplayer triggers one replay pass over due webhook failures.
type WebhookReplayer interface {
	RunOnce(ctx domain.Context) (int, error)
}

// AdminServer carries the operator surface: DLQ inspection, webhook
// replay, and credit adjustments. Every route sits behind AdminGuard.
type AdminServer struct {
	Failures domain.WebhookFailureRepository
	Jobs     domain.JobRepository
	Ledger   domain.CreditLedger
	Credits  usecase.CreditService
	Replayer WebhookReplayer
}

// MountRoutes attaches the admin endpoints under /admin.
func (a *AdminServer) MountRoutes(r chi.Router, adminKey string) {
	r.Route("/admin", func(ar chi.Router) {
		ar.Use(AdminGuard(adminKey))
		ar.Get("/webhook-failures", a.ListWebhookFailures())
		ar.Post("/webhook-failures/replay", a.ReplayWebhookFailures())
		ar.Get("/jobs/stale", a.ListStaleJobs())
		ar.Get("/jobs/dlq", a.ListDLQJobs())
		ar.Post("/credits/adjust", a.AdjustCredits())
		ar.Post("/credits/reset-due", a.ResetDueCredits())
	})
}

// ListWebhookFailures returns retained undelivered webhook payloads.
func (a *AdminServer) ListWebhookFailures() http.HandlerFunc {
	type row struct {
		ID          string    `json:"id"`
		JobID       string    `json:"job_id"`
		Status      string    `json:"status"`
		Error       string    `json:"error,omitempty"`
		RetryCount  int       `json:"retry_count"`
		NextRetryAt time.Time `json:"next_retry_at"`
		Payload     string    `json:"payload"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
				limit = n
			}
		}
		failures, err := a.Failures.ListPending(r.Context(), limit)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		rows := make([]row, 0, len(failures))
		for _, f := range failures {
			rows = append(rows, row{
				ID:          f.ID,
				JobID:       f.JobID,
				Status:      f.Status,
				Error:       f.Error,
				RetryCount:  f.RetryCount,
				NextRetryAt: f.NextRetryAt,
				Payload:     string(f.Payload),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"failures": rows})
	}
}

// ReplayWebhookFailures forces a replay pass out of schedule.
func (a *AdminServer) ReplayWebhookFailures() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.Replayer == nil {
			writeError(w, r, fmt.Errorf("%w: replayer not configured", domain.ErrInvalidArgument), nil)
			return
		}
		n, err := a.Replayer.RunOnce(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"replayed": n})
	}
}

// ListStaleJobs surfaces non-terminal jobs with no recent progress.
func (a *AdminServer) ListStaleJobs() http.HandlerFunc {
	type row struct {
		ID           string    `json:"id"`
		TenantID     string    `json:"tenant_id"`
		Status       string    `json:"status"`
		AttemptCount int       `json:"attempt_count"`
		UpdatedAt    time.Time `json:"updated_at"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		staleAfter := 15 * time.Minute
		if v := r.URL.Query().Get("stale_after"); v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				staleAfter = d
			}
		}
		jobs, err := a.Jobs.ListStale(r.Context(), time.Now().Add(-staleAfter), 100)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		rows := make([]row, 0, len(jobs))
		for _, j := range jobs {
			rows = append(rows, row{
				ID:           j.ID,
				TenantID:     j.TenantID,
				Status:       string(j.Status),
				AttemptCount: j.AttemptCount,
				UpdatedAt:    j.UpdatedAt,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"jobs": rows})
	}
}

// ListDLQJobs surfaces jobs settled from the dead-letter queue.
func (a *AdminServer) ListDLQJobs() http.HandlerFunc {
	type row struct {
		ID           string    `json:"id"`
		TenantID     string    `json:"tenant_id"`
		CandidateID  string    `json:"candidate_id"`
		AttemptCount int       `json:"attempt_count"`
		ErrorMessage string    `json:"error_message,omitempty"`
		UpdatedAt    time.Time `json:"updated_at"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := a.Jobs.ListByErrorCode(r.Context(), "DLQ", 100)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		rows := make([]row, 0, len(jobs))
		for _, j := range jobs {
			var msg string
			if j.ErrorMessage != nil {
				msg = *j.ErrorMessage
			}
			rows = append(rows, row{
				ID:           j.ID,
				TenantID:     j.TenantID,
				CandidateID:  j.CandidateID,
				AttemptCount: j.AttemptCount,
				ErrorMessage: msg,
				UpdatedAt:    j.UpdatedAt,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"jobs": rows})
	}
}

// AdjustCredits writes an operator adjustment to a tenant's ledger.
func (a *AdminServer) AdjustCredits() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 16<<10)
		var req struct {
			TenantID    string `json:"tenant_id" validate:"required"`
			Amount      int    `json:"amount" validate:"required"`
			Description string `json:"description" validate:"required,max=500"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), validationDetails(err))
			return
		}
		if err := a.Credits.Adjust(r.Context(), req.TenantID, req.Amount, req.Description); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tenant_id": req.TenantID, "amount": req.Amount})
	}
}

// ResetDueCredits rolls every overdue billing cycle forward now instead
// of waiting for the nightly sweep.
func (a *AdminServer) ResetDueCredits() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := a.Ledger.ResetAllDue(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reset": n})
	}
}
