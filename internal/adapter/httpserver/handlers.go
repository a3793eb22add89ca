package httpserver

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/config"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Submits    usecase.SubmitService
	Statuses   usecase.StatusService
	Credits    usecase.CreditService
	Tenants    domain.TenantRepository
	Candidates domain.CandidateRepository
	Sessions   *SessionManager

	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
	StoreCheck func(ctx context.Context) error
	TikaCheck  func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, submits usecase.SubmitService, statuses usecase.StatusService, credits usecase.CreditService, tenants domain.TenantRepository, candidates domain.CandidateRepository, sessions *SessionManager) *Server {
	return &Server{
		Cfg:        cfg,
		Submits:    submits,
		Statuses:   statuses,
		Credits:    credits,
		Tenants:    tenants,
		Candidates: candidates,
		Sessions:   sessions,
	}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

func validationDetails(err error) map[string]string {
	verrs := map[string]string{}
	if ve, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range ve {
			verrs[strings.ToLower(fe.Field())] = fe.Tag()
		}
	}
	return verrs
}

// LoginHandler exchanges tenant credentials for a bearer session token.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
		var req struct {
			Email  string `json:"email" validate:"required,email"`
			Secret string `json:"secret" validate:"required,min=8"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), validationDetails(err))
			return
		}
		tenant, err := s.Tenants.GetByEmail(r.Context(), strings.ToLower(req.Email))
		if err != nil || !VerifySecret(req.Secret, tenant.SecretHash) {
			// The same answer for unknown email and bad secret.
			writeError(w, r, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized), nil)
			return
		}
		if tenant.Status != domain.TenantActive {
			writeError(w, r, fmt.Errorf("%w: tenant suspended", domain.ErrUnauthorized), nil)
			return
		}
		token, err := s.Sessions.CreateToken(tenant.ID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token":      token,
			"expires_in": int(sessionTTL / time.Second),
		})
	}
}

// SubmitUploadHandler accepts a resume either as multipart content or as
// a JSON reference to a presigned upload, and answers with the job and
// candidate ids.
func (s *Server) SubmitUploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := TenantFrom(r)
		if tenantID == "" {
			writeError(w, r, fmt.Errorf("%w: session required", domain.ErrUnauthorized), nil)
			return
		}
		in := usecase.SubmitInput{
			TenantID:       tenantID,
			IdempotencyKey: r.Header.Get("Idempotency-Key"),
		}

		ct := r.Header.Get("Content-Type")
		switch {
		case strings.Contains(ct, "multipart/form-data"):
			maxBytes := s.Cfg.MaxFileSize
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))
			if err := r.ParseMultipartForm(maxBytes + (1 << 20)); err != nil {
				if strings.Contains(strings.ToLower(err.Error()), "too large") {
					writeJSON(w, http.StatusRequestEntityTooLarge, errorEnvelope{Error: apiError{
						Code:    "FILE_VALIDATION",
						Message: "payload too large",
						Details: map[string]any{"max_bytes": maxBytes},
					}})
					return
				}
				writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
				return
			}
			file, header, err := r.FormFile("file")
			if err != nil {
				writeError(w, r, fmt.Errorf("%w: file field required", domain.ErrInvalidArgument), map[string]string{"field": "file"})
				return
			}
			defer func() { _ = file.Close() }()
			content, err := io.ReadAll(file)
			if err != nil {
				writeError(w, r, fmt.Errorf("%w: file read: %v", domain.ErrInvalidArgument, err), nil)
				return
			}
			in.FileName = header.Filename
			in.Content = content
			in.AnalysisMode = domain.AnalysisMode(r.FormValue("analysis_mode"))
		case strings.Contains(ct, "application/json"):
			r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
			var req struct {
				StoragePath  string `json:"storage_path" validate:"required"`
				FileName     string `json:"file_name" validate:"required"`
				Size         int64  `json:"size" validate:"required,gt=0"`
				AnalysisMode string `json:"analysis_mode" validate:"omitempty,oneof=phase_1 phase_2"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
				return
			}
			if err := getValidator().Struct(req); err != nil {
				writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), validationDetails(err))
				return
			}
			in.StoragePath = req.StoragePath
			in.FileName = req.FileName
			in.DeclaredSize = req.Size
			in.AnalysisMode = domain.AnalysisMode(req.AnalysisMode)
		default:
			writeError(w, r, fmt.Errorf("%w: content-type must be multipart/form-data or application/json", domain.ErrInvalidArgument), nil)
			return
		}

		if vr := ValidateFileName(in.FileName); !vr.Valid {
			writeError(w, r, fmt.Errorf("%w: bad file name", domain.ErrFileValidation), vr.Errors)
			return
		}
		rcpt, err := s.Submits.Submit(r.Context(), in)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, rcpt)
	}
}

// PresignUploadHandler grants a time-limited PUT URL for the two-step
// JSON submit flow.
func (s *Server) PresignUploadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := TenantFrom(r)
		if tenantID == "" {
			writeError(w, r, fmt.Errorf("%w: session required", domain.ErrUnauthorized), nil)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, 16<<10)
		var req struct {
			FileName string `json:"file_name" validate:"required"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
			return
		}
		if err := getValidator().Struct(req); err != nil {
			writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), validationDetails(err))
			return
		}
		grant, err := s.Submits.Presign(r.Context(), tenantID, req.FileName)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"storage_path": grant.StoragePath,
			"url":          grant.URL,
			"expires_in":   int(grant.ExpiresIn / time.Second),
		})
	}
}

// JobStatusHandler answers status polls for one job.
func (s *Server) JobStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "job_id")
		if vr := ValidateJobID(jobID); !vr.Valid {
			writeError(w, r, fmt.Errorf("%w: bad job id", domain.ErrInvalidArgument), vr.Errors)
			return
		}
		view, err := s.Statuses.Status(r.Context(), TenantFrom(r), jobID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		body, err := json.Marshal(view)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		// Pollers hammer this endpoint; a strong ETag lets them skip
		// unchanged bodies between phase transitions.
		etag := fmt.Sprintf("%q", fmt.Sprintf("%x", sha256.Sum256(body)))
		w.Header().Set("ETag", etag)
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(append(body, '\n'))
	}
}

// JobRetryHandler reruns a failed job against its existing candidate.
func (s *Server) JobRetryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "job_id")
		if vr := ValidateJobID(jobID); !vr.Valid {
			writeError(w, r, fmt.Errorf("%w: bad job id", domain.ErrInvalidArgument), vr.Errors)
			return
		}
		rcpt, err := s.Statuses.Retry(r.Context(), TenantFrom(r), jobID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, rcpt)
	}
}

// JobCancelHandler voids a still-queued job.
func (s *Server) JobCancelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "job_id")
		if vr := ValidateJobID(jobID); !vr.Valid {
			writeError(w, r, fmt.Errorf("%w: bad job id", domain.ErrInvalidArgument), vr.Errors)
			return
		}
		if err := s.Statuses.Cancel(r.Context(), TenantFrom(r), jobID); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID, "status": string(domain.JobFailed), "error_code": "CANCELED"})
	}
}

// CandidateView is the tenant-facing candidate projection. PII appears
// only in masked form.
type CandidateView struct {
	ID              string             `json:"id"`
	Status          string             `json:"status"`
	Name            string             `json:"name"`
	LastPosition    string             `json:"last_position,omitempty"`
	LastCompany     string             `json:"last_company,omitempty"`
	ExpYears        float64            `json:"exp_years,omitempty"`
	Skills          []string           `json:"skills,omitempty"`
	Careers         []domain.Career    `json:"careers,omitempty"`
	Education       []domain.Education `json:"education,omitempty"`
	Projects        []domain.Project   `json:"projects,omitempty"`
	Summary         string             `json:"summary,omitempty"`
	ConfidenceScore float64            `json:"confidence_score"`
	RiskLevel       string             `json:"risk_level,omitempty"`
	RequiresReview  bool               `json:"requires_review"`
	Warnings        []domain.Warning   `json:"warnings,omitempty"`
	PhoneMasked     string             `json:"phone_masked,omitempty"`
	EmailMasked     string             `json:"email_masked,omitempty"`
	AddressMasked   string             `json:"address_masked,omitempty"`
}

func candidateView(c domain.Candidate) CandidateView {
	return CandidateView{
		ID:              c.ID,
		Status:          string(c.Status),
		Name:            c.Name,
		LastPosition:    c.LastPosition,
		LastCompany:     c.LastCompany,
		ExpYears:        c.ExpYears,
		Skills:          c.Skills,
		Careers:         c.Careers,
		Education:       c.Education,
		Projects:        c.Projects,
		Summary:         c.Summary,
		ConfidenceScore: c.ConfidenceScore,
		RiskLevel:       string(c.RiskLevel),
		RequiresReview:  c.RequiresReview,
		Warnings:        c.Warnings,
		PhoneMasked:     c.PhoneMasked,
		EmailMasked:     c.EmailMasked,
		AddressMasked:   c.AddressMasked,
	}
}

// CandidateHandler returns one candidate record.
func (s *Server) CandidateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "candidate_id")
		if vr := ValidateJobID(id); !vr.Valid {
			writeError(w, r, fmt.Errorf("%w: bad candidate id", domain.ErrInvalidArgument), vr.Errors)
			return
		}
		c, err := s.Candidates.Get(r.Context(), TenantFrom(r), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, candidateView(c))
	}
}

// SimilarCandidatesHandler lists completed candidates nearest to the
// given one by embedding distance.
func (s *Server) SimilarCandidatesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "candidate_id")
		if vr := ValidateJobID(id); !vr.Valid {
			writeError(w, r, fmt.Errorf("%w: bad candidate id", domain.ErrInvalidArgument), vr.Errors)
			return
		}
		limit := 10
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 50 {
				limit = n
			}
		}
		matches, err := s.Candidates.SearchSimilar(r.Context(), TenantFrom(r), id, limit)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		views := make([]CandidateView, 0, len(matches))
		for _, m := range matches {
			views = append(views, candidateView(m))
		}
		writeJSON(w, http.StatusOK, map[string]any{"candidates": views})
	}
}

// CreditBalanceHandler returns the tenant's credit position.
func (s *Server) CreditBalanceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := s.Credits.Balance(r.Context(), TenantFrom(r))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// CreditTransactionsHandler lists the tenant's recent ledger rows.
func (s *Server) CreditTransactionsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			limit, _ = strconv.Atoi(v)
		}
		txs, err := s.Credits.Transactions(r.Context(), TenantFrom(r), limit)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
	}
}

// ReadyzHandler probes the metadata store, redis, the object store, and
// tika.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 4)
		run := func(name string, fn func(ctx context.Context) error) {
			if fn == nil {
				return
			}
			if err := fn(ctx); err != nil {
				checks = append(checks, check{Name: name, OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: name, OK: true})
			}
		}
		run("db", s.DBCheck)
		run("redis", s.RedisCheck)
		run("object_store", s.StoreCheck)
		run("tika", s.TikaCheck)
		ok := true
		for _, c := range checks {
			if !c.OK {
				ok = false
				break
			}
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
