// Package app wires application components and startup helpers.
package app

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	httpserver "github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/config"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/service/ratelimiter"
)

// ParseOrigins splits a comma-separated origin list into a slice, trimming spaces.
// If the input is empty, returns ["*"].
func ParseOrigins(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return []string{"*"}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// BuildLimiter constructs the sliding-window limiter from the configured
// per-class rates. A nil redis client leaves only the in-process
// fallback, which is what tests and single-replica dev want.
func BuildLimiter(cfg config.Config, rdb *redis.Client) *ratelimiter.SlidingWindowLimiter {
	return ratelimiter.NewSlidingWindowLimiter(rdb, map[string]ratelimiter.WindowConfig{
		ratelimiter.ClassUpload:  ratelimiter.PerMinute(cfg.UploadRateLimitPerMin),
		ratelimiter.ClassSearch:  ratelimiter.PerMinute(cfg.SearchRateLimitPerMin),
		ratelimiter.ClassAuth:    ratelimiter.PerMinute(cfg.AuthRateLimitPerMin),
		ratelimiter.ClassExport:  ratelimiter.PerHour(cfg.ExportRateLimitPerHour),
		ratelimiter.ClassDefault: ratelimiter.PerMinute(cfg.DefaultRateLimitPerMin),
	})
}

// BuildRouter constructs the HTTP handler with all middlewares and routes.
func BuildRouter(cfg config.Config, srv *httpserver.Server, admin *httpserver.AdminServer, limiter ratelimiter.Limiter) http.Handler {
	r := chi.NewRouter()
	r.Use(httpserver.Recoverer())
	r.Use(httpserver.RequestID())
	r.Use(httpserver.TimeoutMiddleware(60 * time.Second))
	r.Use(httpserver.TraceMiddleware)
	r.Use(httpserver.AccessLog())
	r.Use(observability.HTTPMetricsMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   ParseOrigins(cfg.CORSAllowOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Coarse per-IP flood guard; the class-level sliding windows below
	// carry the real quotas.
	if cfg.GlobalRateLimitPerMin > 0 {
		r.Use(httprate.LimitByIP(cfg.GlobalRateLimitPerMin, time.Minute))
	}

	trust := cfg.TrustProxyHeaders
	limit := func(class string) func(http.Handler) http.Handler {
		return httpserver.RateLimit(limiter, class, trust)
	}

	// Unauthenticated: login is limited by source IP.
	r.Group(func(gr chi.Router) {
		gr.Use(limit(ratelimiter.ClassAuth))
		gr.Post("/v1/auth/login", srv.LoginHandler())
	})

	// Tenant surface.
	r.Group(func(gr chi.Router) {
		gr.Use(srv.Sessions.TenantAuth)

		gr.Group(func(ur chi.Router) {
			ur.Use(limit(ratelimiter.ClassUpload))
			ur.Post("/v1/upload/submit", srv.SubmitUploadHandler())
			ur.Post("/v1/upload/presign", srv.PresignUploadHandler())
		})

		gr.Group(func(dr chi.Router) {
			dr.Use(limit(ratelimiter.ClassDefault))
			dr.Get("/v1/jobs/{job_id}", srv.JobStatusHandler())
			dr.Post("/v1/jobs/{job_id}/retry", srv.JobRetryHandler())
			dr.Post("/v1/jobs/{job_id}/cancel", srv.JobCancelHandler())
			dr.Get("/v1/candidates/{candidate_id}", srv.CandidateHandler())
			dr.Get("/v1/credits", srv.CreditBalanceHandler())
		})

		gr.Group(func(sr chi.Router) {
			sr.Use(limit(ratelimiter.ClassSearch))
			sr.Get("/v1/candidates/{candidate_id}/similar", srv.SimilarCandidatesHandler())
		})

		gr.Group(func(er chi.Router) {
			er.Use(limit(ratelimiter.ClassExport))
			er.Get("/v1/credits/transactions", srv.CreditTransactionsHandler())
		})
	})

	// Health and metrics.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", srv.ReadyzHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) { promhttp.Handler().ServeHTTP(w, r) })

	if admin != nil && cfg.AdminEnabled() {
		admin.MountRoutes(r, cfg.AdminAPIKey)
	}

	return httpserver.SecurityHeaders(r)
}
