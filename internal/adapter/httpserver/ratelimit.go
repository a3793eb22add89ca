package httpserver

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/service/ratelimiter"
)

// RateLimit enforces the sliding-window limit for one route class. The
// subject is the authenticated tenant when present, otherwise the
// resolved client IP, so unauthenticated probing cannot spend a
// tenant's quota.
func RateLimit(limiter ratelimiter.Limiter, class string, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}
			subject := TenantFrom(r)
			if subject == "" {
				subject = "ip:" + ClientIP(r, trustProxy)
			}
			allowed, retryAfter, err := limiter.Allow(r.Context(), class, subject)
			if err != nil {
				// The limiter already fell back to its in-process
				// counter; an error here means even that failed.
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				secs := int(retryAfter / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeError(w, r, fmt.Errorf("%w: %s", domain.ErrRateLimited, class), map[string]any{"retry_after_seconds": secs})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
