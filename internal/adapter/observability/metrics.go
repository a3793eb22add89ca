package observability

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"route", "method"},
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Total number of LLM requests by provider, operation and outcome",
		},
		[]string{"provider", "operation", "outcome"},
	)
	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider", "operation"},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "llm_circuit_breaker_state",
			Help: "Circuit breaker state per provider (0 closed, 1 half-open, 2 open)",
		},
		[]string{"provider"},
	)

	JobsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
		[]string{"type"},
	)
	JobsProcessing = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "jobs_processing",
			Help: "Number of jobs currently processing",
		},
		[]string{"type"},
	)
	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Total number of jobs completed",
		},
		[]string{"type"},
	)
	JobsFailedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_failed_total",
			Help: "Total number of jobs failed",
		},
		[]string{"type"},
	)
	JobsDLQTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_dlq_total",
			Help: "Total number of jobs routed to the dead letter topic",
		},
		[]string{"type"},
	)
	JobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_duration_seconds",
			Help:    "End-to-end job processing duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 180, 300, 600},
		},
		[]string{"type"},
	)
	PipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Per-stage pipeline duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 120},
		},
		[]string{"stage"},
	)

	ExtractRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "text_extract_requests_total",
			Help: "Total number of text extraction requests by outcome",
		},
		[]string{"outcome"},
	)
	ExtractRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "text_extract_duration_seconds",
			Help:    "Text extraction request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 15, 30, 60},
		},
	)

	WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts by event status and outcome",
		},
		[]string{"status", "outcome"},
	)
	CreditCommitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "credit_commits_total",
			Help: "Total number of usage credits committed",
		},
	)

	// Analysis outcome distributions
	ConfidenceScoreHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analysis_confidence_score",
			Help:    "Distribution of candidate confidence_score (normalized fraction [0,1])",
			Buckets: []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)
	RequiresReviewTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "analysis_requires_review_total",
			Help: "Total number of candidates flagged for manual review",
		},
	)
)

func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(LLMRequestsTotal)
	prometheus.MustRegister(LLMRequestDuration)
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(JobsEnqueuedTotal)
	prometheus.MustRegister(JobsProcessing)
	prometheus.MustRegister(JobsCompletedTotal)
	prometheus.MustRegister(JobsFailedTotal)
	prometheus.MustRegister(JobsDLQTotal)
	prometheus.MustRegister(JobDuration)
	prometheus.MustRegister(PipelineStageDuration)
	prometheus.MustRegister(ExtractRequestsTotal)
	prometheus.MustRegister(ExtractRequestDuration)
	prometheus.MustRegister(WebhookDeliveriesTotal)
	prometheus.MustRegister(CreditCommitsTotal)
	prometheus.MustRegister(ConfidenceScoreHistogram)
	prometheus.MustRegister(RequiresReviewTotal)
}

// HTTPMetricsMiddleware records Prometheus metrics for each request.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		dur := time.Since(start).Seconds()
		// Route pattern may be unavailable outside chi router; guard nil
		var route string
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		if route == "" {
			// fallback when route pattern is unavailable
			route = r.URL.Path
		}
		method := r.Method
		status := ww.Status()
		HTTPRequestsTotal.WithLabelValues(route, method, http.StatusText(status)).Inc()
		HTTPRequestDuration.WithLabelValues(route, method).Observe(dur)
	})
}

func EnqueueJob(jobType string) {
	JobsEnqueuedTotal.WithLabelValues(jobType).Inc()
}

func StartProcessingJob(jobType string) {
	JobsProcessing.WithLabelValues(jobType).Inc()
}

func CompleteJob(jobType string) {
	JobsProcessing.WithLabelValues(jobType).Dec()
	JobsCompletedTotal.WithLabelValues(jobType).Inc()
}

func FailJob(jobType string) {
	JobsProcessing.WithLabelValues(jobType).Dec()
	JobsFailedTotal.WithLabelValues(jobType).Inc()
}

// RequeueJob marks a job as released back to the queue for another
// attempt; it counts as neither completed nor failed.
func RequeueJob(jobType string) {
	JobsProcessing.WithLabelValues(jobType).Dec()
}

// ObserveAnalysis records the outcome of one completed analysis.
func ObserveAnalysis(confidence float64, requiresReview bool) {
	if confidence >= 0 && confidence <= 1 {
		ConfidenceScoreHistogram.Observe(confidence)
	}
	if requiresReview {
		RequiresReviewTotal.Inc()
	}
}
