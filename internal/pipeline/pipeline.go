// Package pipeline runs the worker-side analysis state machine for one
// processing job: route, parse, analyze, protect, persist. A run returns
// nil when the job reached a terminal state (completed or failed) and an
// error when the message should go back to the queue for another attempt.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/config"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
	"github.com/fairyhunter13/ai-resume-analyzer/pkg/pii"
)

const jobType = "process"

// Analyst is the typed model surface the pipeline consumes. The ai
// adapter provides the production implementation over the provider
// manager.
type Analyst interface {
	Available() []domain.AIProvider
	ExtractProfile(ctx domain.Context, provider domain.AIProvider, text string) (domain.ExtractionRecord, error)
	ClassifyDocument(ctx domain.Context, text string) (string, float64, error)
	CountPersons(ctx domain.Context, text string) (int, string, error)
	FillGaps(ctx domain.Context, provider domain.AIProvider, text string, missing []string) (domain.ExtractionRecord, error)
	Embed(ctx domain.Context, text string) ([]float32, error)
}

// Deps carries everything one pipeline run touches.
type Deps struct {
	Cfg        config.Config
	Jobs       domain.JobRepository
	Candidates domain.CandidateRepository
	Tenants    domain.TenantRepository
	Credits    domain.CreditLedger
	Emails     domain.EmailNotificationRepository
	Store      domain.ObjectStore
	Extractor  domain.TextExtractor
	Analyst    Analyst
	Synonyms   domain.SynonymSource
	Webhooks   domain.WebhookEmitter
	Codec      *pii.Codec
}

// Pipeline owns one ProcessingJob at a time; the queue consumer calls Run
// once per delivery.
type Pipeline struct {
	cfg        config.Config
	jobs       domain.JobRepository
	candidates domain.CandidateRepository
	tenants    domain.TenantRepository
	credits    domain.CreditLedger
	emails     domain.EmailNotificationRepository
	store      domain.ObjectStore
	extractor  domain.TextExtractor
	analyst    Analyst
	synonyms   domain.SynonymSource
	webhooks   domain.WebhookEmitter
	codec      *pii.Codec
}

// New builds a Pipeline from its dependencies.
func New(d Deps) *Pipeline {
	return &Pipeline{
		cfg:        d.Cfg,
		jobs:       d.Jobs,
		candidates: d.Candidates,
		tenants:    d.Tenants,
		credits:    d.Credits,
		emails:     d.Emails,
		store:      d.Store,
		extractor:  d.Extractor,
		analyst:    d.Analyst,
		synonyms:   d.Synonyms,
		webhooks:   d.Webhooks,
		codec:      d.Codec,
	}
}

// Run processes one queue delivery end to end. nil means the message is
// done (the job reached a terminal state or the message is void); an
// error asks the queue for redelivery.
func (p *Pipeline) Run(ctx domain.Context, payload domain.ProcessTaskPayload) error {
	start := time.Now()

	job, err := p.jobs.GetAny(ctx, payload.JobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Error("queue message names an unknown job, dropping",
				slog.String("job_id", payload.JobID))
			return nil
		}
		return fmt.Errorf("op=pipeline.Run: %w", err)
	}
	if job.TenantID != payload.TenantID {
		slog.Error("queue payload tenant mismatch, dropping",
			slog.String("job_id", job.ID),
			slog.String("payload_tenant", payload.TenantID),
			slog.String("row_tenant", job.TenantID))
		return nil
	}
	if job.Status.Terminal() {
		slog.Info("job already terminal, dropping redelivery",
			slog.String("job_id", job.ID),
			slog.String("status", string(job.Status)))
		return nil
	}

	observability.StartProcessingJob(jobType)

	attempt, err := p.jobs.IncrementAttempt(ctx, job.ID)
	if err != nil {
		observability.RequeueJob(jobType)
		return fmt.Errorf("op=pipeline.Run: %w", err)
	}
	job.AttemptCount = attempt
	cleanCtx := context.WithoutCancel(ctx)
	if attempt > p.cfg.JobMaxAttempts {
		p.failJob(cleanCtx, &job, fmt.Errorf("max attempts exceeded (%d)", p.cfg.JobMaxAttempts))
		observability.JobDuration.WithLabelValues(jobType).Observe(time.Since(start).Seconds())
		return nil
	}

	wall := p.cfg.JobWallClock
	if wall <= 0 {
		wall = 300 * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, wall)
	defer cancel()

	// Re-deliveries re-run every stage (side effects are replay-safe) but
	// must not repeat phase webhooks the first delivery already emitted.
	resumedFrom := job.Status

	err = p.process(runCtx, &job, resumedFrom, start)
	if err == nil {
		observability.CompleteJob(jobType)
		observability.JobDuration.WithLabelValues(jobType).Observe(time.Since(start).Seconds())
		return nil
	}
	if isFatal(err) || attempt >= p.cfg.JobMaxAttempts {
		p.failJob(cleanCtx, &job, err)
		observability.JobDuration.WithLabelValues(jobType).Observe(time.Since(start).Seconds())
		return nil
	}
	observability.RequeueJob(jobType)
	slog.Warn("job requeued after transient failure",
		slog.String("job_id", job.ID),
		slog.Int("attempt", attempt),
		slog.String("error", err.Error()))
	return err
}

// process runs the stage sequence. Any returned error is classified by
// the caller; fatal ones end the job, everything else goes back to the
// queue.
func (p *Pipeline) process(ctx domain.Context, job *domain.ProcessingJob, resumedFrom domain.JobStatus, start time.Time) error {
	if err := p.transition(ctx, job, domain.JobParsing); err != nil {
		return err
	}

	data, err := p.store.Get(ctx, job.FilePath)
	if err != nil {
		return fmt.Errorf("op=pipeline.fetch: %w", err)
	}
	path, cleanup, err := stageFile(data, job.FileName)
	if err != nil {
		return err
	}
	defer cleanup()

	info, err := p.route(job, data, path)
	if err != nil {
		return err
	}
	if info.fileType != job.FileType {
		slog.Warn("routed file type differs from submission",
			slog.String("job_id", job.ID),
			slog.String("submitted", job.FileType),
			slog.String("routed", info.fileType))
	}

	text, err := p.parse(ctx, job, path)
	if err != nil {
		return err
	}

	quick := QuickExtract(text)
	if err := p.candidates.UpdateQuick(ctx, job.TenantID, job.CandidateID, quick); err != nil {
		return fmt.Errorf("op=pipeline.quick: %w", err)
	}
	if err := p.transition(ctx, job, domain.JobParsed); err != nil {
		return err
	}
	if statusRank(resumedFrom) < statusRank(domain.JobParsed) {
		p.notify(ctx, domain.WebhookEvent{
			JobID:    job.ID,
			TenantID: job.TenantID,
			Status:   domain.WebhookParsed,
			Phase:    string(domain.WebhookParsed),
			Result:   &domain.WebhookResult{CandidateID: job.CandidateID, QuickData: &quick},
		})
	}

	if err := p.transition(ctx, job, domain.JobAnalyzing); err != nil {
		return err
	}
	if err := p.classify(ctx, job, text); err != nil {
		return err
	}
	if err := p.checkIdentity(ctx, job, text); err != nil {
		return err
	}
	res, err := p.analyze(ctx, job, text)
	if err != nil {
		return err
	}
	if err := p.transition(ctx, job, domain.JobAnalyzed); err != nil {
		return err
	}
	if statusRank(resumedFrom) < statusRank(domain.JobAnalyzed) {
		p.notify(ctx, domain.WebhookEvent{
			JobID:    job.ID,
			TenantID: job.TenantID,
			Status:   domain.WebhookAnalyzed,
			Phase:    string(domain.WebhookAnalyzed),
			Result:   &domain.WebhookResult{CandidateID: job.CandidateID},
		})
	}

	p.validate(&res)
	if p.cfg.UseCoverageCalculator {
		coverageStart := time.Now()
		coverage, missing := Coverage(res.Record)
		observeStage("coverage", coverageStart)
		slog.Info("coverage computed",
			slog.String("job_id", job.ID),
			slog.Float64("coverage", coverage),
			slog.Float64("threshold", p.cfg.CoverageThreshold),
			slog.Any("missing", missing))
	}
	p.fillGaps(ctx, job, text, &res)

	score := ConfidenceScore(res.FieldConfidence)
	requiresReview := score < reviewThreshold
	risk := AssessRisk(&res, requiresReview)

	artifacts, err := p.protectPII(&res.Record)
	if err != nil {
		return err
	}

	vec, warn := p.embed(ctx, job, res.Record)
	if warn != nil {
		res.Warnings = append(res.Warnings, *warn)
	}

	if err := p.transition(ctx, job, domain.JobPersisting); err != nil {
		return err
	}
	if err := p.persist(ctx, job, &res, artifacts, vec, score, risk, requiresReview); err != nil {
		return err
	}
	if err := p.transition(ctx, job, domain.JobCompleted); err != nil {
		return err
	}

	chunks := 0
	if len(vec) > 0 {
		chunks = 1
	}
	piiCount := artifacts.count
	processingMS := time.Since(start).Milliseconds()
	p.notify(ctx, domain.WebhookEvent{
		JobID:    job.ID,
		TenantID: job.TenantID,
		Status:   domain.WebhookCompleted,
		Phase:    string(domain.WebhookCompleted),
		Result: &domain.WebhookResult{
			CandidateID:      job.CandidateID,
			ConfidenceScore:  &score,
			ChunkCount:       &chunks,
			PIICount:         &piiCount,
			ProcessingTimeMS: &processingMS,
		},
	})
	p.enqueueEmail(ctx, job, domain.EmailKindAnalysisCompleted)
	observability.ObserveAnalysis(score, requiresReview)

	slog.Info("job completed",
		slog.String("job_id", job.ID),
		slog.String("candidate_id", job.CandidateID),
		slog.Float64("confidence_score", score),
		slog.String("risk_level", string(risk)),
		slog.Int64("processing_ms", processingMS))
	return nil
}

// failJob drives the job to its terminal failed state: row, candidate,
// webhook, email, metrics. Failures inside the handler are logged and
// swallowed; the message is acked either way.
func (p *Pipeline) failJob(ctx domain.Context, job *domain.ProcessingJob, ferr error) {
	code := domain.ErrorCode(ferr)
	msg := ferr.Error()
	slog.Error("job failed",
		slog.String("job_id", job.ID),
		slog.String("error_code", code),
		slog.String("error", msg))
	if err := p.jobs.UpdateStatus(ctx, job.ID, domain.JobFailed, &code, &msg); err != nil {
		slog.Error("failed-state write errored",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()))
	}
	if err := p.candidates.MarkFailed(ctx, job.TenantID, job.CandidateID); err != nil {
		slog.Error("candidate failed-state write errored",
			slog.String("job_id", job.ID),
			slog.String("candidate_id", job.CandidateID),
			slog.String("error", err.Error()))
	}
	p.notify(ctx, domain.WebhookEvent{
		JobID:    job.ID,
		TenantID: job.TenantID,
		Status:   domain.WebhookFailed,
		Phase:    string(domain.WebhookFailed),
		Error:    msg,
		Result:   &domain.WebhookResult{CandidateID: job.CandidateID},
	})
	p.enqueueEmail(ctx, job, domain.EmailKindAnalysisFailed)
	observability.FailJob(jobType)
}

// transition advances the job state machine and mirrors the write onto
// the in-memory row.
func (p *Pipeline) transition(ctx domain.Context, job *domain.ProcessingJob, status domain.JobStatus) error {
	if err := p.jobs.UpdateStatus(ctx, job.ID, status, nil, nil); err != nil {
		return fmt.Errorf("op=pipeline.transition: %w", err)
	}
	job.Status = status
	return nil
}

// notify emits one phase webhook. Delivery problems are the emitter's
// concern (it records undeliverable events for replay); a job never fails
// over a webhook.
func (p *Pipeline) notify(ctx domain.Context, event domain.WebhookEvent) {
	if p.webhooks == nil {
		return
	}
	if err := p.webhooks.Emit(ctx, event); err != nil {
		slog.Error("webhook emit failed",
			slog.String("job_id", event.JobID),
			slog.String("status", string(event.Status)),
			slog.String("error", err.Error()))
	}
}

// enqueueEmail records an outbound notification row for the external
// mailer. Best effort.
func (p *Pipeline) enqueueEmail(ctx domain.Context, job *domain.ProcessingJob, kind string) {
	if p.emails == nil {
		return
	}
	tenant, err := p.tenants.Get(ctx, job.TenantID)
	if err != nil {
		slog.Warn("email notification skipped, tenant lookup failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()))
		return
	}
	subject := fmt.Sprintf("Analysis completed: %s", job.FileName)
	body := fmt.Sprintf("The resume %q finished processing and is ready for review.", job.FileName)
	if kind == domain.EmailKindAnalysisFailed {
		subject = fmt.Sprintf("Analysis failed: %s", job.FileName)
		body = fmt.Sprintf("The resume %q could not be processed.", job.FileName)
	}
	if _, err := p.emails.Enqueue(ctx, domain.EmailNotification{
		TenantID:    job.TenantID,
		JobID:       job.ID,
		CandidateID: job.CandidateID,
		Kind:        kind,
		Recipient:   tenant.Email,
		Subject:     subject,
		Body:        body,
		Status:      domain.EmailStatusPending,
	}); err != nil {
		slog.Warn("email notification enqueue failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()))
	}
}

// stageFile writes upload bytes to a temp file for readers that want a
// path. The suffix keeps the original extension so content-type inference
// works downstream.
func stageFile(data []byte, fileName string) (string, func(), error) {
	f, err := os.CreateTemp("", "resume-*"+strings.ToLower(filepath.Ext(fileName)))
	if err != nil {
		return "", nil, fmt.Errorf("op=pipeline.stage: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", nil, fmt.Errorf("op=pipeline.stage: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", nil, fmt.Errorf("op=pipeline.stage: %w", err)
	}
	return f.Name(), func() { _ = os.Remove(f.Name()) }, nil
}

// isFatal reports whether an error ends the job now. Everything else is
// presumed transient and retried up to the attempt limit.
func isFatal(err error) bool {
	for _, sentinel := range []error{
		domain.ErrEncryptedFile,
		domain.ErrUnsupportedFormat,
		domain.ErrTooManyPages,
		domain.ErrParseFailed,
		domain.ErrTextTooShort,
		domain.ErrNotAResume,
		domain.ErrMultiplePersons,
		domain.ErrAnalysisFailed,
		domain.ErrCryptoFailure,
		domain.ErrFileValidation,
		domain.ErrCanceled,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

var statusOrder = map[domain.JobStatus]int{
	domain.JobQueued:     0,
	domain.JobParsing:    1,
	domain.JobParsed:     2,
	domain.JobAnalyzing:  3,
	domain.JobAnalyzed:   4,
	domain.JobPersisting: 5,
	domain.JobCompleted:  6,
	domain.JobFailed:     6,
}

func statusRank(s domain.JobStatus) int {
	return statusOrder[s]
}

func observeStage(stage string, start time.Time) {
	observability.PipelineStageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
