package usecase

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// StatusView is the poll answer for one job. Result fields appear only
// when the job completed.
type StatusView struct {
	JobID           string   `json:"job_id"`
	Status          string   `json:"status"`
	Phase           string   `json:"phase,omitempty"`
	CandidateID     string   `json:"candidate_id"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
	RequiresReview  *bool    `json:"requires_review,omitempty"`
	ErrorCode       string   `json:"error_code,omitempty"`
	ErrorMessage    string   `json:"error_message,omitempty"`
}

// StatusService answers job polls and owns the user-facing retry and
// cancel transitions.
type StatusService struct {
	Jobs       domain.JobRepository
	Candidates domain.CandidateRepository
	Queue      domain.Queue
}

// NewStatusService constructs a StatusService.
func NewStatusService(jobs domain.JobRepository, candidates domain.CandidateRepository, queue domain.Queue) StatusService {
	return StatusService{Jobs: jobs, Candidates: candidates, Queue: queue}
}

// phaseOf maps an in-flight status onto the progressive phase readers
// render. Terminal states carry no phase.
func phaseOf(s domain.JobStatus) string {
	switch s {
	case domain.JobParsing, domain.JobQueued:
		return ""
	case domain.JobParsed, domain.JobAnalyzing:
		return "parsed"
	case domain.JobAnalyzed, domain.JobPersisting:
		return "analyzed"
	default:
		return ""
	}
}

// Status returns the current state of a job owned by the tenant.
func (s StatusService) Status(ctx domain.Context, tenantID, jobID string) (StatusView, error) {
	job, err := s.Jobs.Get(ctx, tenantID, jobID)
	if err != nil {
		return StatusView{}, err
	}
	view := StatusView{
		JobID:       job.ID,
		Status:      string(job.Status),
		Phase:       phaseOf(job.Status),
		CandidateID: job.CandidateID,
	}
	if job.ErrorCode != nil {
		view.ErrorCode = *job.ErrorCode
	}
	if job.ErrorMessage != nil {
		view.ErrorMessage = *job.ErrorMessage
	}
	if job.Status == domain.JobCompleted {
		cand, err := s.Candidates.Get(ctx, tenantID, job.CandidateID)
		if err == nil {
			score := cand.ConfidenceScore
			review := cand.RequiresReview
			view.ConfidenceScore = &score
			view.RequiresReview = &review
		}
	}
	return view, nil
}

// Retry reruns a failed job. The candidate row is reused so a previously
// committed usage transaction is never duplicated; a fresh job row keeps
// the failed run's audit trail intact.
func (s StatusService) Retry(ctx domain.Context, tenantID, jobID string) (SubmitReceipt, error) {
	job, err := s.Jobs.Get(ctx, tenantID, jobID)
	if err != nil {
		return SubmitReceipt{}, err
	}
	if job.Status != domain.JobFailed {
		return SubmitReceipt{}, fmt.Errorf("%w: only failed jobs can be retried (status %s)", domain.ErrConflict, job.Status)
	}

	newJob := domain.ProcessingJob{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		CandidateID:  job.CandidateID,
		FileName:     job.FileName,
		FileType:     job.FileType,
		FileSize:     job.FileSize,
		FilePath:     job.FilePath,
		AnalysisMode: job.AnalysisMode,
		Status:       domain.JobQueued,
	}
	newID, err := s.Jobs.Create(ctx, newJob)
	if err != nil {
		return SubmitReceipt{}, err
	}
	if err := s.Candidates.MarkProcessing(ctx, tenantID, job.CandidateID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.Warn("retry could not reset candidate status",
			slog.String("candidate_id", job.CandidateID),
			slog.Any("error", err))
	}
	payload := domain.ProcessTaskPayload{JobID: newID, TenantID: tenantID, CandidateID: job.CandidateID}
	if _, err := s.Queue.EnqueueProcess(ctx, payload); err != nil {
		code := "INTERNAL"
		msg := "enqueue failed"
		_ = s.Jobs.UpdateStatus(ctx, newID, domain.JobFailed, &code, &msg)
		return SubmitReceipt{}, fmt.Errorf("op=status.retry.enqueue: %w", err)
	}
	slog.Info("failed job retried",
		slog.String("old_job_id", jobID),
		slog.String("job_id", newID),
		slog.String("tenant_id", tenantID))
	return SubmitReceipt{JobID: newID, CandidateID: job.CandidateID}, nil
}

// Cancel voids a queued job. The row settles as failed with CANCELED and
// the worker discards the message on receive; in-flight jobs cannot be
// interrupted mid-stage.
func (s StatusService) Cancel(ctx domain.Context, tenantID, jobID string) error {
	job, err := s.Jobs.Get(ctx, tenantID, jobID)
	if err != nil {
		return err
	}
	if job.Status != domain.JobQueued {
		return fmt.Errorf("%w: only queued jobs can be canceled (status %s)", domain.ErrConflict, job.Status)
	}
	code := domain.ErrorCode(domain.ErrCanceled)
	msg := "canceled by tenant"
	if err := s.Jobs.UpdateStatus(ctx, jobID, domain.JobFailed, &code, &msg); err != nil {
		return err
	}
	if err := s.Candidates.MarkFailed(ctx, tenantID, job.CandidateID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.Warn("cancel could not mark candidate failed",
			slog.String("candidate_id", job.CandidateID),
			slog.Any("error", err))
	}
	return nil
}
