// Package usecase contains application business logic services.
package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// SubmitInput carries one upload submission. Exactly one of Content
// (inline multipart) or StoragePath (presigned flow) is set; for the
// presigned flow DeclaredSize is the client-declared byte count, checked
// against the object.
type SubmitInput struct {
	TenantID       string
	FileName       string
	Content        []byte
	StoragePath    string
	DeclaredSize   int64
	AnalysisMode   domain.AnalysisMode
	IdempotencyKey string
}

// SubmitReceipt is the synchronous answer to a submission.
type SubmitReceipt struct {
	JobID       string `json:"job_id"`
	CandidateID string `json:"candidate_id"`
}

// SubmitService owns the submission contract: credit gate, idempotency,
// file gate, atomic job+placeholder insert, enqueue. Credits are not
// debited here; the pipeline commits usage on success.
type SubmitService struct {
	Jobs    domain.JobRepository
	Credits domain.CreditLedger
	Store   domain.ObjectStore
	Queue   domain.Queue

	MaxFileSize   int64
	PresignExpiry time.Duration
}

// NewSubmitService constructs a SubmitService with its dependencies.
func NewSubmitService(jobs domain.JobRepository, credits domain.CreditLedger, store domain.ObjectStore, queue domain.Queue, maxFileSize int64, presignExpiry time.Duration) SubmitService {
	if maxFileSize <= 0 {
		maxFileSize = 50 << 20
	}
	if presignExpiry <= 0 {
		presignExpiry = 15 * time.Minute
	}
	return SubmitService{Jobs: jobs, Credits: credits, Store: store, Queue: queue, MaxFileSize: maxFileSize, PresignExpiry: presignExpiry}
}

// Submit validates the upload, creates the job with its placeholder
// candidate, and enqueues the pipeline run. An idempotency key that
// matches an existing job for the same file returns that job's
// identifiers unchanged.
func (s SubmitService) Submit(ctx domain.Context, in SubmitInput) (SubmitReceipt, error) {
	if in.TenantID == "" {
		return SubmitReceipt{}, fmt.Errorf("%w: tenant id required", domain.ErrInvalidArgument)
	}
	if in.FileName == "" {
		return SubmitReceipt{}, fmt.Errorf("%w: file name required", domain.ErrInvalidArgument)
	}
	mode := in.AnalysisMode
	if mode == "" {
		mode = domain.ModePhase1
	}
	if mode != domain.ModePhase1 && mode != domain.ModePhase2 {
		return SubmitReceipt{}, fmt.Errorf("%w: unknown analysis mode %q", domain.ErrInvalidArgument, in.AnalysisMode)
	}

	size := in.DeclaredSize
	if in.Content != nil {
		size = int64(len(in.Content))
	}

	if in.IdempotencyKey != "" {
		j, err := s.Jobs.FindByIdempotencyKey(ctx, in.TenantID, in.IdempotencyKey)
		switch {
		case err == nil:
			if j.FileName != in.FileName || j.FileSize != size {
				return SubmitReceipt{}, fmt.Errorf("%w: idempotency key reused with a different file", domain.ErrConflict)
			}
			slog.Info("idempotent submit replay",
				slog.String("job_id", j.ID),
				slog.String("tenant_id", in.TenantID))
			return SubmitReceipt{JobID: j.ID, CandidateID: j.CandidateID}, nil
		case !errors.Is(err, domain.ErrNotFound):
			return SubmitReceipt{}, err
		}
	}

	// Lazy cycle roll; the nightly sweep covers tenants that never poll.
	if _, err := s.Credits.ResetIfDue(ctx, in.TenantID); err != nil {
		slog.Warn("credit reset check failed",
			slog.String("tenant_id", in.TenantID),
			slog.Any("error", err))
	}
	remaining, err := s.Credits.Remaining(ctx, in.TenantID)
	if err != nil {
		return SubmitReceipt{}, err
	}
	if remaining <= 0 {
		return SubmitReceipt{}, fmt.Errorf("%w: %d remaining", domain.ErrInsufficientCredits, remaining)
	}

	content := in.Content
	if content == nil {
		if in.StoragePath == "" {
			return SubmitReceipt{}, fmt.Errorf("%w: file content or storage path required", domain.ErrInvalidArgument)
		}
		if !strings.HasPrefix(in.StoragePath, "uploads/"+in.TenantID+"/") {
			return SubmitReceipt{}, fmt.Errorf("%w: storage path outside tenant prefix", domain.ErrFileValidation)
		}
		content, err = s.Store.Get(ctx, in.StoragePath)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return SubmitReceipt{}, fmt.Errorf("%w: no object at storage path", domain.ErrFileValidation)
			}
			return SubmitReceipt{}, err
		}
		size = int64(len(content))
	}

	fileType, err := CheckFile(in.FileName, size, s.MaxFileSize, content)
	if err != nil {
		return SubmitReceipt{}, err
	}

	jobID := uuid.New().String()
	candidateID := uuid.New().String()
	path := in.StoragePath
	if path == "" {
		path = domain.UploadKey(in.TenantID, jobID, fileType)
		if err := s.Store.Put(ctx, path, content, sniffedContentType(content)); err != nil {
			return SubmitReceipt{}, err
		}
	}

	job := domain.ProcessingJob{
		ID:           jobID,
		TenantID:     in.TenantID,
		FileName:     in.FileName,
		FileType:     fileType,
		FileSize:     size,
		FilePath:     path,
		AnalysisMode: mode,
		Status:       domain.JobQueued,
	}
	if in.IdempotencyKey != "" {
		job.IdempotencyKey = &in.IdempotencyKey
	}
	placeholder := domain.Candidate{ID: candidateID, TenantID: in.TenantID, Name: in.FileName}
	jobID, candidateID, err = s.Jobs.CreateWithCandidate(ctx, job, placeholder)
	if err != nil {
		return SubmitReceipt{}, err
	}

	payload := domain.ProcessTaskPayload{JobID: jobID, TenantID: in.TenantID, CandidateID: candidateID}
	if _, err := s.Queue.EnqueueProcess(ctx, payload); err != nil {
		code := "INTERNAL"
		msg := "enqueue failed"
		_ = s.Jobs.UpdateStatus(ctx, jobID, domain.JobFailed, &code, &msg)
		return SubmitReceipt{}, fmt.Errorf("op=submit.enqueue: %w", err)
	}
	slog.Info("job submitted",
		slog.String("job_id", jobID),
		slog.String("tenant_id", in.TenantID),
		slog.String("file_type", fileType),
		slog.String("mode", string(mode)))
	return SubmitReceipt{JobID: jobID, CandidateID: candidateID}, nil
}

// PresignGrant is the answer to a presign request: where to PUT and the
// storage path to echo back on submit.
type PresignGrant struct {
	StoragePath string        `json:"storage_path"`
	URL         string        `json:"url"`
	ExpiresIn   time.Duration `json:"-"`
}

// Presign issues a time-limited PUT URL for the JSON submit variant. The
// upload gets its own object id; the job created later records this
// path, so the full file gate still runs at submit time.
func (s SubmitService) Presign(ctx domain.Context, tenantID, fileName string) (PresignGrant, error) {
	if tenantID == "" {
		return PresignGrant{}, fmt.Errorf("%w: tenant id required", domain.ErrInvalidArgument)
	}
	fileType, err := fileTypeFromName(fileName)
	if err != nil {
		return PresignGrant{}, err
	}
	path := domain.UploadKey(tenantID, uuid.New().String(), fileType)
	url, err := s.Store.PresignPut(ctx, path, extContentType(fileType), s.PresignExpiry)
	if err != nil {
		return PresignGrant{}, err
	}
	return PresignGrant{StoragePath: path, URL: url, ExpiresIn: s.PresignExpiry}, nil
}
