package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrRateLimited         = errors.New("rate limited")
	ErrCircuitOpen         = errors.New("circuit open")
	ErrUpstreamTimeout     = errors.New("upstream timeout")
	ErrUpstreamRateLimit   = errors.New("upstream rate limit")
	ErrSchemaInvalid       = errors.New("schema invalid")
	ErrInternal            = errors.New("internal error")
)

// Pipeline failure sentinels. Each maps to a stable error_code on the job
// row via ErrorCode.
var (
	ErrFileValidation    = errors.New("file validation failed")
	ErrEncryptedFile     = errors.New("file is encrypted or DRM protected")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrTooManyPages      = errors.New("too many pages")
	ErrParseFailed       = errors.New("parse failed")
	ErrTextTooShort      = errors.New("extracted text too short")
	ErrNotAResume        = errors.New("document is not a resume")
	ErrMultiplePersons   = errors.New("document contains multiple persons")
	ErrAnalysisFailed    = errors.New("analysis failed")
	ErrCryptoFailure     = errors.New("crypto failure")
	ErrEmbeddingFailed   = errors.New("embedding failed")
	ErrPersistFailed     = errors.New("persist failed")
	ErrCanceled          = errors.New("job canceled")
)

// ErrorCode returns the stable machine-readable code persisted on failed
// jobs and surfaced by the status endpoint.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrEncryptedFile):
		return "ENCRYPTED"
	case errors.Is(err, ErrUnsupportedFormat):
		return "UNSUPPORTED_FORMAT"
	case errors.Is(err, ErrTooManyPages):
		return "TOO_MANY_PAGES"
	case errors.Is(err, ErrParseFailed):
		return "PARSE_FAILED"
	case errors.Is(err, ErrTextTooShort):
		return "TEXT_TOO_SHORT"
	case errors.Is(err, ErrNotAResume):
		return "NOT_A_RESUME"
	case errors.Is(err, ErrMultiplePersons):
		return "MULTIPLE_PERSONS"
	case errors.Is(err, ErrCircuitOpen):
		return "CIRCUIT_OPEN"
	case errors.Is(err, ErrUpstreamTimeout):
		return "UPSTREAM_TIMEOUT"
	case errors.Is(err, ErrUpstreamRateLimit):
		return "UPSTREAM_RATE_LIMIT"
	case errors.Is(err, ErrSchemaInvalid):
		return "SCHEMA_INVALID"
	case errors.Is(err, ErrAnalysisFailed):
		return "ANALYSIS_FAILED"
	case errors.Is(err, ErrCryptoFailure):
		return "CRYPTO_FAILURE"
	case errors.Is(err, ErrEmbeddingFailed):
		return "EMBEDDING_FAILED"
	case errors.Is(err, ErrPersistFailed):
		return "PERSIST_FAILED"
	case errors.Is(err, ErrCanceled):
		return "CANCELED"
	case errors.Is(err, ErrFileValidation):
		return "FILE_VALIDATION"
	case errors.Is(err, ErrInsufficientCredits):
		return "INSUFFICIENT_CREDITS"
	default:
		return "INTERNAL"
	}
}

// Plan enumerates billing tiers.
type Plan string

const (
	PlanStarter    Plan = "starter"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// BaseCredits returns the monthly credit allowance for a plan.
func (p Plan) BaseCredits() int {
	switch p {
	case PlanPro:
		return 500
	case PlanEnterprise:
		return 2000
	default:
		return 50
	}
}

// OverageEligible reports whether the plan may consume credits beyond the
// monthly allowance.
func (p Plan) OverageEligible() bool { return p == PlanPro || p == PlanEnterprise }

// Tenant is the billing and isolation principal (one recruiter account).
// Credits reset when now >= BillingCycleStart + 1 month.
//
//go:generate mockery --name=TenantRepository --filename=tenant_repository_mock.go
//go:generate mockery --name=JobRepository --filename=job_repository_mock.go
//go:generate mockery --name=CandidateRepository --filename=candidate_repository_mock.go
//go:generate mockery --name=CreditLedger --filename=credit_ledger_mock.go
//go:generate mockery --name=WebhookFailureRepository --filename=webhook_failure_repository_mock.go
//go:generate mockery --name=SynonymRepository --filename=synonym_repository_mock.go
//go:generate mockery --name=EmailNotificationRepository --filename=email_notification_repository_mock.go
//go:generate mockery --name=Queue --filename=queue_mock.go
//go:generate mockery --name=AIClient --filename=aiclient_mock.go
//go:generate mockery --name=ObjectStore --filename=object_store_mock.go
//go:generate mockery --name=TextExtractor --filename=text_extractor_mock.go
//go:generate mockery --name=WebhookEmitter --filename=webhook_emitter_mock.go
type Tenant struct {
	ID                   string
	Name                 string
	Email                string
	Plan                 Plan
	Status               TenantStatus
	BaseCredits          int
	BonusCredits         int
	CreditsUsedThisMonth int
	BillingCycleStart    time.Time
	OverageEnabled       bool
	OverageLimit         int
	OverageUsedThisMonth int
	// WebhookURL overrides the global receiver for this tenant; empty
	// means the configured default.
	WebhookURL string
	SecretHash string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TenantStatus gates whether a tenant may submit work.
type TenantStatus string

const (
	TenantActive    TenantStatus = "active"
	TenantSuspended TenantStatus = "suspended"
)

// ResetDue reports whether the monthly credit counters are due for reset.
func (t Tenant) ResetDue(now time.Time) bool {
	return !now.Before(t.BillingCycleStart.AddDate(0, 1, 0))
}

// Remaining is the spendable credit count for the current cycle.
func (t Tenant) Remaining() int {
	return t.BaseCredits + t.BonusCredits - t.CreditsUsedThisMonth
}

// JobStatus is the processing job state machine. Terminal states are
// completed and failed; no transition leaves a terminal state.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobParsing    JobStatus = "parsing"
	JobParsed     JobStatus = "parsed"
	JobAnalyzing  JobStatus = "analyzing"
	JobAnalyzed   JobStatus = "analyzed"
	JobPersisting JobStatus = "persisting"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool { return s == JobCompleted || s == JobFailed }

// AnalysisMode selects the cross-check depth.
type AnalysisMode string

const (
	// ModePhase1 runs the primary provider only.
	ModePhase1 AnalysisMode = "phase_1"
	// ModePhase2 runs primary plus secondary (plus tertiary when
	// configured) and reconciles the outputs.
	ModePhase2 AnalysisMode = "phase_2"
)

// FileType enumerates accepted upload formats.
const (
	FileTypePDF  = "pdf"
	FileTypeDOCX = "docx"
	FileTypeDOC  = "doc"
	FileTypeHWP  = "hwp"
	FileTypeHWPX = "hwpx"
)

// ProcessingJob tracks one ingestion run. Owned by at most one worker at
// a time via queue visibility; CandidateID is fixed at submission.
type ProcessingJob struct {
	ID             string
	TenantID       string
	CandidateID    string
	FileName       string
	FileType       string
	FileSize       int64
	FilePath       string
	AnalysisMode   AnalysisMode
	Status         JobStatus
	AttemptCount   int
	ErrorCode      *string
	ErrorMessage   *string
	IdempotencyKey *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreditTransaction is one append-only ledger row. BalanceAfter equals
// the signed sum of all prior rows for the tenant. Usage rows are unique
// per candidate.
type CreditTransaction struct {
	ID           string
	TenantID     string
	Type         CreditTxType
	Amount       int
	BalanceAfter int
	CandidateID  *string
	JobID        *string
	Description  string
	CreatedAt    time.Time
}

// CreditTxType enumerates ledger entry kinds.
type CreditTxType string

const (
	CreditTxSubscription CreditTxType = "subscription"
	CreditTxUsage        CreditTxType = "usage"
	CreditTxOverage      CreditTxType = "overage"
	CreditTxRefund       CreditTxType = "refund"
	CreditTxAdjustment   CreditTxType = "adjustment"
)

// WebhookFailure retains an undeliverable webhook payload for replay.
type WebhookFailure struct {
	ID          string
	JobID       string
	Payload     []byte
	Status      string
	Error       string
	RetryCount  int
	NextRetryAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Webhook failure statuses.
const (
	WebhookFailurePending   = "pending"
	WebhookFailureDelivered = "delivered"
	WebhookFailureAbandoned = "abandoned"
)

// SkillSynonym maps a variant spelling onto its canonical skill.
type SkillSynonym struct {
	Canonical string
	Variant   string
}

// EmailNotification is a pending outbound mail row drained by an
// external mailer.
type EmailNotification struct {
	ID          string
	TenantID    string
	JobID       string
	CandidateID string
	Kind        string
	Recipient   string
	Subject     string
	Body        string
	Status      string
	CreatedAt   time.Time
}

// Email notification kinds and statuses.
const (
	EmailKindAnalysisCompleted = "analysis_completed"
	EmailKindAnalysisFailed    = "analysis_failed"
	EmailStatusPending         = "pending"
	EmailStatusSent            = "sent"
)

// ProcessTaskPayload is the queue message body for one pipeline run.
// The file itself stays in the object store; the worker re-reads the job
// row on every delivery.
type ProcessTaskPayload struct {
	JobID       string `json:"job_id"`
	TenantID    string `json:"tenant_id"`
	CandidateID string `json:"candidate_id"`
}

// Repositories (ports)

type TenantRepository interface {
	Create(ctx Context, t Tenant) (string, error)
	Get(ctx Context, id string) (Tenant, error)
	GetByEmail(ctx Context, email string) (Tenant, error)
}

type JobRepository interface {
	// CreateWithCandidate inserts the job and its placeholder candidate
	// atomically and returns both ids.
	CreateWithCandidate(ctx Context, j ProcessingJob, c Candidate) (string, string, error)
	// Create inserts a job bound to an existing candidate (retry path).
	Create(ctx Context, j ProcessingJob) (string, error)
	Get(ctx Context, tenantID, id string) (ProcessingJob, error)
	// GetAny loads a job without a tenant guard; worker-side only, the
	// payload's tenant id is re-checked against the row.
	GetAny(ctx Context, id string) (ProcessingJob, error)
	// UpdateStatus advances the state machine. Writes to terminal rows
	// are silently dropped (terminal immutability).
	UpdateStatus(ctx Context, id string, status JobStatus, errCode, errMsg *string) error
	IncrementAttempt(ctx Context, id string) (int, error)
	FindByIdempotencyKey(ctx Context, tenantID, key string) (ProcessingJob, error)
	// ListStale returns non-terminal jobs untouched since the cutoff.
	ListStale(ctx Context, cutoff time.Time, limit int) ([]ProcessingJob, error)
	// ListByErrorCode returns failed jobs carrying the given error code,
	// newest first. The operator surface uses it to inspect DLQ'd jobs.
	ListByErrorCode(ctx Context, code string, limit int) ([]ProcessingJob, error)
}

type CandidateRepository interface {
	Get(ctx Context, tenantID, id string) (Candidate, error)
	// UpdateQuick writes the quick-extracted basics onto the placeholder
	// row after parsing so readers can render immediately.
	UpdateQuick(ctx Context, tenantID, id string, q QuickProfile) error
	// Finalize writes the fully analyzed record. Safe to replay: the row
	// content is deterministic for a given job run.
	Finalize(ctx Context, c Candidate) error
	MarkFailed(ctx Context, tenantID, id string) error
	// MarkProcessing returns a failed candidate to the in-flight state
	// when its job is retried.
	MarkProcessing(ctx Context, tenantID, id string) error
	// SearchSimilar returns completed latest candidates nearest to the
	// given candidate's embedding, cosine distance ascending.
	SearchSimilar(ctx Context, tenantID, candidateID string, limit int) ([]Candidate, error)
}

// CreditLedger is the atomic reserve-free credit protocol: usage is
// committed only on success, at most once per candidate.
type CreditLedger interface {
	// Remaining returns the spendable credits for the cycle: the
	// allowance balance floored at zero, plus unused overage headroom
	// when the tenant opted in and the plan allows it. Never negative.
	Remaining(ctx Context, tenantID string) (int, error)
	// CommitUsage debits one credit. Returns nil without writing when a
	// usage row for the candidate already exists, and
	// ErrInsufficientCredits when the locked balance has nothing left
	// to spend.
	CommitUsage(ctx Context, tenantID, jobID, candidateID string) error
	// ResetIfDue rolls the billing cycle forward when a month elapsed.
	ResetIfDue(ctx Context, tenantID string) (bool, error)
	ResetAllDue(ctx Context) (int, error)
	Adjust(ctx Context, tenantID string, amount int, description string) error
	ListTransactions(ctx Context, tenantID string, limit int) ([]CreditTransaction, error)
}

type WebhookFailureRepository interface {
	Record(ctx Context, f WebhookFailure) (string, error)
	ListDue(ctx Context, now time.Time, limit int) ([]WebhookFailure, error)
	MarkDelivered(ctx Context, id string) error
	Bump(ctx Context, id string, errMsg string, nextRetryAt time.Time) error
	// MarkAbandoned retires a row whose replay budget is spent.
	MarkAbandoned(ctx Context, id string) error
	ListPending(ctx Context, limit int) ([]WebhookFailure, error)
}

type SynonymRepository interface {
	UpsertBatch(ctx Context, pairs []SkillSynonym) (int, error)
	All(ctx Context) (map[string]string, error)
}

type EmailNotificationRepository interface {
	Enqueue(ctx Context, n EmailNotification) (string, error)
}

// Queue (port)

type Queue interface {
	EnqueueProcess(ctx Context, payload ProcessTaskPayload) (string, error)
}

// UploadKey builds the canonical object key for a raw upload.
func UploadKey(tenantID, jobID, ext string) string {
	return "uploads/" + tenantID + "/" + jobID + "." + ext
}

// ObjectStore (port)
// Keys follow uploads/{tenant_id}/{job_id}.{ext}; raw uploads are
// immutable once written.
type ObjectStore interface {
	Put(ctx Context, key string, body []byte, contentType string) error
	Get(ctx Context, key string) ([]byte, error)
	Delete(ctx Context, key string) error
	PresignPut(ctx Context, key, contentType string, expiry time.Duration) (string, error)
	Ping(ctx Context) error
}

// TextExtractor (port)
// ExtractPath extracts plain text from a file at path with its original
// filename. Implementations may call external services (e.g., Tika).
type TextExtractor interface {
	ExtractPath(ctx Context, fileName, path string) (string, error)
}

// Context is an alias so the domain does not import std context in every
// signature; adapters and usecases pass context.Context through.
type Context = context.Context
