package domain

import "time"

// AIProvider identifies one configured model backend.
type AIProvider string

const (
	ProviderPrimary   AIProvider = "primary"
	ProviderSecondary AIProvider = "secondary"
	ProviderTertiary  AIProvider = "tertiary"
)

// ExtractionRecord is the raw structured output of one model run,
// pre-privacy: PII fields are still plaintext here and must never reach
// a repository.
type ExtractionRecord struct {
	Name         string      `json:"name"`
	Phone        string      `json:"phone"`
	Email        string      `json:"email"`
	Address      string      `json:"address"`
	LastPosition string      `json:"last_position"`
	LastCompany  string      `json:"last_company"`
	ExpYears     float64     `json:"exp_years"`
	Skills       []string    `json:"skills"`
	Careers      []Career    `json:"careers"`
	Education    []Education `json:"education"`
	Projects     []Project   `json:"projects"`
	Summary      string      `json:"summary"`
}

// ExtractionOutput pairs one model's record with its provider.
type ExtractionOutput struct {
	Provider AIProvider
	Record   ExtractionRecord
}

// ReconciledResult is what the cross-check produces: the accepted record
// plus per-field confidence and any disagreement warnings.
type ReconciledResult struct {
	Record          ExtractionRecord
	FieldConfidence map[string]float64
	Warnings        []Warning
}

// AIClient (port)
// GenerateJSON returns raw JSON conforming to the extraction schema for
// the named provider; Embed returns the embedding vector for one text.
type AIClient interface {
	GenerateJSON(ctx Context, provider AIProvider, systemPrompt, userPrompt string, maxTokens int) (string, error)
	Embed(ctx Context, text string) ([]float32, error)
	// Available lists providers with configured credentials, primary
	// first.
	Available() []AIProvider
}

// WebhookStatus is the progressive phase carried by webhook events.
type WebhookStatus string

const (
	WebhookParsed    WebhookStatus = "parsed"
	WebhookAnalyzed  WebhookStatus = "analyzed"
	WebhookCompleted WebhookStatus = "completed"
	WebhookFailed    WebhookStatus = "failed"
)

// WebhookResult is the optional result block on an event.
type WebhookResult struct {
	CandidateID      string        `json:"candidate_id"`
	ConfidenceScore  *float64      `json:"confidence_score,omitempty"`
	ChunkCount       *int          `json:"chunk_count,omitempty"`
	PIICount         *int          `json:"pii_count,omitempty"`
	ProcessingTimeMS *int64        `json:"processing_time_ms,omitempty"`
	QuickData        *QuickProfile `json:"quick_data,omitempty"`
}

// WebhookEvent is one signed notification POSTed to the configured
// receiver. Receivers are idempotent on (job_id, status); for any job the
// emitted statuses form a prefix of parsed, analyzed, completed or end
// in failed. TenantID routes delivery to a tenant-specific receiver when
// one is registered; it never appears on the wire.
type WebhookEvent struct {
	JobID    string         `json:"job_id"`
	TenantID string         `json:"-"`
	Status   WebhookStatus  `json:"status"`
	Phase    string         `json:"phase,omitempty"`
	Result   *WebhookResult `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// WebhookEmitter (port)
// Emit delivers one event, retrying transient receiver failures and
// recording exhausted deliveries for replay.
type WebhookEmitter interface {
	Emit(ctx Context, event WebhookEvent) error
}

// SynonymSource (port)
// Snapshot returns the variant -> canonical skill map used by
// normalization; implementations refresh in the background.
type SynonymSource interface {
	Snapshot(ctx Context) (map[string]string, error)
}

// Clock abstracts time for billing-cycle arithmetic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock.
type RealClock struct{}

// Now returns the current UTC time.
func (RealClock) Now() time.Time { return time.Now().UTC() }
