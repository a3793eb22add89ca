package domain

import "time"

// CandidateStatus tracks the lifecycle of the extracted record.
type CandidateStatus string

const (
	CandidateProcessing CandidateStatus = "processing"
	CandidateCompleted  CandidateStatus = "completed"
	CandidateFailed     CandidateStatus = "failed"
)

// RiskLevel grades how much human attention a record needs.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Career is one employment entry. Dates are canonical YYYY-MM strings;
// EndDate empty means current.
type Career struct {
	Company     string `json:"company"`
	Position    string `json:"position"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date,omitempty"`
	Description string `json:"description,omitempty"`
}

// Education is one school entry.
type Education struct {
	School    string `json:"school"`
	Degree    string `json:"degree,omitempty"`
	Major     string `json:"major,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// Project is one portfolio entry.
type Project struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Skills      []string `json:"skills,omitempty"`
	URL         string   `json:"url,omitempty"`
}

// Warning types attached to candidates during analysis.
const (
	WarningDisagreement    = "disagreement"
	WarningLowConfidence   = "low_confidence"
	WarningEmbeddingFailed = "embedding_failed"
	WarningSingleProvider  = "single_provider"
	WarningGapUnfilled     = "gap_unfilled"
)

// Warning records an analysis anomaly on the candidate.
type Warning struct {
	Type       string   `json:"type"`
	Field      string   `json:"field,omitempty"`
	Message    string   `json:"message,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
}

// Candidate is the structured extracted representation of one person.
// RootID names the version chain and equals ID for first versions.
//
// Invariants: exactly one row per (tenant, version chain) has
// IsLatest=true; ConfidenceScore is the minimum FieldConfidence over
// required fields; encrypted and hash columns are produced together or
// both empty; plaintext PII never persists.
type Candidate struct {
	ID               string
	TenantID         string
	Version          int
	RootID           string
	ParentID         *string
	IsLatest         bool
	Status           CandidateStatus
	Name             string
	LastPosition     string
	LastCompany      string
	ExpYears         float64
	Skills           []string
	Careers          []Career
	Education        []Education
	Projects         []Project
	Summary          string
	ConfidenceScore  float64
	FieldConfidence  map[string]float64
	RiskLevel        RiskLevel
	RequiresReview   bool
	Warnings         []Warning
	PhoneEncrypted   []byte
	EmailEncrypted   []byte
	AddressEncrypted []byte
	PhoneHash        string
	EmailHash        string
	PhoneMasked      string
	EmailMasked      string
	AddressMasked    string
	Embedding        []float32
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// QuickProfile is the minimal subset surfaced right after parsing (name,
// phone, email, last company, last position) for progressive rendering.
type QuickProfile struct {
	Name         string `json:"name,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Email        string `json:"email,omitempty"`
	LastCompany  string `json:"last_company,omitempty"`
	LastPosition string `json:"last_position,omitempty"`
}

// RequiredFields are the extraction fields whose confidence floors the
// overall score.
var RequiredFields = []string{"name", "last_position", "last_company", "exp_years", "skills"}
