package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// ResponseCleaner strips the wrapping noise models put around JSON payloads:
// markdown fences, prose preambles, trailing commas.
type ResponseCleaner struct{}

// NewResponseCleaner creates a new response cleaner.
func NewResponseCleaner() *ResponseCleaner {
	return &ResponseCleaner{}
}

var trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)

// CleanJSONResponse returns the best-effort JSON object embedded in a model
// response.
func (rc *ResponseCleaner) CleanJSONResponse(response string) string {
	response = rc.removeMarkdownBlocks(response)
	response = rc.extractJSON(response)
	if !rc.IsValidJSON(response) {
		response = trailingCommaRe.ReplaceAllString(response, "$1")
	}
	return response
}

// removeMarkdownBlocks removes markdown code fences from the response.
func (rc *ResponseCleaner) removeMarkdownBlocks(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}

// extractJSON extracts the first balanced JSON object from mixed content.
// Braces inside string literals do not count; extracted field values carry
// free text that may contain them.
func (rc *ResponseCleaner) extractJSON(response string) string {
	start := strings.Index(response, "{")
	if start == -1 {
		return response
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(response); i++ {
		c := response[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return response[start : i+1]
			}
		}
	}
	return response
}

// IsValidJSON checks if a string is valid JSON.
func (rc *ResponseCleaner) IsValidJSON(response string) bool {
	var tmp any
	return json.Unmarshal([]byte(response), &tmp) == nil
}

// refusalIndicators flag conversational refusals in place of a payload.
var refusalIndicators = []string{
	"i'm sorry", "i cannot", "i can't", "i'm unable", "i apologize",
	"unfortunately", "i'm afraid", "i don't have access",
	"against my guidelines", "as an ai",
}

// IsRefusal reports whether a response is the model declining to produce the
// requested payload rather than malformed JSON. Valid JSON is never treated
// as a refusal, whatever the field values contain.
func IsRefusal(response string) bool {
	cleaned := NewResponseCleaner().CleanJSONResponse(response)
	if strings.HasPrefix(strings.TrimSpace(cleaned), "{") && NewResponseCleaner().IsValidJSON(cleaned) {
		return false
	}
	lower := strings.ToLower(response)
	for _, indicator := range refusalIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// ParseExtraction cleans a raw model response and decodes it into an
// ExtractionRecord. All failures wrap domain.ErrSchemaInvalid so the caller
// can re-prompt once with the error text appended.
func ParseExtraction(raw string) (domain.ExtractionRecord, error) {
	var rec domain.ExtractionRecord
	if strings.TrimSpace(raw) == "" {
		return rec, fmt.Errorf("%w: empty response", domain.ErrSchemaInvalid)
	}
	if IsRefusal(raw) {
		return rec, fmt.Errorf("%w: model refused: %s", domain.ErrSchemaInvalid, snippet(raw, 160))
	}
	cleaned := NewResponseCleaner().CleanJSONResponse(raw)
	if err := json.Unmarshal([]byte(cleaned), &rec); err != nil {
		return rec, fmt.Errorf("%w: %v", domain.ErrSchemaInvalid, err)
	}
	if err := validateExtraction(&rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func validateExtraction(rec *domain.ExtractionRecord) error {
	if rec.ExpYears < 0 || rec.ExpYears > 70 {
		return fmt.Errorf("%w: exp_years %.1f out of range [0,70]", domain.ErrSchemaInvalid, rec.ExpYears)
	}
	skills := rec.Skills[:0]
	for _, s := range rec.Skills {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}
	rec.Skills = skills
	for i, c := range rec.Careers {
		if strings.TrimSpace(c.Company) == "" && strings.TrimSpace(c.Position) == "" {
			return fmt.Errorf("%w: careers[%d] has neither company nor position", domain.ErrSchemaInvalid, i)
		}
	}
	return nil
}

// Classification is the document classifier verdict.
type Classification struct {
	DocumentType string  `json:"document_type"`
	Confidence   float64 `json:"confidence"`
}

// ParseClassification decodes the classifier stage response.
func ParseClassification(raw string) (Classification, error) {
	var c Classification
	cleaned := NewResponseCleaner().CleanJSONResponse(raw)
	if err := json.Unmarshal([]byte(cleaned), &c); err != nil {
		return c, fmt.Errorf("%w: %v", domain.ErrSchemaInvalid, err)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return c, fmt.Errorf("%w: classifier confidence %.2f out of range [0,1]", domain.ErrSchemaInvalid, c.Confidence)
	}
	return c, nil
}

// IdentityCheck is the identity checker verdict.
type IdentityCheck struct {
	PersonCount int    `json:"person_count"`
	PrimaryName string `json:"primary_name"`
}

// ParseIdentity decodes the identity checker stage response.
func ParseIdentity(raw string) (IdentityCheck, error) {
	var ic IdentityCheck
	cleaned := NewResponseCleaner().CleanJSONResponse(raw)
	if err := json.Unmarshal([]byte(cleaned), &ic); err != nil {
		return ic, fmt.Errorf("%w: %v", domain.ErrSchemaInvalid, err)
	}
	if ic.PersonCount < 0 {
		return ic, fmt.Errorf("%w: person_count %d negative", domain.ErrSchemaInvalid, ic.PersonCount)
	}
	return ic, nil
}

func snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return s[:n]
	}
	return s
}
