package httpserver

import (
	"regexp"
	"unicode/utf8"
)

// ValidationError is one field-level request problem.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult aggregates field-level problems.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

var validJobID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateJobID checks the path parameter before it reaches the store.
func ValidateJobID(jobID string) ValidationResult {
	if jobID == "" {
		return ValidationResult{Valid: false, Errors: []ValidationError{
			{Field: "job_id", Code: "REQUIRED", Message: "job id is required"},
		}}
	}
	if len(jobID) > 100 {
		return ValidationResult{Valid: false, Errors: []ValidationError{
			{Field: "job_id", Code: "TOO_LONG", Message: "job id is too long (max 100 characters)"},
		}}
	}
	if !validJobID.MatchString(jobID) {
		return ValidationResult{Valid: false, Errors: []ValidationError{
			{Field: "job_id", Code: "INVALID_FORMAT", Message: "job id contains invalid characters"},
		}}
	}
	return ValidationResult{Valid: true}
}

// ValidateFileName checks the declared upload name; the content gate in
// the usecase layer does the deep checks.
func ValidateFileName(name string) ValidationResult {
	if name == "" {
		return ValidationResult{Valid: false, Errors: []ValidationError{
			{Field: "file_name", Code: "REQUIRED", Message: "file name is required"},
		}}
	}
	if !utf8.ValidString(name) {
		return ValidationResult{Valid: false, Errors: []ValidationError{
			{Field: "file_name", Code: "INVALID_ENCODING", Message: "file name is not valid UTF-8"},
		}}
	}
	if utf8.RuneCountInString(name) > 255 {
		return ValidationResult{Valid: false, Errors: []ValidationError{
			{Field: "file_name", Code: "TOO_LONG", Message: "file name is too long (max 255 characters)"},
		}}
	}
	return ValidationResult{Valid: true}
}
