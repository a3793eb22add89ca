package ai

import (
	"fmt"
	"strings"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/ai/tokencount"
)

// promptTokenBudget caps the resume-text share of a prompt so the smallest
// configured model context still fits the scaffolding plus completion.
const promptTokenBudget = 12000

// ExtractionSystemPrompt instructs a model to emit the structured resume
// record. Every provider in a cross-check run receives the same prompt.
const ExtractionSystemPrompt = `You are a resume parser. Extract structured data from the resume text.
The resume may be written in Korean, English, or a mix of both.

Respond with ONLY a valid JSON object, no prose, no markdown fences, using exactly this schema:
{
  "name": "candidate full name",
  "phone": "phone number as written, or empty string",
  "email": "email address, or empty string",
  "address": "postal address, or empty string",
  "last_position": "most recent job title",
  "last_company": "most recent employer",
  "exp_years": 0.0,
  "skills": ["skill", ...],
  "careers": [{"company": "", "position": "", "start_date": "YYYY-MM", "end_date": "YYYY-MM or empty if current", "description": ""}],
  "education": [{"school": "", "degree": "", "major": "", "start_date": "YYYY-MM", "end_date": "YYYY-MM"}],
  "projects": [{"name": "", "description": "", "skills": [], "url": ""}],
  "summary": "two or three sentence professional summary"
}

Rules:
- exp_years is total professional experience in years, fractional allowed.
- Order careers most recent first; last_position and last_company come from the first entry.
- Use empty strings and empty arrays for anything absent. Never invent data.
- Dates must be YYYY-MM; when only a year is given use YYYY-01.`

// ClassifierSystemPrompt asks whether the document is a resume at all.
const ClassifierSystemPrompt = `You classify documents for a resume processing system.
Respond with ONLY valid JSON: {"document_type": "...", "confidence": 0.0}
document_type is one of: resume, cover_letter, portfolio, job_posting, academic_paper, other.
confidence is your certainty in the classification, between 0 and 1.`

// IdentitySystemPrompt asks how many distinct people the document describes.
const IdentitySystemPrompt = `You check documents for a resume processing system.
Count how many distinct persons the document describes as its subject.
References, recommenders and colleagues mentioned in passing do not count.
Respond with ONLY valid JSON: {"person_count": 1, "primary_name": "name of the main subject"}`

// GapFillSystemPrompt targets a follow-up pass at specific missing fields.
const GapFillSystemPrompt = `You are a resume parser doing a focused second pass.
You will be given resume text and a list of field names that a first pass left empty.
Respond with ONLY a valid JSON object containing just those fields, extracted from the text.
Use the same value formats as the full schema (dates YYYY-MM, exp_years numeric).
If the text genuinely does not contain a field, set it to an empty string (or 0 for exp_years).`

// BuildExtractionUserPrompt wraps resume text for the extraction call,
// truncating to the prompt token budget.
func BuildExtractionUserPrompt(resumeText string) string {
	return "Extract the structured record from this resume:\n\n" + truncate(resumeText)
}

// BuildClassifierUserPrompt wraps document text for the classifier call. The
// classifier needs far less context than extraction.
func BuildClassifierUserPrompt(text string) string {
	return "Classify this document:\n\n" + tokencount.Truncate(text, 2000)
}

// BuildIdentityUserPrompt wraps document text for the identity check.
func BuildIdentityUserPrompt(text string) string {
	return "How many distinct persons does this document describe?\n\n" + truncate(text)
}

// BuildGapFillUserPrompt names the missing fields and repeats the text.
func BuildGapFillUserPrompt(resumeText string, missing []string) string {
	return fmt.Sprintf("Missing fields: %s\n\nResume text:\n\n%s",
		strings.Join(missing, ", "), truncate(resumeText))
}

// BuildRepairUserPrompt re-prompts after a schema validation failure with the
// validation error appended, per the single-retry repair policy.
func BuildRepairUserPrompt(userPrompt, validationErr string) string {
	return userPrompt + fmt.Sprintf(
		"\n\nYour previous response failed validation: %s\nReturn ONLY the corrected JSON object.",
		validationErr)
}

func truncate(text string) string {
	return tokencount.Truncate(text, promptTokenBudget)
}
