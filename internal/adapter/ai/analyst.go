package ai

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// Completion budgets per call shape. Extraction returns a full record;
// verdicts are a handful of fields.
const (
	extractionMaxTokens = 4096
	gapFillMaxTokens    = 1024
	verdictMaxTokens    = 256
)

// Analyst layers the typed analysis calls on top of a domain.AIClient:
// prompt construction, response parsing, and one repair re-prompt when a
// response fails schema validation. Transport retries and circuit breaking
// stay below in the provider clients and the manager.
type Analyst struct {
	client domain.AIClient
}

// NewAnalyst wraps an AIClient, normally the provider Manager.
func NewAnalyst(client domain.AIClient) *Analyst {
	return &Analyst{client: client}
}

// Available lists configured providers, primary first.
func (a *Analyst) Available() []domain.AIProvider {
	return a.client.Available()
}

// generate runs one call with a single repair retry: when parsing fails with
// a schema error, the model is re-prompted once with the validation error
// appended, and the second verdict is final.
func (a *Analyst) generate(ctx domain.Context, provider domain.AIProvider, systemPrompt, userPrompt string, maxTokens int, parse func(string) error) error {
	raw, err := a.client.GenerateJSON(ctx, provider, systemPrompt, userPrompt, maxTokens)
	if err != nil {
		return err
	}
	perr := parse(raw)
	if perr == nil || !errors.Is(perr, domain.ErrSchemaInvalid) {
		return perr
	}
	slog.Debug("re-prompting after schema failure",
		slog.String("provider", string(provider)),
		slog.String("error", perr.Error()))
	raw, err = a.client.GenerateJSON(ctx, provider, systemPrompt, BuildRepairUserPrompt(userPrompt, perr.Error()), maxTokens)
	if err != nil {
		return err
	}
	return parse(raw)
}

// ExtractProfile asks one provider for the full structured record.
func (a *Analyst) ExtractProfile(ctx domain.Context, provider domain.AIProvider, text string) (domain.ExtractionRecord, error) {
	var rec domain.ExtractionRecord
	err := a.generate(ctx, provider, ExtractionSystemPrompt, BuildExtractionUserPrompt(text), extractionMaxTokens, func(raw string) error {
		var perr error
		rec, perr = ParseExtraction(raw)
		return perr
	})
	if err != nil {
		return domain.ExtractionRecord{}, fmt.Errorf("op=ai.ExtractProfile: %w", err)
	}
	return rec, nil
}

// ClassifyDocument asks the first available provider whether the text is a
// resume, returning the document type and the model's confidence.
func (a *Analyst) ClassifyDocument(ctx domain.Context, text string) (string, float64, error) {
	provider, err := a.firstAvailable()
	if err != nil {
		return "", 0, err
	}
	var c Classification
	err = a.generate(ctx, provider, ClassifierSystemPrompt, BuildClassifierUserPrompt(text), verdictMaxTokens, func(raw string) error {
		var perr error
		c, perr = ParseClassification(raw)
		return perr
	})
	if err != nil {
		return "", 0, fmt.Errorf("op=ai.ClassifyDocument: %w", err)
	}
	return c.DocumentType, c.Confidence, nil
}

// CountPersons asks the first available provider how many distinct persons
// the text describes, returning the count and the primary subject's name.
func (a *Analyst) CountPersons(ctx domain.Context, text string) (int, string, error) {
	provider, err := a.firstAvailable()
	if err != nil {
		return 0, "", err
	}
	var ic IdentityCheck
	err = a.generate(ctx, provider, IdentitySystemPrompt, BuildIdentityUserPrompt(text), verdictMaxTokens, func(raw string) error {
		var perr error
		ic, perr = ParseIdentity(raw)
		return perr
	})
	if err != nil {
		return 0, "", fmt.Errorf("op=ai.CountPersons: %w", err)
	}
	return ic.PersonCount, ic.PrimaryName, nil
}

// FillGaps runs the focused second pass for the named missing fields. The
// returned record carries values only for fields the model recovered; the
// caller merges non-empty values into its working record.
func (a *Analyst) FillGaps(ctx domain.Context, provider domain.AIProvider, text string, missing []string) (domain.ExtractionRecord, error) {
	if len(missing) == 0 {
		return domain.ExtractionRecord{}, nil
	}
	var rec domain.ExtractionRecord
	err := a.generate(ctx, provider, GapFillSystemPrompt, BuildGapFillUserPrompt(text, missing), gapFillMaxTokens, func(raw string) error {
		var perr error
		rec, perr = ParseExtraction(raw)
		return perr
	})
	if err != nil {
		return domain.ExtractionRecord{}, fmt.Errorf("op=ai.FillGaps: %w", err)
	}
	return rec, nil
}

// Embed returns the embedding vector for one text.
func (a *Analyst) Embed(ctx domain.Context, text string) ([]float32, error) {
	return a.client.Embed(ctx, text)
}

func (a *Analyst) firstAvailable() (domain.AIProvider, error) {
	providers := a.client.Available()
	if len(providers) == 0 {
		return "", fmt.Errorf("%w: no providers configured", domain.ErrInvalidArgument)
	}
	return providers[0], nil
}
