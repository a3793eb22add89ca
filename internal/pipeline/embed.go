package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// embeddingDim matches the vector(1536) column candidates persist into.
const embeddingDim = 1536

// embed builds the similarity vector for the candidate. Failure attaches
// a warning instead of failing the job: search degrades, ingestion does
// not.
func (p *Pipeline) embed(ctx domain.Context, job *domain.ProcessingJob, rec domain.ExtractionRecord) ([]float32, *domain.Warning) {
	defer observeStage("embedding", time.Now())

	ectx, cancel := context.WithTimeout(ctx, p.cfg.EmbedTimeout)
	defer cancel()

	vec, err := p.analyst.Embed(ectx, embeddingText(rec))
	if err != nil {
		slog.Warn("embedding failed, continuing without vector",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()))
		return nil, &domain.Warning{
			Type:    domain.WarningEmbeddingFailed,
			Message: err.Error(),
		}
	}
	if len(vec) != embeddingDim {
		// A mis-sized vector would bounce off the column at persist and
		// look transient there; degrade here instead.
		slog.Warn("embedding has wrong dimensionality, continuing without vector",
			slog.String("job_id", job.ID),
			slog.Int("got", len(vec)))
		return nil, &domain.Warning{
			Type:    domain.WarningEmbeddingFailed,
			Message: fmt.Sprintf("embedding dimension %d, want %d", len(vec), embeddingDim),
		}
	}
	return vec, nil
}

// embeddingText serializes the profile for the vector model. The privacy
// stage has already cleared the contact fields, and name stays out too:
// identity does not belong in the similarity space.
func embeddingText(rec domain.ExtractionRecord) string {
	var b strings.Builder
	add := func(s string) {
		if s != "" {
			b.WriteString(s)
			b.WriteByte('\n')
		}
	}
	add(rec.LastPosition)
	add(rec.LastCompany)
	if rec.ExpYears > 0 {
		add(fmt.Sprintf("%.1f years experience", rec.ExpYears))
	}
	add(strings.Join(rec.Skills, ", "))
	add(rec.Summary)
	for _, c := range rec.Careers {
		add(strings.TrimSpace(c.Company + " " + c.Position))
	}
	return strings.TrimSpace(b.String())
}
