package pipeline

import (
	"log/slog"
	"time"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// gapFillConfidence grades a field recovered by the focused second pass:
// better than absent, below first-pass consensus.
const gapFillConfidence = 0.6

// fillGaps re-asks the primary model for the required fields the first
// extraction left empty. The stage is feature-flagged and strictly best
// effort: any model failure, transient or not, stops the passes and the
// job carries on with what it has.
func (p *Pipeline) fillGaps(ctx domain.Context, job *domain.ProcessingJob, text string, res *domain.ReconciledResult) {
	if !p.cfg.UseGapFiller {
		return
	}
	missing := MissingRequired(res.Record)
	if len(missing) == 0 {
		return
	}
	defer observeStage("gapfiller", time.Now())

	available := p.analyst.Available()
	if len(available) == 0 {
		return
	}
	provider := available[0]

	for pass := 0; pass < p.cfg.GapFillerMaxRetries && len(missing) > 0; pass++ {
		partial, err := p.analyst.FillGaps(ctx, provider, text, missing)
		if err != nil {
			slog.Warn("gap fill pass failed",
				slog.String("job_id", job.ID),
				slog.Int("pass", pass+1),
				slog.String("error", err.Error()))
			break
		}
		if mergeGapFields(res, partial, missing) == 0 {
			// The model recovered nothing new; further passes would ask
			// the same question again.
			break
		}
		missing = MissingRequired(res.Record)
	}

	for _, f := range missing {
		res.Warnings = append(res.Warnings, domain.Warning{
			Type:    domain.WarningGapUnfilled,
			Field:   f,
			Message: "field still missing after gap fill",
		})
	}
}

// mergeGapFields copies recovered values for the still-missing fields
// into the record, grades them at gapFillConfidence and retires the
// low-confidence warnings they supersede. Returns how many fields were
// filled.
func mergeGapFields(res *domain.ReconciledResult, from domain.ExtractionRecord, missing []string) int {
	rec := &res.Record
	filled := 0
	for _, f := range missing {
		switch f {
		case "name":
			if rec.Name == "" && from.Name != "" {
				rec.Name = collapse(from.Name)
				filled++
			} else {
				continue
			}
		case "last_position":
			if rec.LastPosition == "" && from.LastPosition != "" {
				rec.LastPosition = collapse(from.LastPosition)
				filled++
			} else {
				continue
			}
		case "last_company":
			if rec.LastCompany == "" && from.LastCompany != "" {
				rec.LastCompany = collapse(from.LastCompany)
				filled++
			} else {
				continue
			}
		case "exp_years":
			if rec.ExpYears <= 0 && from.ExpYears > 0 {
				rec.ExpYears = from.ExpYears
				filled++
			} else {
				continue
			}
		case "skills":
			if len(rec.Skills) == 0 && len(from.Skills) > 0 {
				rec.Skills = NormalizeSkills(from.Skills, nil)
				filled++
			} else {
				continue
			}
		default:
			continue
		}
		res.FieldConfidence[f] = gapFillConfidence
		res.Warnings = dropWarnings(res.Warnings, domain.WarningLowConfidence, f)
	}
	return filled
}

func dropWarnings(warnings []domain.Warning, typ, field string) []domain.Warning {
	out := warnings[:0]
	for _, w := range warnings {
		if w.Type == typ && w.Field == field {
			continue
		}
		out = append(out, w)
	}
	return out
}
