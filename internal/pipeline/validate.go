package pipeline

import (
	"fmt"
	"time"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

const (
	// lowConfidenceThreshold marks a required field as weak enough to
	// warn about.
	lowConfidenceThreshold = 0.6
	// reviewThreshold flags the whole candidate for human review.
	reviewThreshold = 0.8
	// highRiskDisagreement is the confidence floor under which a model
	// disagreement escalates risk to high.
	highRiskDisagreement = 0.5
)

// validate appends a low-confidence warning for every weak required
// field. The overall score, review flag and risk level are computed
// after gap filling, when field confidence is final.
func (p *Pipeline) validate(res *domain.ReconciledResult) {
	defer observeStage("validation", time.Now())
	for _, f := range domain.RequiredFields {
		conf, ok := res.FieldConfidence[f]
		if !ok || conf >= lowConfidenceThreshold {
			continue
		}
		res.Warnings = append(res.Warnings, domain.Warning{
			Type:    domain.WarningLowConfidence,
			Field:   f,
			Message: fmt.Sprintf("field confidence %.2f", conf),
		})
	}
}

// ConfidenceScore is the minimum confidence across the required fields:
// a record is only as trustworthy as its weakest required field.
func ConfidenceScore(fc map[string]float64) float64 {
	score := 1.0
	for _, f := range domain.RequiredFields {
		if conf, ok := fc[f]; ok && conf < score {
			score = conf
		}
	}
	return score
}

// AssessRisk grades the record. High when models disagreed outright on a
// field (confidence fell below the partial-agreement band), medium when
// anything else warrants a look, low otherwise.
func AssessRisk(res *domain.ReconciledResult, requiresReview bool) domain.RiskLevel {
	for _, w := range res.Warnings {
		if w.Type == domain.WarningDisagreement && res.FieldConfidence[w.Field] < highRiskDisagreement {
			return domain.RiskHigh
		}
	}
	if requiresReview || len(res.Warnings) > 0 {
		return domain.RiskMedium
	}
	return domain.RiskLow
}
