package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// persist writes the finalized candidate and commits the usage credit.
// Both writes are replay-safe (Finalize is deterministic for the run,
// CommitUsage is unique per candidate), so a crash between them costs
// nothing but a retry. Failures here are transient: the work is done,
// only the bookkeeping is pending.
func (p *Pipeline) persist(ctx domain.Context, job *domain.ProcessingJob, res *domain.ReconciledResult, a piiArtifacts, vec []float32, score float64, risk domain.RiskLevel, requiresReview bool) error {
	defer observeStage("persist", time.Now())

	name := res.Record.Name
	if name == "" {
		// Keep the placeholder's display name rather than blanking the
		// row; the gap_unfilled warning already flags the hole.
		name = job.FileName
	}
	cand := domain.Candidate{
		ID:               job.CandidateID,
		TenantID:         job.TenantID,
		Status:           domain.CandidateCompleted,
		Name:             name,
		LastPosition:     res.Record.LastPosition,
		LastCompany:      res.Record.LastCompany,
		ExpYears:         res.Record.ExpYears,
		Skills:           res.Record.Skills,
		Careers:          res.Record.Careers,
		Education:        res.Record.Education,
		Projects:         res.Record.Projects,
		Summary:          res.Record.Summary,
		ConfidenceScore:  score,
		FieldConfidence:  res.FieldConfidence,
		RiskLevel:        risk,
		RequiresReview:   requiresReview,
		Warnings:         res.Warnings,
		PhoneEncrypted:   a.phoneEncrypted,
		EmailEncrypted:   a.emailEncrypted,
		AddressEncrypted: a.addressEncrypted,
		PhoneHash:        a.phoneHash,
		EmailHash:        a.emailHash,
		PhoneMasked:      a.phoneMasked,
		EmailMasked:      a.emailMasked,
		AddressMasked:    a.addressMasked,
		Embedding:        vec,
		UpdatedAt:        time.Now().UTC(),
	}
	if err := p.candidates.Finalize(ctx, cand); err != nil {
		return fmt.Errorf("%w: finalize candidate: %v", domain.ErrPersistFailed, err)
	}
	if err := p.credits.CommitUsage(ctx, job.TenantID, job.ID, job.CandidateID); err != nil {
		if errors.Is(err, domain.ErrInsufficientCredits) {
			// Lost the balance race after passing the submit gate;
			// retrying cannot conjure credits.
			return fmt.Errorf("commit usage: %w", err)
		}
		return fmt.Errorf("%w: commit usage: %v", domain.ErrPersistFailed, err)
	}
	observability.CreditCommitsTotal.Inc()
	return nil
}
