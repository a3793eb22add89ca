package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// checkIdentity rejects documents that describe more than one person,
// such as a recruiter's stack of profiles pasted into one file. A single
// ambiguous answer fails open; only a confident multi-person verdict ends
// the job.
func (p *Pipeline) checkIdentity(ctx domain.Context, job *domain.ProcessingJob, text string) error {
	defer observeStage("identity", time.Now())

	count, primary, err := p.analyst.CountPersons(ctx, text)
	if err != nil {
		if errors.Is(err, domain.ErrSchemaInvalid) || errors.Is(err, domain.ErrInvalidArgument) {
			slog.Warn("identity check inconclusive, proceeding",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()))
			return nil
		}
		return err
	}
	if count > 1 {
		if primary != "" {
			return fmt.Errorf("%w: %d persons described, primary %q",
				domain.ErrMultiplePersons, count, primary)
		}
		return fmt.Errorf("%w: %d persons described", domain.ErrMultiplePersons, count)
	}
	return nil
}
