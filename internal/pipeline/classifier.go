package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// notAResumeConfidence is the classifier certainty required to reject a
// document outright. Below it the verdict is advisory only and the
// pipeline proceeds; a wrong rejection costs the caller a re-upload, a
// wrong pass costs one cheap analysis.
const notAResumeConfidence = 0.7

// classify asks a model whether the document is a resume at all. The
// stage is feature-flagged and fails open: an inconclusive model answer
// never blocks the job.
func (p *Pipeline) classify(ctx domain.Context, job *domain.ProcessingJob, text string) error {
	if !p.cfg.UseDocumentClassifier {
		return nil
	}
	defer observeStage("classifier", time.Now())

	docType, confidence, err := p.analyst.ClassifyDocument(ctx, text)
	if err != nil {
		if errors.Is(err, domain.ErrSchemaInvalid) || errors.Is(err, domain.ErrInvalidArgument) {
			slog.Warn("document classification inconclusive, proceeding",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()))
			return nil
		}
		return err
	}
	slog.Debug("document classified",
		slog.String("job_id", job.ID),
		slog.String("document_type", docType),
		slog.Float64("confidence", confidence))
	if docType != "resume" && confidence >= notAResumeConfidence {
		return fmt.Errorf("%w: classified as %s with confidence %.2f",
			domain.ErrNotAResume, docType, confidence)
	}
	return nil
}
