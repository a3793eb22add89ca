package pipeline

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// minTextRunes is the floor under which an extraction is unusable: cover
// images, scans without OCR, blank exports.
const minTextRunes = 100

// parse extracts plain text from the staged file within the parse timeout.
// A short result is terminal; the document has no text worth analyzing.
func (p *Pipeline) parse(ctx domain.Context, job *domain.ProcessingJob, path string) (string, error) {
	defer observeStage("parser", time.Now())

	pctx, cancel := context.WithTimeout(ctx, p.cfg.ParseTimeout)
	defer cancel()
	text, err := p.extractor.ExtractPath(pctx, job.FileName, path)
	if err != nil {
		if ctx.Err() != nil {
			// The job wall clock expired, not the document; hand the job
			// back to the queue.
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", domain.ErrParseFailed, err)
	}
	if n := utf8.RuneCountInString(text); n < minTextRunes {
		return "", fmt.Errorf("%w: %d chars extracted", domain.ErrTextTooShort, n)
	}
	return text, nil
}
