package pipeline

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// Quick extraction runs between parsing and analysis so readers can render
// the basics before any model responds. Deterministic heuristics only;
// wrong guesses are overwritten by the analyzed record.
var (
	quickEmailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	quickPhoneRe = regexp.MustCompile(`(?:\+82[-.\s]?10|01[016789])[-.\s]?\d{3,4}[-.\s]?\d{4}`)

	nameLabelRe     = regexp.MustCompile(`(?i)^(?:이름|성명|성함|name)\s*[:：]\s*(.+)$`)
	companyLabelRe  = regexp.MustCompile(`(?i)^(?:회사명?|소속|직장|company|employer)\s*[:：]\s*(.+)$`)
	positionLabelRe = regexp.MustCompile(`(?i)^(?:직급|직책|직무|position|title|role)\s*[:：]\s*(.+)$`)

	// Document titles and section headings that sit where a name would.
	headingRe = regexp.MustCompile(`(?i)^(이\s*력\s*서|자기소개서|경력기술서|인적사항|연락처|경력사항|resume|curriculum vitae|cv|profile|contact|about( me)?|introduction)$`)
)

// QuickExtract pulls the progressive-rendering basics out of raw resume
// text. The name falls back to the first plausible line when no label
// names it.
func QuickExtract(text string) domain.QuickProfile {
	var q domain.QuickProfile
	if m := quickEmailRe.FindString(text); m != "" {
		q.Email = strings.ToLower(m)
	}
	if m := quickPhoneRe.FindString(text); m != "" {
		q.Phone = FormatPhone(m)
	}

	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := nameLabelRe.FindStringSubmatch(line); m != nil && q.Name == "" {
			q.Name = collapse(m[1])
			continue
		}
		if m := companyLabelRe.FindStringSubmatch(line); m != nil && q.LastCompany == "" {
			q.LastCompany = collapse(m[1])
			continue
		}
		if m := positionLabelRe.FindStringSubmatch(line); m != nil && q.LastPosition == "" {
			q.LastPosition = collapse(m[1])
			continue
		}
		if q.Name == "" && i < 10 && isLikelyName(line) {
			q.Name = line
		}
	}
	return q
}

// isLikelyName accepts short lines free of digits, addresses and labels.
func isLikelyName(line string) bool {
	if utf8.RuneCountInString(line) > 40 {
		return false
	}
	if strings.ContainsAny(line, "@0123456789:：") {
		return false
	}
	if headingRe.MatchString(line) {
		return false
	}
	words := len(strings.Fields(line))
	return words >= 1 && words <= 5
}
