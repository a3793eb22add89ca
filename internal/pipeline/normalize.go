package pipeline

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
	"github.com/fairyhunter13/ai-resume-analyzer/pkg/pii"
)

// Date shapes seen in Korean and English resumes. Everything canonicalizes
// to YYYY-MM; "present" style markers and unparseable values become empty,
// which downstream reads as current or absent.
var (
	yearMonthRe = regexp.MustCompile(`^(\d{4})\s*[-./년]\s*(\d{1,2})\s*월?(?:\s*[-./]?\s*\d{1,2}\s*일?)?$`)
	yearOnlyRe  = regexp.MustCompile(`^(\d{4})\s*년?$`)
	monthNameRe = regexp.MustCompile(`^([A-Za-z]{3,9})\.?,?\s+(\d{4})$`)
	currentRe   = regexp.MustCompile(`(?i)^(present|current|now|ongoing|현재|재직\s*중|재직)$`)
)

var monthsByName = map[string]int{
	"jan": 1, "january": 1,
	"feb": 2, "february": 2,
	"mar": 3, "march": 3,
	"apr": 4, "april": 4,
	"may": 5,
	"jun": 6, "june": 6,
	"jul": 7, "july": 7,
	"aug": 8, "august": 8,
	"sep": 9, "sept": 9, "september": 9,
	"oct": 10, "october": 10,
	"nov": 11, "november": 11,
	"dec": 12, "december": 12,
}

// NormalizeDate canonicalizes a resume date to YYYY-MM. Year-only input
// maps to January; day components are dropped.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || currentRe.MatchString(s) {
		return ""
	}
	if m := yearMonthRe.FindStringSubmatch(s); m != nil {
		month := atoi(m[2])
		if month >= 1 && month <= 12 {
			return fmt.Sprintf("%s-%02d", m[1], month)
		}
		return m[1] + "-01"
	}
	if m := yearOnlyRe.FindStringSubmatch(s); m != nil {
		return m[1] + "-01"
	}
	if m := monthNameRe.FindStringSubmatch(s); m != nil {
		if month, ok := monthsByName[strings.ToLower(m[1])]; ok {
			return fmt.Sprintf("%s-%02d", m[2], month)
		}
	}
	return ""
}

// FormatPhone renders a phone number with the dash grouping Korean
// numbers use. The +82 country prefix folds back to the domestic leading
// zero. Anything that is not 10 or 11 digits passes through trimmed.
func FormatPhone(s string) string {
	digits := pii.NormalizePhone(s)
	if len(digits) == 12 && strings.HasPrefix(digits, "82") {
		digits = "0" + digits[2:]
	}
	switch {
	case len(digits) == 11:
		return digits[:3] + "-" + digits[3:7] + "-" + digits[7:]
	case len(digits) == 10 && strings.HasPrefix(digits, "02"):
		return "02-" + digits[2:6] + "-" + digits[6:]
	case len(digits) == 10:
		return digits[:3] + "-" + digits[3:6] + "-" + digits[6:]
	default:
		return strings.TrimSpace(s)
	}
}

// NormalizeSkills canonicalizes each skill through the synonym map and
// drops case-insensitive duplicates, preserving first-seen order.
func NormalizeSkills(skills []string, synonyms map[string]string) []string {
	if len(skills) == 0 {
		return nil
	}
	out := make([]string, 0, len(skills))
	seen := make(map[string]bool, len(skills))
	for _, s := range skills {
		s = collapse(s)
		if s == "" {
			continue
		}
		if canonical, ok := synonyms[strings.ToLower(s)]; ok && canonical != "" {
			s = canonical
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

// NormalizeRecord canonicalizes one model output in place: trimmed
// identifiers, YYYY-MM dates, synonym-mapped skills, lowercase email.
// Cross-check comparison and storage both run on normalized records.
func NormalizeRecord(rec *domain.ExtractionRecord, synonyms map[string]string) {
	rec.Name = collapse(rec.Name)
	rec.Phone = FormatPhone(rec.Phone)
	rec.Email = pii.NormalizeEmail(rec.Email)
	rec.Address = collapse(rec.Address)
	rec.LastPosition = collapse(rec.LastPosition)
	rec.LastCompany = collapse(rec.LastCompany)
	rec.Summary = strings.TrimSpace(rec.Summary)
	rec.ExpYears = math.Round(rec.ExpYears*10) / 10
	rec.Skills = NormalizeSkills(rec.Skills, synonyms)

	for i := range rec.Careers {
		c := &rec.Careers[i]
		c.Company = collapse(c.Company)
		c.Position = collapse(c.Position)
		c.StartDate = NormalizeDate(c.StartDate)
		c.EndDate = NormalizeDate(c.EndDate)
		c.Description = strings.TrimSpace(c.Description)
	}
	// Careers are ordered most recent first; backfill the headline fields
	// when the model left them empty.
	if len(rec.Careers) > 0 {
		if rec.LastCompany == "" {
			rec.LastCompany = rec.Careers[0].Company
		}
		if rec.LastPosition == "" {
			rec.LastPosition = rec.Careers[0].Position
		}
	}

	for i := range rec.Education {
		e := &rec.Education[i]
		e.School = collapse(e.School)
		e.Degree = collapse(e.Degree)
		e.Major = collapse(e.Major)
		e.StartDate = NormalizeDate(e.StartDate)
		e.EndDate = NormalizeDate(e.EndDate)
	}

	for i := range rec.Projects {
		p := &rec.Projects[i]
		p.Name = collapse(p.Name)
		p.Description = strings.TrimSpace(p.Description)
		p.Skills = NormalizeSkills(p.Skills, synonyms)
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
