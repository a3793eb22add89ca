package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// Confidence bands for reconciliation. Exact multi-model agreement is
// certain; partial agreement and single-sided absence land mid-band; an
// unresolved disagreement keeps the primary's value at low confidence.
const (
	confExact       = 1.0
	confPartial     = 0.7
	confOneSided    = 0.6
	confDisagree    = 0.4
	confSingleValue = 0.9
	confAbsent      = 0.3
	confListsAlign  = 0.8
	confListsDiffer = 0.5

	// singleProviderCap bounds every field when a multi-model run degrades
	// to one output; consensus was never verified.
	singleProviderCap = 0.9
)

// Reconcile merges per-provider extraction outputs into one record with
// per-field confidence. Outputs arrive primary first and ties resolve in
// that order. The function is pure: no clock, no I/O, no randomness.
func Reconcile(outputs []domain.ExtractionOutput, synonyms map[string]string) domain.ReconciledResult {
	records := make([]domain.ExtractionRecord, len(outputs))
	for i := range outputs {
		records[i] = outputs[i].Record
		NormalizeRecord(&records[i], synonyms)
	}

	res := domain.ReconciledResult{FieldConfidence: make(map[string]float64, 12)}

	stringField := func(field string, get func(domain.ExtractionRecord) string) string {
		values := make([]string, len(records))
		for i, r := range records {
			values[i] = get(r)
		}
		value, conf, warn := reconcileString(values)
		res.FieldConfidence[field] = conf
		if warn != nil {
			warn.Field = field
			res.Warnings = append(res.Warnings, *warn)
		}
		return value
	}

	res.Record.Name = stringField("name", func(r domain.ExtractionRecord) string { return r.Name })
	res.Record.Phone = stringField("phone", func(r domain.ExtractionRecord) string { return r.Phone })
	res.Record.Email = stringField("email", func(r domain.ExtractionRecord) string { return r.Email })
	res.Record.Address = stringField("address", func(r domain.ExtractionRecord) string { return r.Address })
	res.Record.LastPosition = stringField("last_position", func(r domain.ExtractionRecord) string { return r.LastPosition })
	res.Record.LastCompany = stringField("last_company", func(r domain.ExtractionRecord) string { return r.LastCompany })

	years := make([]float64, len(records))
	for i, r := range records {
		years[i] = r.ExpYears
	}
	value, conf, warn := reconcileYears(years)
	res.Record.ExpYears = value
	res.FieldConfidence["exp_years"] = conf
	if warn != nil {
		res.Warnings = append(res.Warnings, *warn)
	}

	skills := make([][]string, len(records))
	for i, r := range records {
		skills[i] = r.Skills
	}
	res.Record.Skills, res.FieldConfidence["skills"], warn = reconcileSkills(skills)
	if warn != nil {
		res.Warnings = append(res.Warnings, *warn)
	}

	careers := make([][]domain.Career, len(records))
	education := make([][]domain.Education, len(records))
	projects := make([][]domain.Project, len(records))
	summaries := make([]string, len(records))
	for i, r := range records {
		careers[i] = r.Careers
		education[i] = r.Education
		projects[i] = r.Projects
		summaries[i] = r.Summary
	}
	res.Record.Careers, res.FieldConfidence["careers"] = reconcileList(careers)
	res.Record.Education, res.FieldConfidence["education"] = reconcileList(education)
	res.Record.Projects, res.FieldConfidence["projects"] = reconcileList(projects)
	res.Record.Summary, res.FieldConfidence["summary"] = reconcileText(summaries)

	return res
}

// reconcileString applies the agreement bands to one scalar string field.
// values are ordered primary first.
func reconcileString(values []string) (string, float64, *domain.Warning) {
	if len(values) == 1 {
		if values[0] == "" {
			return "", confAbsent, nil
		}
		return values[0], confSingleValue, nil
	}

	nonEmpty := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			nonEmpty = append(nonEmpty, v)
		}
	}
	switch len(nonEmpty) {
	case 0:
		return "", confAbsent, nil
	case 1:
		// A value only one model found is usable but unverified; absence
		// elsewhere is not a disagreement.
		return nonEmpty[0], confOneSided, nil
	}

	// Exact agreement, case-insensitive: first value seen by two or more
	// models wins with the earliest provider's casing.
	counts := make(map[string]int, len(nonEmpty))
	for _, v := range nonEmpty {
		counts[strings.ToLower(v)]++
	}
	for _, v := range nonEmpty {
		if counts[strings.ToLower(v)] >= 2 {
			return v, confExact, nil
		}
	}

	distinct := distinctFold(nonEmpty)
	if allRelated(distinct) {
		return nonEmpty[0], confPartial, &domain.Warning{
			Type:       domain.WarningDisagreement,
			Message:    "models partially agree",
			Candidates: distinct,
		}
	}
	return nonEmpty[0], confDisagree, &domain.Warning{
		Type:       domain.WarningDisagreement,
		Message:    "models disagree",
		Candidates: distinct,
	}
}

// reconcileYears compares numeric experience. Zero is a legitimate value
// (fresh graduate), so absence is not modeled here.
func reconcileYears(values []float64) (float64, float64, *domain.Warning) {
	if len(values) == 1 {
		return values[0], confSingleValue, nil
	}
	minV, maxV := values[0], values[0]
	for _, v := range values[1:] {
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	spread := maxV - minV
	switch {
	case spread <= 0.1:
		return values[0], confExact, nil
	case spread <= 1.0:
		return values[0], confPartial, nil
	default:
		candidates := make([]string, len(values))
		for i, v := range values {
			candidates[i] = fmt.Sprintf("%.1f", v)
		}
		return values[0], confDisagree, &domain.Warning{
			Type:       domain.WarningDisagreement,
			Field:      "exp_years",
			Message:    "models disagree on experience",
			Candidates: candidates,
		}
	}
}

// reconcileSkills compares skill sets case-insensitively. Overlapping sets
// merge; disjoint sets keep the primary's list at low confidence.
func reconcileSkills(lists [][]string) ([]string, float64, *domain.Warning) {
	if len(lists) == 1 {
		if len(lists[0]) == 0 {
			return nil, confAbsent, nil
		}
		return lists[0], confSingleValue, nil
	}

	nonEmpty := make([][]string, 0, len(lists))
	for _, l := range lists {
		if len(l) > 0 {
			nonEmpty = append(nonEmpty, l)
		}
	}
	switch len(nonEmpty) {
	case 0:
		return nil, confAbsent, nil
	case 1:
		return nonEmpty[0], confOneSided, nil
	}

	intersection, union := skillOverlap(nonEmpty)
	jaccard := float64(intersection) / float64(union)
	switch {
	case intersection == union:
		return nonEmpty[0], confExact, nil
	case jaccard >= 0.5:
		return mergeSkills(nonEmpty), confPartial, nil
	default:
		candidates := make([]string, len(nonEmpty))
		for i, l := range nonEmpty {
			candidates[i] = strings.Join(l, ", ")
		}
		return nonEmpty[0], confDisagree, &domain.Warning{
			Type:       domain.WarningDisagreement,
			Field:      "skills",
			Message:    "models disagree on skills",
			Candidates: candidates,
		}
	}
}

// reconcileList picks the first non-empty structured list; deep equality
// across model outputs is not expected, so confidence keys on shape.
func reconcileList[T any](lists [][]T) ([]T, float64) {
	if len(lists) == 1 {
		if len(lists[0]) == 0 {
			return nil, confAbsent
		}
		return lists[0], confSingleValue
	}
	nonEmpty := make([][]T, 0, len(lists))
	for _, l := range lists {
		if len(l) > 0 {
			nonEmpty = append(nonEmpty, l)
		}
	}
	switch len(nonEmpty) {
	case 0:
		return nil, confAbsent
	case 1:
		return nonEmpty[0], confOneSided
	}
	aligned := true
	for _, l := range nonEmpty[1:] {
		if len(l) != len(nonEmpty[0]) {
			aligned = false
			break
		}
	}
	if aligned {
		return nonEmpty[0], confListsAlign
	}
	return nonEmpty[0], confListsDiffer
}

// reconcileText handles free-form prose, which never matches exactly.
func reconcileText(values []string) (string, float64) {
	first := ""
	nonEmpty := 0
	for _, v := range values {
		if v != "" {
			if first == "" {
				first = v
			}
			nonEmpty++
		}
	}
	switch {
	case nonEmpty == 0:
		return "", confAbsent
	case len(values) == 1:
		return first, confSingleValue
	default:
		return first, confPartial
	}
}

func distinctFold(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		key := strings.ToLower(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

// allRelated reports whether every pair of values is in a substring
// relation, e.g. "Acme Inc" and "Acme".
func allRelated(values []string) bool {
	for i := 0; i < len(values); i++ {
		for j := i + 1; j < len(values); j++ {
			a, b := strings.ToLower(values[i]), strings.ToLower(values[j])
			if !strings.Contains(a, b) && !strings.Contains(b, a) {
				return false
			}
		}
	}
	return true
}

func skillOverlap(lists [][]string) (intersection, union int) {
	counts := make(map[string]int)
	for _, l := range lists {
		for _, s := range l {
			counts[strings.ToLower(s)]++
		}
	}
	for _, n := range counts {
		union++
		if n == len(lists) {
			intersection++
		}
	}
	return intersection, union
}

// mergeSkills unions overlapping lists, primary's order first.
func mergeSkills(lists [][]string) []string {
	out := make([]string, 0, len(lists[0]))
	seen := make(map[string]bool)
	for _, l := range lists {
		for _, s := range l {
			key := strings.ToLower(s)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, s)
		}
	}
	return out
}

func capConfidence(fc map[string]float64, limit float64) {
	for k, v := range fc {
		if v > limit {
			fc[k] = limit
		}
	}
}

// analyze runs the cross-check: every provider in the mode's set extracts
// the same schema concurrently, then the outputs reconcile into one
// record. The job fails terminally only when no provider produced a
// usable output and none of the failures was transient.
func (p *Pipeline) analyze(ctx domain.Context, job *domain.ProcessingJob, text string) (domain.ReconciledResult, error) {
	defer observeStage("crosscheck", time.Now())

	providers := p.providersFor(job.AnalysisMode)
	if len(providers) == 0 {
		return domain.ReconciledResult{}, fmt.Errorf("%w: no providers configured", domain.ErrAnalysisFailed)
	}

	type extraction struct {
		record domain.ExtractionRecord
		err    error
	}
	results := make([]extraction, len(providers))
	var wg sync.WaitGroup
	for i, provider := range providers {
		wg.Add(1)
		go func(i int, provider domain.AIProvider) {
			defer wg.Done()
			rec, err := p.analyst.ExtractProfile(ctx, provider, text)
			results[i] = extraction{record: rec, err: err}
		}(i, provider)
	}
	wg.Wait()

	outputs := make([]domain.ExtractionOutput, 0, len(providers))
	var errs []error
	for i, r := range results {
		if r.err != nil {
			slog.Warn("provider extraction failed",
				slog.String("job_id", job.ID),
				slog.String("provider", string(providers[i])),
				slog.String("error", r.err.Error()))
			errs = append(errs, r.err)
			continue
		}
		outputs = append(outputs, domain.ExtractionOutput{Provider: providers[i], Record: r.record})
	}

	if len(outputs) == 0 {
		for _, err := range errs {
			if !errors.Is(err, domain.ErrSchemaInvalid) {
				// At least one failure was transient; hand the job back to
				// the queue instead of failing it.
				return domain.ReconciledResult{}, err
			}
		}
		return domain.ReconciledResult{}, fmt.Errorf("%w: all providers failed: %v", domain.ErrAnalysisFailed, errors.Join(errs...))
	}

	var synonyms map[string]string
	if p.synonyms != nil {
		snap, err := p.synonyms.Snapshot(ctx)
		if err != nil {
			slog.Warn("synonym snapshot unavailable, skipping canonicalization",
				slog.String("error", err.Error()))
		} else {
			synonyms = snap
		}
	}

	res := Reconcile(outputs, synonyms)
	if job.AnalysisMode == domain.ModePhase2 && len(outputs) == 1 {
		// Consensus was never verified; cap the confidence and say so.
		capConfidence(res.FieldConfidence, singleProviderCap)
		res.Warnings = append(res.Warnings, domain.Warning{
			Type:    domain.WarningSingleProvider,
			Message: fmt.Sprintf("cross-check degraded to a single provider (%s)", outputs[0].Provider),
		})
	}
	return res, nil
}

// providersFor maps the analysis mode onto the configured provider set.
func (p *Pipeline) providersFor(mode domain.AnalysisMode) []domain.AIProvider {
	available := p.analyst.Available()
	if mode == domain.ModePhase1 && len(available) > 1 {
		return available[:1]
	}
	return available
}
