package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

func outputs(records ...domain.ExtractionRecord) []domain.ExtractionOutput {
	providers := []domain.AIProvider{domain.ProviderPrimary, domain.ProviderSecondary, domain.ProviderTertiary}
	out := make([]domain.ExtractionOutput, len(records))
	for i, r := range records {
		out[i] = domain.ExtractionOutput{Provider: providers[i], Record: r}
	}
	return out
}

func TestReconcile_ExactAgreement(t *testing.T) {
	t.Parallel()
	a := sampleRecord()
	b := sampleRecord()
	b.Name = "HONG GILDONG" // case differences still count as exact

	res := Reconcile(outputs(a, b), nil)

	assert.Equal(t, "Hong Gildong", res.Record.Name) // earliest casing wins
	assert.InDelta(t, 1.0, res.FieldConfidence["name"], 1e-9)
	assert.InDelta(t, 1.0, res.FieldConfidence["last_company"], 1e-9)
	assert.InDelta(t, 1.0, res.FieldConfidence["exp_years"], 1e-9)
	assert.InDelta(t, 1.0, res.FieldConfidence["skills"], 1e-9)
	assert.Empty(t, res.Warnings)
}

func TestReconcile_PartialAgreementKeepsPrimary(t *testing.T) {
	t.Parallel()
	a := sampleRecord()
	a.LastCompany = "Acme Inc"
	b := sampleRecord()
	b.LastCompany = "Acme"

	res := Reconcile(outputs(a, b), nil)

	assert.Equal(t, "Acme Inc", res.Record.LastCompany)
	assert.InDelta(t, confPartial, res.FieldConfidence["last_company"], 1e-9)

	require.Len(t, res.Warnings, 1)
	w := res.Warnings[0]
	assert.Equal(t, domain.WarningDisagreement, w.Type)
	assert.Equal(t, "last_company", w.Field)
	assert.ElementsMatch(t, []string{"Acme Inc", "Acme"}, w.Candidates)
}

func TestReconcile_OutrightDisagreement(t *testing.T) {
	t.Parallel()
	a := sampleRecord()
	a.LastCompany = "Acme Inc"
	b := sampleRecord()
	b.LastCompany = "Globex"

	res := Reconcile(outputs(a, b), nil)

	assert.Equal(t, "Acme Inc", res.Record.LastCompany) // primary precedence
	assert.InDelta(t, confDisagree, res.FieldConfidence["last_company"], 1e-9)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "models disagree", res.Warnings[0].Message)
}

func TestReconcile_OneSidedValue(t *testing.T) {
	t.Parallel()
	a := sampleRecord()
	a.Address = ""
	b := sampleRecord()
	b.Address = "Seoul"

	res := Reconcile(outputs(a, b), nil)

	assert.Equal(t, "Seoul", res.Record.Address)
	assert.InDelta(t, confOneSided, res.FieldConfidence["address"], 1e-9)
	assert.Empty(t, res.Warnings) // absence elsewhere is not a disagreement
}

func TestReconcile_BothEmpty(t *testing.T) {
	t.Parallel()
	a := sampleRecord()
	a.Address = ""
	b := sampleRecord()
	b.Address = ""

	res := Reconcile(outputs(a, b), nil)

	assert.Empty(t, res.Record.Address)
	assert.InDelta(t, confAbsent, res.FieldConfidence["address"], 1e-9)
}

func TestReconcile_SingleOutput(t *testing.T) {
	t.Parallel()
	res := Reconcile(outputs(sampleRecord()), nil)

	assert.Equal(t, "Hong Gildong", res.Record.Name)
	assert.InDelta(t, confSingleValue, res.FieldConfidence["name"], 1e-9)
	assert.InDelta(t, confSingleValue, res.FieldConfidence["exp_years"], 1e-9)
	assert.InDelta(t, confSingleValue, res.FieldConfidence["skills"], 1e-9)
	assert.InDelta(t, confSingleValue, res.FieldConfidence["careers"], 1e-9)
	assert.Empty(t, res.Warnings)
}

func TestReconcile_SingleOutputEmptyFields(t *testing.T) {
	t.Parallel()
	rec := sampleRecord()
	rec.Address = ""
	rec.Skills = nil
	res := Reconcile(outputs(rec), nil)

	assert.InDelta(t, confAbsent, res.FieldConfidence["address"], 1e-9)
	assert.InDelta(t, confAbsent, res.FieldConfidence["skills"], 1e-9)
}

func TestReconcile_YearsBands(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		years    []float64
		want     float64
		wantConf float64
		warned   bool
	}{
		{"identical", []float64{7, 7}, 7, confExact, false},
		{"within rounding", []float64{7, 7.1}, 7, confExact, false},
		{"within a year", []float64{7, 7.8}, 7, confPartial, false},
		{"far apart", []float64{7, 3}, 7, confDisagree, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a := sampleRecord()
			a.ExpYears = tt.years[0]
			b := sampleRecord()
			b.ExpYears = tt.years[1]

			res := Reconcile(outputs(a, b), nil)
			assert.InDelta(t, tt.want, res.Record.ExpYears, 1e-9)
			assert.InDelta(t, tt.wantConf, res.FieldConfidence["exp_years"], 1e-9)

			var warned bool
			for _, w := range res.Warnings {
				if w.Field == "exp_years" {
					warned = true
					assert.ElementsMatch(t, []string{"7.0", "3.0"}, w.Candidates)
				}
			}
			assert.Equal(t, tt.warned, warned)
		})
	}
}

func TestReconcile_SkillBands(t *testing.T) {
	t.Parallel()
	t.Run("equal sets keep primary order", func(t *testing.T) {
		t.Parallel()
		a := sampleRecord()
		a.Skills = []string{"Go", "Kafka"}
		b := sampleRecord()
		b.Skills = []string{"kafka", "go"}

		res := Reconcile(outputs(a, b), nil)
		assert.Equal(t, []string{"Go", "Kafka"}, res.Record.Skills)
		assert.InDelta(t, confExact, res.FieldConfidence["skills"], 1e-9)
	})

	t.Run("overlapping sets merge", func(t *testing.T) {
		t.Parallel()
		a := sampleRecord()
		a.Skills = []string{"Go", "Kafka", "PostgreSQL"}
		b := sampleRecord()
		b.Skills = []string{"Go", "Kafka", "Redis"}

		res := Reconcile(outputs(a, b), nil)
		assert.Equal(t, []string{"Go", "Kafka", "PostgreSQL", "Redis"}, res.Record.Skills)
		assert.InDelta(t, confPartial, res.FieldConfidence["skills"], 1e-9)
	})

	t.Run("disjoint sets keep primary with warning", func(t *testing.T) {
		t.Parallel()
		a := sampleRecord()
		a.Skills = []string{"Go", "Kafka"}
		b := sampleRecord()
		b.Skills = []string{"Excel", "PowerPoint"}

		res := Reconcile(outputs(a, b), nil)
		assert.Equal(t, []string{"Go", "Kafka"}, res.Record.Skills)
		assert.InDelta(t, confDisagree, res.FieldConfidence["skills"], 1e-9)

		var warned bool
		for _, w := range res.Warnings {
			if w.Field == "skills" {
				warned = true
			}
		}
		assert.True(t, warned)
	})
}

func TestReconcile_SynonymsUnifyBeforeComparison(t *testing.T) {
	t.Parallel()
	a := sampleRecord()
	a.Skills = []string{"golang"}
	b := sampleRecord()
	b.Skills = []string{"Go"}

	res := Reconcile(outputs(a, b), map[string]string{"golang": "Go"})
	assert.Equal(t, []string{"Go"}, res.Record.Skills)
	assert.InDelta(t, confExact, res.FieldConfidence["skills"], 1e-9)
}

func TestReconcile_StructuredListShape(t *testing.T) {
	t.Parallel()
	a := sampleRecord()
	b := sampleRecord()
	b.Careers = append(b.Careers, domain.Career{Company: "Beta Corp", Position: "Engineer", StartDate: "2016-01"})

	res := Reconcile(outputs(a, b), nil)
	// Lengths differ, keep primary's list at the lower band.
	assert.Len(t, res.Record.Careers, 1)
	assert.InDelta(t, confListsDiffer, res.FieldConfidence["careers"], 1e-9)

	c := sampleRecord()
	d := sampleRecord()
	res = Reconcile(outputs(c, d), nil)
	assert.InDelta(t, confListsAlign, res.FieldConfidence["careers"], 1e-9)
}

func TestReconcile_SummaryNeverMatchesExactly(t *testing.T) {
	t.Parallel()
	a := sampleRecord()
	a.Summary = "Backend engineer."
	b := sampleRecord()
	b.Summary = "A backend engineer with pipeline experience."

	res := Reconcile(outputs(a, b), nil)
	assert.Equal(t, "Backend engineer.", res.Record.Summary)
	assert.InDelta(t, confPartial, res.FieldConfidence["summary"], 1e-9)
}

func TestCapConfidence(t *testing.T) {
	t.Parallel()
	fc := map[string]float64{"name": 1.0, "skills": 0.7, "address": 0.3}
	capConfidence(fc, 0.9)
	assert.InDelta(t, 0.9, fc["name"], 1e-9)
	assert.InDelta(t, 0.7, fc["skills"], 1e-9)
	assert.InDelta(t, 0.3, fc["address"], 1e-9)
}

func TestAllRelated(t *testing.T) {
	t.Parallel()
	assert.True(t, allRelated([]string{"Acme Inc", "Acme"}))
	assert.True(t, allRelated([]string{"acme", "Acme Inc", "ACME INC."}))
	assert.False(t, allRelated([]string{"Acme Inc", "Globex"}))
}

func TestAnalyze_FansOutPerProvider(t *testing.T) {
	t.Parallel()
	job := testJob()
	job.AnalysisMode = domain.ModePhase2
	f := newFixture(t, job)
	f.analyst.available = []domain.AIProvider{domain.ProviderPrimary, domain.ProviderSecondary}
	f.analyst.extract = func(provider domain.AIProvider, _ string) (domain.ExtractionRecord, error) {
		rec := sampleRecord()
		if provider == domain.ProviderSecondary {
			rec.LastCompany = "Acme"
		}
		return rec, nil
	}

	res, err := f.p.analyze(context.Background(), &job, sampleResume)
	require.NoError(t, err)

	assert.Equal(t, "Acme Inc", res.Record.LastCompany)
	assert.InDelta(t, confPartial, res.FieldConfidence["last_company"], 1e-9)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, domain.WarningDisagreement, res.Warnings[0].Type)
}

func TestAnalyze_DegradedToSingleProviderCapsConfidence(t *testing.T) {
	t.Parallel()
	job := testJob()
	job.AnalysisMode = domain.ModePhase2
	f := newFixture(t, job)
	f.analyst.available = []domain.AIProvider{domain.ProviderPrimary, domain.ProviderSecondary}
	f.analyst.extract = func(provider domain.AIProvider, _ string) (domain.ExtractionRecord, error) {
		if provider == domain.ProviderSecondary {
			return domain.ExtractionRecord{}, fmt.Errorf("op=ai.ExtractProfile: %w", domain.ErrUpstreamTimeout)
		}
		return sampleRecord(), nil
	}

	res, err := f.p.analyze(context.Background(), &job, sampleResume)
	require.NoError(t, err)

	for field, conf := range res.FieldConfidence {
		assert.LessOrEqual(t, conf, singleProviderCap, field)
	}
	var degraded bool
	for _, w := range res.Warnings {
		if w.Type == domain.WarningSingleProvider {
			degraded = true
			assert.Contains(t, w.Message, "primary")
		}
	}
	assert.True(t, degraded)
}

func TestAnalyze_AllFailedTransientReturnsRaw(t *testing.T) {
	t.Parallel()
	job := testJob()
	job.AnalysisMode = domain.ModePhase2
	f := newFixture(t, job)
	f.analyst.available = []domain.AIProvider{domain.ProviderPrimary, domain.ProviderSecondary}
	f.analyst.extract = func(domain.AIProvider, string) (domain.ExtractionRecord, error) {
		return domain.ExtractionRecord{}, fmt.Errorf("op=ai.ExtractProfile: %w", domain.ErrUpstreamTimeout)
	}

	_, err := f.p.analyze(context.Background(), &job, sampleResume)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamTimeout)
	assert.NotErrorIs(t, err, domain.ErrAnalysisFailed)
}

func TestAnalyze_AllFailedSchemaIsTerminal(t *testing.T) {
	t.Parallel()
	job := testJob()
	job.AnalysisMode = domain.ModePhase2
	f := newFixture(t, job)
	f.analyst.available = []domain.AIProvider{domain.ProviderPrimary, domain.ProviderSecondary}
	f.analyst.extract = func(domain.AIProvider, string) (domain.ExtractionRecord, error) {
		return domain.ExtractionRecord{}, fmt.Errorf("op=ai.ExtractProfile: %w", domain.ErrSchemaInvalid)
	}

	_, err := f.p.analyze(context.Background(), &job, sampleResume)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAnalysisFailed)
}

func TestAnalyze_NoProvidersIsTerminal(t *testing.T) {
	t.Parallel()
	job := testJob()
	f := newFixture(t, job)
	f.analyst.available = nil

	_, err := f.p.analyze(context.Background(), &job, sampleResume)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAnalysisFailed)
}

func TestProvidersFor(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testJob())
	f.analyst.available = []domain.AIProvider{domain.ProviderPrimary, domain.ProviderSecondary, domain.ProviderTertiary}

	assert.Equal(t, []domain.AIProvider{domain.ProviderPrimary}, f.p.providersFor(domain.ModePhase1))
	assert.Len(t, f.p.providersFor(domain.ModePhase2), 3)
}
