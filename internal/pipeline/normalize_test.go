package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

func TestNormalizeDate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"canonical", "2021-03", "2021-03"},
		{"canonical with day", "2021-03-15", "2021-03"},
		{"dots", "2021.3", "2021-03"},
		{"dots with day", "2021.03.15", "2021-03"},
		{"slashes", "2021/11", "2021-11"},
		{"korean year month", "2021년 3월", "2021-03"},
		{"korean full date", "2021년 3월 15일", "2021-03"},
		{"year only", "2021", "2021-01"},
		{"korean year only", "2021년", "2021-01"},
		{"month name", "March 2021", "2021-03"},
		{"month name abbreviated", "Mar 2021", "2021-03"},
		{"month name with dot", "Sept. 2021", "2021-09"},
		{"present", "present", ""},
		{"korean present", "현재", ""},
		{"korean employed", "재직 중", ""},
		{"ongoing mixed case", "Ongoing", ""},
		{"empty", "", ""},
		{"gibberish", "sometime ago", ""},
		{"out of range month keeps year", "2021-19", "2021-01"},
		{"padded", "  2021-03  ", "2021-03"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeDate(tt.in))
		})
	}
}

func TestFormatPhone(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"mobile bare", "01012345678", "010-1234-5678"},
		{"mobile dashed", "010-1234-5678", "010-1234-5678"},
		{"mobile dotted", "010.1234.5678", "010-1234-5678"},
		{"mobile spaced", "010 1234 5678", "010-1234-5678"},
		{"country code", "+82-10-1234-5678", "010-1234-5678"},
		{"country code bare", "+821012345678", "010-1234-5678"},
		{"seoul landline", "0212345678", "02-1234-5678"},
		{"regional landline", "0311234567", "031-123-4567"},
		{"too short passes through", "1234", "1234"},
		{"words pass through trimmed", " call me ", "call me"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FormatPhone(tt.in))
		})
	}
}

func TestNormalizeSkills(t *testing.T) {
	t.Parallel()
	synonyms := map[string]string{
		"golang":     "Go",
		"k8s":        "Kubernetes",
		"postgres":   "PostgreSQL",
		"postgresql": "PostgreSQL",
	}

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "synonyms map to canonical",
			in:   []string{"golang", "k8s"},
			want: []string{"Go", "Kubernetes"},
		},
		{
			name: "case insensitive dedupe keeps first",
			in:   []string{"Go", "golang", "GO"},
			want: []string{"Go"},
		},
		{
			name: "canonical collision dedupes",
			in:   []string{"postgres", "PostgreSQL"},
			want: []string{"PostgreSQL"},
		},
		{
			name: "whitespace collapses",
			in:   []string{"  Spring   Boot  ", "", "   "},
			want: []string{"Spring Boot"},
		},
		{
			name: "unknown skills kept as-is",
			in:   []string{"Terraform"},
			want: []string{"Terraform"},
		},
		{
			name: "empty",
			in:   nil,
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizeSkills(tt.in, synonyms))
		})
	}
}

func TestNormalizeSkills_NilSynonyms(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"Go", "Kafka"}, NormalizeSkills([]string{"Go", "go", "Kafka"}, nil))
}

func TestNormalizeRecord(t *testing.T) {
	t.Parallel()
	rec := domain.ExtractionRecord{
		Name:         "  Hong   Gildong ",
		Phone:        "+82 10 1234 5678",
		Email:        " Hong.Gildong@Example.COM ",
		Address:      " Seoul   Gangnam-gu ",
		LastPosition: "",
		LastCompany:  "",
		ExpYears:     7.249,
		Skills:       []string{"golang", "Go"},
		Careers: []domain.Career{
			{Company: " Acme  Inc ", Position: " Backend   Engineer ", StartDate: "2019년 3월", EndDate: "현재"},
			{Company: "Beta Corp", Position: "Engineer", StartDate: "2016", EndDate: "2019.02"},
		},
		Education: []domain.Education{
			{School: " Hankuk  University ", Degree: "BSc", Major: "Computer  Science", StartDate: "2012", EndDate: "2016년"},
		},
		Projects: []domain.Project{
			{Name: "  Ingest  Pipeline ", Skills: []string{"K8S", "k8s"}},
		},
		Summary: "  Backend engineer.  ",
	}

	NormalizeRecord(&rec, map[string]string{"golang": "Go", "k8s": "Kubernetes"})

	assert.Equal(t, "Hong Gildong", rec.Name)
	assert.Equal(t, "010-1234-5678", rec.Phone)
	assert.Equal(t, "hong.gildong@example.com", rec.Email)
	assert.Equal(t, "Seoul Gangnam-gu", rec.Address)
	assert.InDelta(t, 7.2, rec.ExpYears, 1e-9)
	assert.Equal(t, []string{"Go"}, rec.Skills)
	assert.Equal(t, "Backend engineer.", rec.Summary)

	require.Len(t, rec.Careers, 2)
	assert.Equal(t, "Acme Inc", rec.Careers[0].Company)
	assert.Equal(t, "Backend Engineer", rec.Careers[0].Position)
	assert.Equal(t, "2019-03", rec.Careers[0].StartDate)
	assert.Empty(t, rec.Careers[0].EndDate)
	assert.Equal(t, "2016-01", rec.Careers[1].StartDate)
	assert.Equal(t, "2019-02", rec.Careers[1].EndDate)

	// Headline fields backfill from the most recent career.
	assert.Equal(t, "Acme Inc", rec.LastCompany)
	assert.Equal(t, "Backend Engineer", rec.LastPosition)

	require.Len(t, rec.Education, 1)
	assert.Equal(t, "Hankuk University", rec.Education[0].School)
	assert.Equal(t, "Computer Science", rec.Education[0].Major)
	assert.Equal(t, "2012-01", rec.Education[0].StartDate)
	assert.Equal(t, "2016-01", rec.Education[0].EndDate)

	require.Len(t, rec.Projects, 1)
	assert.Equal(t, "Ingest Pipeline", rec.Projects[0].Name)
	assert.Equal(t, []string{"Kubernetes"}, rec.Projects[0].Skills)
}

func TestNormalizeRecord_KeepsExplicitHeadline(t *testing.T) {
	t.Parallel()
	rec := domain.ExtractionRecord{
		LastCompany:  "Acme Inc",
		LastPosition: "Staff Engineer",
		Careers: []domain.Career{
			{Company: "Beta Corp", Position: "Engineer", StartDate: "2016-01"},
		},
	}
	NormalizeRecord(&rec, nil)
	assert.Equal(t, "Acme Inc", rec.LastCompany)
	assert.Equal(t, "Staff Engineer", rec.LastPosition)
}
