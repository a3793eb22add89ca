package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

func TestCleanJSONResponse(t *testing.T) {
	t.Parallel()
	rc := NewResponseCleaner()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain json unchanged",
			input:    `{"name":"Kim"}`,
			expected: `{"name":"Kim"}`,
		},
		{
			name:     "fenced json block",
			input:    "```json\n{\"name\":\"Kim\"}\n```",
			expected: `{"name":"Kim"}`,
		},
		{
			name:     "fence without language tag",
			input:    "```\n{\"name\":\"Kim\"}\n```",
			expected: `{"name":"Kim"}`,
		},
		{
			name:     "prose around the object",
			input:    "Here is the extraction you asked for:\n{\"name\":\"Kim\"}\nLet me know if you need anything else.",
			expected: `{"name":"Kim"}`,
		},
		{
			name:     "trailing commas repaired",
			input:    `{"skills":["Go","SQL",],"name":"Kim",}`,
			expected: `{"skills":["Go","SQL"],"name":"Kim"}`,
		},
		{
			name:     "braces inside string values do not truncate",
			input:    `before {"summary":"built {json} tooling","name":"Kim"} after`,
			expected: `{"summary":"built {json} tooling","name":"Kim"}`,
		},
		{
			name:     "escaped quotes inside strings",
			input:    `{"summary":"said \"hello {world}\"","name":"Kim"}`,
			expected: `{"summary":"said \"hello {world}\"","name":"Kim"}`,
		},
		{
			name:     "nested objects kept whole",
			input:    `{"careers":[{"company":"Acme","position":"Dev"}]}`,
			expected: `{"careers":[{"company":"Acme","position":"Dev"}]}`,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := rc.CleanJSONResponse(tt.input)
			assert.Equal(t, tt.expected, got)
			assert.True(t, rc.IsValidJSON(got), "cleaned output must be valid JSON")
		})
	}
}

func TestIsValidJSON(t *testing.T) {
	t.Parallel()
	rc := NewResponseCleaner()
	assert.True(t, rc.IsValidJSON(`{"a":1}`))
	assert.True(t, rc.IsValidJSON(`[1,2,3]`))
	assert.False(t, rc.IsValidJSON(`{"a":1`))
	assert.False(t, rc.IsValidJSON(`not json`))
	assert.False(t, rc.IsValidJSON(""))
}

func TestIsRefusal(t *testing.T) {
	t.Parallel()
	assert.True(t, IsRefusal("I'm sorry, but I cannot process personal documents."))
	assert.True(t, IsRefusal("As an AI, I am unable to extract private information."))
	assert.True(t, IsRefusal("Unfortunately I can't help with that request."))
	assert.False(t, IsRefusal(`{"name":"Kim","summary":"I cannot overstate the impact."}`))
	assert.False(t, IsRefusal(`{"name":"Kim"}`))
	assert.False(t, IsRefusal(""))
}

func TestParseExtraction(t *testing.T) {
	t.Parallel()

	t.Run("full record", func(t *testing.T) {
		t.Parallel()
		raw := "```json\n" + `{
			"name": "Kim Minsu",
			"phone": "010-1234-5678",
			"email": "minsu@example.com",
			"address": "Seoul",
			"last_position": "Backend Engineer",
			"last_company": "Acme",
			"exp_years": 5.5,
			"skills": [" Go ", "PostgreSQL", ""],
			"careers": [
				{"company": "Acme", "position": "Backend Engineer", "start_date": "2021-03", "end_date": "", "description": "APIs"}
			],
			"education": [
				{"school": "Hankuk University", "degree": "BS", "major": "CS", "start_date": "2014-03", "end_date": "2018-02"}
			],
			"projects": [],
			"summary": "Experienced backend engineer."
		}` + "\n```"
		rec, err := ParseExtraction(raw)
		require.NoError(t, err)
		assert.Equal(t, "Kim Minsu", rec.Name)
		assert.InDelta(t, 5.5, rec.ExpYears, 0.001)
		assert.Equal(t, []string{"Go", "PostgreSQL"}, rec.Skills)
		require.Len(t, rec.Careers, 1)
		assert.Equal(t, "Acme", rec.Careers[0].Company)
	})

	t.Run("empty response", func(t *testing.T) {
		t.Parallel()
		_, err := ParseExtraction("")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
	})

	t.Run("refusal", func(t *testing.T) {
		t.Parallel()
		_, err := ParseExtraction("I'm sorry, I cannot extract personal data from this document.")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
	})

	t.Run("malformed json", func(t *testing.T) {
		t.Parallel()
		_, err := ParseExtraction(`{"name": "Kim", "skills": [`)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
	})

	t.Run("exp_years out of range", func(t *testing.T) {
		t.Parallel()
		_, err := ParseExtraction(`{"name":"Kim","exp_years":99}`)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
		assert.Contains(t, err.Error(), "exp_years")
	})

	t.Run("negative exp_years rejected", func(t *testing.T) {
		t.Parallel()
		_, err := ParseExtraction(`{"name":"Kim","exp_years":-1}`)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
	})

	t.Run("career without company or position rejected", func(t *testing.T) {
		t.Parallel()
		_, err := ParseExtraction(`{"name":"Kim","careers":[{"company":"","position":"","description":"?"}]}`)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
	})

	t.Run("missing fields default to zero values", func(t *testing.T) {
		t.Parallel()
		rec, err := ParseExtraction(`{"name":"Kim"}`)
		require.NoError(t, err)
		assert.Equal(t, "Kim", rec.Name)
		assert.Empty(t, rec.Phone)
		assert.Zero(t, rec.ExpYears)
		assert.Empty(t, rec.Skills)
	})
}

func TestParseClassification(t *testing.T) {
	t.Parallel()

	cls, err := ParseClassification("```json\n{\"document_type\":\"resume\",\"confidence\":0.97}\n```")
	require.NoError(t, err)
	assert.Equal(t, "resume", cls.DocumentType)
	assert.InDelta(t, 0.97, cls.Confidence, 0.001)

	_, err = ParseClassification(`{"document_type":"resume","confidence":1.4}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchemaInvalid)

	_, err = ParseClassification("not json at all")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
}

func TestParseIdentity(t *testing.T) {
	t.Parallel()

	id, err := ParseIdentity(`{"person_count":1,"primary_name":"Kim Minsu"}`)
	require.NoError(t, err)
	assert.Equal(t, 1, id.PersonCount)
	assert.Equal(t, "Kim Minsu", id.PrimaryName)

	id, err = ParseIdentity(`{"person_count":3,"primary_name":"Kim Minsu"}`)
	require.NoError(t, err)
	assert.Equal(t, 3, id.PersonCount)

	_, err = ParseIdentity(`{"person_count":-2}`)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
}
