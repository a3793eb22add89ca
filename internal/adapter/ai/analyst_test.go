package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

type fakeAIClient struct {
	available []domain.AIProvider
	generate  func(provider domain.AIProvider, systemPrompt, userPrompt string, maxTokens int) (string, error)
	embed     func(text string) ([]float32, error)
}

func (f *fakeAIClient) GenerateJSON(_ domain.Context, provider domain.AIProvider, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	return f.generate(provider, systemPrompt, userPrompt, maxTokens)
}

func (f *fakeAIClient) Embed(_ domain.Context, text string) ([]float32, error) {
	return f.embed(text)
}

func (f *fakeAIClient) Available() []domain.AIProvider { return f.available }

func TestAnalyst_ExtractProfile(t *testing.T) {
	t.Parallel()

	calls := 0
	a := NewAnalyst(&fakeAIClient{
		available: []domain.AIProvider{domain.ProviderPrimary},
		generate: func(provider domain.AIProvider, _, userPrompt string, maxTokens int) (string, error) {
			calls++
			assert.Equal(t, domain.ProviderPrimary, provider)
			assert.Contains(t, userPrompt, "Hong Gildong resume text")
			assert.Equal(t, extractionMaxTokens, maxTokens)
			return `{"name":"Hong Gildong","exp_years":5.5,"skills":["Go"]}`, nil
		},
	})

	rec, err := a.ExtractProfile(context.Background(), domain.ProviderPrimary, "Hong Gildong resume text")
	require.NoError(t, err)
	assert.Equal(t, "Hong Gildong", rec.Name)
	assert.InDelta(t, 5.5, rec.ExpYears, 0.001)
	assert.Equal(t, 1, calls)
}

func TestAnalyst_ExtractProfile_RepairsOnce(t *testing.T) {
	t.Parallel()

	var prompts []string
	a := NewAnalyst(&fakeAIClient{
		generate: func(_ domain.AIProvider, _, userPrompt string, _ int) (string, error) {
			prompts = append(prompts, userPrompt)
			if len(prompts) == 1 {
				return `not json at all`, nil
			}
			return `{"name":"Kim Minsu"}`, nil
		},
	})

	rec, err := a.ExtractProfile(context.Background(), domain.ProviderPrimary, "text")
	require.NoError(t, err)
	assert.Equal(t, "Kim Minsu", rec.Name)
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], "failed validation")
	assert.Contains(t, prompts[1], "corrected JSON")
}

func TestAnalyst_ExtractProfile_RepairExhausted(t *testing.T) {
	t.Parallel()

	calls := 0
	a := NewAnalyst(&fakeAIClient{
		generate: func(_ domain.AIProvider, _, _ string, _ int) (string, error) {
			calls++
			return `still not json`, nil
		},
	})

	_, err := a.ExtractProfile(context.Background(), domain.ProviderPrimary, "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
	assert.Equal(t, 2, calls)
}

func TestAnalyst_ExtractProfile_TransportErrorNoRepair(t *testing.T) {
	t.Parallel()

	calls := 0
	a := NewAnalyst(&fakeAIClient{
		generate: func(_ domain.AIProvider, _, _ string, _ int) (string, error) {
			calls++
			return "", domain.ErrUpstreamTimeout
		},
	})

	_, err := a.ExtractProfile(context.Background(), domain.ProviderPrimary, "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamTimeout)
	assert.Equal(t, 1, calls, "transport errors must not trigger a repair re-prompt")
}

func TestAnalyst_ClassifyDocument(t *testing.T) {
	t.Parallel()

	a := NewAnalyst(&fakeAIClient{
		available: []domain.AIProvider{domain.ProviderPrimary, domain.ProviderSecondary},
		generate: func(provider domain.AIProvider, systemPrompt, _ string, maxTokens int) (string, error) {
			assert.Equal(t, domain.ProviderPrimary, provider, "verdicts run on the first available provider")
			assert.Contains(t, systemPrompt, "document_type")
			assert.Equal(t, verdictMaxTokens, maxTokens)
			return `{"document_type":"resume","confidence":0.93}`, nil
		},
	})

	docType, confidence, err := a.ClassifyDocument(context.Background(), "some resume text")
	require.NoError(t, err)
	assert.Equal(t, "resume", docType)
	assert.InDelta(t, 0.93, confidence, 0.001)
}

func TestAnalyst_ClassifyDocument_NoProviders(t *testing.T) {
	t.Parallel()

	a := NewAnalyst(&fakeAIClient{available: nil})

	_, _, err := a.ClassifyDocument(context.Background(), "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestAnalyst_CountPersons(t *testing.T) {
	t.Parallel()

	a := NewAnalyst(&fakeAIClient{
		available: []domain.AIProvider{domain.ProviderPrimary},
		generate: func(_ domain.AIProvider, systemPrompt, _ string, _ int) (string, error) {
			assert.Contains(t, systemPrompt, "person_count")
			return `{"person_count":2,"primary_name":"Lee Jiwon"}`, nil
		},
	})

	count, name, err := a.CountPersons(context.Background(), "text about two people")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, "Lee Jiwon", name)
}

func TestAnalyst_FillGaps(t *testing.T) {
	t.Parallel()

	t.Run("empty missing list skips the call", func(t *testing.T) {
		t.Parallel()
		a := NewAnalyst(&fakeAIClient{
			generate: func(_ domain.AIProvider, _, _ string, _ int) (string, error) {
				t.Fatal("no call expected")
				return "", nil
			},
		})
		rec, err := a.FillGaps(context.Background(), domain.ProviderPrimary, "text", nil)
		require.NoError(t, err)
		assert.Empty(t, rec.Name)
	})

	t.Run("returns partial record", func(t *testing.T) {
		t.Parallel()
		a := NewAnalyst(&fakeAIClient{
			generate: func(_ domain.AIProvider, systemPrompt, userPrompt string, maxTokens int) (string, error) {
				assert.Contains(t, systemPrompt, "second pass")
				assert.Contains(t, userPrompt, "last_company")
				assert.Contains(t, userPrompt, "exp_years")
				assert.Equal(t, gapFillMaxTokens, maxTokens)
				return `{"last_company":"Naver","exp_years":3}`, nil
			},
		})
		rec, err := a.FillGaps(context.Background(), domain.ProviderPrimary, "text", []string{"last_company", "exp_years"})
		require.NoError(t, err)
		assert.Equal(t, "Naver", rec.LastCompany)
		assert.InDelta(t, 3.0, rec.ExpYears, 0.001)
		assert.Empty(t, rec.Name, "fields not asked for stay zero")
	})
}

func TestAnalyst_Embed(t *testing.T) {
	t.Parallel()

	a := NewAnalyst(&fakeAIClient{
		embed: func(text string) ([]float32, error) {
			assert.Equal(t, "candidate summary", text)
			return []float32{0.25, -0.5}, nil
		},
	})

	vec, err := a.Embed(context.Background(), "candidate summary")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5}, vec)
}

func TestAnalyst_Available(t *testing.T) {
	t.Parallel()

	a := NewAnalyst(&fakeAIClient{available: []domain.AIProvider{domain.ProviderPrimary, domain.ProviderTertiary}})
	assert.Equal(t, []domain.AIProvider{domain.ProviderPrimary, domain.ProviderTertiary}, a.Available())
}
