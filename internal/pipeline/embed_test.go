package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

func TestEmbed_ReturnsVector(t *testing.T) {
	t.Parallel()
	job := testJob()
	f := newFixture(t, job)
	want := make([]float32, embeddingDim)
	want[0], want[1] = 0.5, 0.25
	f.analyst.embedFn = func(text string) ([]float32, error) {
		assert.Contains(t, text, "Backend Engineer")
		return want, nil
	}

	vec, warn := f.p.embed(context.Background(), &job, sampleRecord())
	assert.Nil(t, warn)
	assert.Equal(t, want, vec)
}

func TestEmbed_WrongDimensionWarnsInsteadOfFailing(t *testing.T) {
	t.Parallel()
	job := testJob()
	f := newFixture(t, job)
	f.analyst.embedFn = func(string) ([]float32, error) {
		return make([]float32, 768), nil
	}

	vec, warn := f.p.embed(context.Background(), &job, sampleRecord())
	assert.Nil(t, vec)
	require.NotNil(t, warn)
	assert.Equal(t, domain.WarningEmbeddingFailed, warn.Type)
	assert.Contains(t, warn.Message, "768")
	assert.Contains(t, warn.Message, "1536")
}

func TestEmbed_FailureWarnsInsteadOfFailing(t *testing.T) {
	t.Parallel()
	job := testJob()
	f := newFixture(t, job)
	f.analyst.embedFn = func(string) ([]float32, error) {
		return nil, errors.New("embeddings endpoint 503")
	}

	vec, warn := f.p.embed(context.Background(), &job, sampleRecord())
	assert.Nil(t, vec)
	require.NotNil(t, warn)
	assert.Equal(t, domain.WarningEmbeddingFailed, warn.Type)
	assert.Contains(t, warn.Message, "503")
}

func TestEmbeddingText_ExcludesIdentity(t *testing.T) {
	t.Parallel()
	rec := sampleRecord()
	text := embeddingText(rec)

	assert.NotContains(t, text, "Hong Gildong")
	assert.NotContains(t, text, "hong.gildong")
	assert.NotContains(t, text, "1234")

	assert.Contains(t, text, "Backend Engineer")
	assert.Contains(t, text, "Acme Inc")
	assert.Contains(t, text, "7.0 years experience")
	assert.Contains(t, text, "Go, PostgreSQL, Kafka")
	assert.Contains(t, text, rec.Summary)
}

func TestEmbeddingText_SkipsEmptyParts(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "Go", embeddingText(domain.ExtractionRecord{Skills: []string{"Go"}}))
	assert.Empty(t, embeddingText(domain.ExtractionRecord{}))
}
