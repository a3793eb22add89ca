package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/config"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

type fakeGenerator struct {
	name domain.AIProvider
	fn   func(ctx domain.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

func (f *fakeGenerator) Name() domain.AIProvider { return f.name }

func (f *fakeGenerator) GenerateJSON(ctx domain.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	return f.fn(ctx, systemPrompt, userPrompt, maxTokens)
}

type fakeEmbedder struct {
	fn func(ctx domain.Context, text string) ([]float32, error)
}

func (f *fakeEmbedder) Embed(ctx domain.Context, text string) ([]float32, error) {
	return f.fn(ctx, text)
}

func TestManagerGenerateJSONUnknownProvider(t *testing.T) {
	t.Parallel()
	m := NewManager(config.Config{}, nil)
	_, err := m.GenerateJSON(context.Background(), domain.ProviderPrimary, "sys", "user", 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestManagerGenerateJSONSuccess(t *testing.T) {
	t.Parallel()
	gen := &fakeGenerator{name: domain.ProviderPrimary, fn: func(_ domain.Context, _, _ string, _ int) (string, error) {
		return `{"ok":true}`, nil
	}}
	m := NewManager(config.Config{}, nil, gen)
	out, err := m.GenerateJSON(context.Background(), domain.ProviderPrimary, "sys", "user", 100)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
}

func TestManagerGenerateJSONPassesThroughProviderError(t *testing.T) {
	t.Parallel()
	gen := &fakeGenerator{name: domain.ProviderPrimary, fn: func(_ domain.Context, _, _ string, _ int) (string, error) {
		return "", fmt.Errorf("%w: bad payload", domain.ErrSchemaInvalid)
	}}
	m := NewManager(config.Config{CBFailureThreshold: 5}, nil, gen)
	_, err := m.GenerateJSON(context.Background(), domain.ProviderPrimary, "sys", "user", 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSchemaInvalid)
	assert.NotErrorIs(t, err, domain.ErrCircuitOpen)
}

func TestManagerBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()
	calls := 0
	gen := &fakeGenerator{name: domain.ProviderPrimary, fn: func(_ domain.Context, _, _ string, _ int) (string, error) {
		calls++
		return "", errors.New("upstream exploded")
	}}
	m := NewManager(config.Config{CBFailureThreshold: 3, CBCooldown: time.Minute}, nil, gen)

	for i := 0; i < 3; i++ {
		_, err := m.GenerateJSON(context.Background(), domain.ProviderPrimary, "sys", "user", 100)
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrCircuitOpen)
	}
	assert.Equal(t, 3, calls)

	// Threshold reached; the breaker now rejects without calling the provider.
	_, err := m.GenerateJSON(context.Background(), domain.ProviderPrimary, "sys", "user", 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCircuitOpen)
	assert.Equal(t, 3, calls)
}

func TestManagerBreakerRecoversAfterCooldown(t *testing.T) {
	t.Parallel()
	fail := true
	gen := &fakeGenerator{name: domain.ProviderPrimary, fn: func(_ domain.Context, _, _ string, _ int) (string, error) {
		if fail {
			return "", errors.New("upstream exploded")
		}
		return `{"ok":true}`, nil
	}}
	m := NewManager(config.Config{CBFailureThreshold: 2, CBCooldown: 50 * time.Millisecond}, nil, gen)

	for i := 0; i < 2; i++ {
		_, err := m.GenerateJSON(context.Background(), domain.ProviderPrimary, "sys", "user", 100)
		require.Error(t, err)
	}
	_, err := m.GenerateJSON(context.Background(), domain.ProviderPrimary, "sys", "user", 100)
	require.ErrorIs(t, err, domain.ErrCircuitOpen)

	fail = false
	time.Sleep(80 * time.Millisecond)

	// Half-open probe goes through and closes the breaker again.
	out, err := m.GenerateJSON(context.Background(), domain.ProviderPrimary, "sys", "user", 100)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)

	out, err = m.GenerateJSON(context.Background(), domain.ProviderPrimary, "sys", "user", 100)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
}

func TestManagerCanceledCallerDoesNotTripBreaker(t *testing.T) {
	t.Parallel()
	gen := &fakeGenerator{name: domain.ProviderPrimary, fn: func(_ domain.Context, _, _ string, _ int) (string, error) {
		return "", fmt.Errorf("op=test: %w", context.Canceled)
	}}
	m := NewManager(config.Config{CBFailureThreshold: 2, CBCooldown: time.Minute}, nil, gen)

	for i := 0; i < 5; i++ {
		_, err := m.GenerateJSON(context.Background(), domain.ProviderPrimary, "sys", "user", 100)
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrCircuitOpen)
	}
}

func TestManagerAvailableKeepsRegistrationOrder(t *testing.T) {
	t.Parallel()
	ok := func(_ domain.Context, _, _ string, _ int) (string, error) { return "{}", nil }
	m := NewManager(config.Config{},
		nil,
		&fakeGenerator{name: domain.ProviderPrimary, fn: ok},
		&fakeGenerator{name: domain.ProviderSecondary, fn: ok},
		&fakeGenerator{name: domain.ProviderPrimary, fn: ok}, // duplicate, ignored
		&fakeGenerator{name: domain.ProviderTertiary, fn: ok},
	)
	assert.Equal(t, []domain.AIProvider{
		domain.ProviderPrimary,
		domain.ProviderSecondary,
		domain.ProviderTertiary,
	}, m.Available())
}

func TestManagerEmbedNotConfigured(t *testing.T) {
	t.Parallel()
	m := NewManager(config.Config{}, nil)
	_, err := m.Embed(context.Background(), "some resume text")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestManagerEmbedBreakerOpens(t *testing.T) {
	t.Parallel()
	calls := 0
	emb := &fakeEmbedder{fn: func(_ domain.Context, _ string) ([]float32, error) {
		calls++
		return nil, errors.New("embed exploded")
	}}
	m := NewManager(config.Config{CBFailureThreshold: 2, CBCooldown: time.Minute}, emb)

	for i := 0; i < 2; i++ {
		_, err := m.Embed(context.Background(), "text")
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrCircuitOpen)
	}
	_, err := m.Embed(context.Background(), "text")
	require.ErrorIs(t, err, domain.ErrCircuitOpen)
	assert.Equal(t, 2, calls)
}

func TestManagerEmbedSuccess(t *testing.T) {
	t.Parallel()
	emb := &fakeEmbedder{fn: func(_ domain.Context, _ string) ([]float32, error) {
		return []float32{0.1, 0.2, 0.3}, nil
	}}
	m := NewManager(config.Config{}, emb)
	vec, err := m.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Len(t, vec, 3)
}

func TestManagerStates(t *testing.T) {
	t.Parallel()
	gen := &fakeGenerator{name: domain.ProviderPrimary, fn: func(_ domain.Context, _, _ string, _ int) (string, error) {
		return "", errors.New("upstream exploded")
	}}
	m := NewManager(config.Config{CBFailureThreshold: 1, CBCooldown: time.Minute}, nil, gen)

	states := m.States()
	assert.Equal(t, "closed", states[domain.ProviderPrimary])

	_, err := m.GenerateJSON(context.Background(), domain.ProviderPrimary, "sys", "user", 100)
	require.Error(t, err)

	states = m.States()
	assert.Equal(t, "open", states[domain.ProviderPrimary])
}
