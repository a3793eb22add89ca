package tokencount

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountTokens(t *testing.T) {
	t.Parallel()

	counter := NewCounter()

	tests := []struct {
		name     string
		text     string
		model    string
		minCount int
		maxCount int
	}{
		{
			name:     "simple text with gpt-4o-mini",
			text:     "Hello, world!",
			model:    "gpt-4o-mini",
			minCount: 3,
			maxCount: 5,
		},
		{
			name:     "longer text",
			text:     "The quick brown fox jumps over the lazy dog.",
			model:    "gpt-4o-mini",
			minCount: 8,
			maxCount: 12,
		},
		{
			name:     "claude model approximated with cl100k_base",
			text:     "Hello, world!",
			model:    "claude-sonnet-4-20250514",
			minCount: 3,
			maxCount: 5,
		},
		{
			name:     "gateway model id with org prefix",
			text:     "Testing token counting",
			model:    "openai/gpt-4o-mini",
			minCount: 3,
			maxCount: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := counter.CountTokens(tt.text, tt.model)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, count, tt.minCount, "token count should be at least %d", tt.minCount)
			assert.LessOrEqual(t, count, tt.maxCount, "token count should be at most %d", tt.maxCount)
		})
	}
}

func TestCountChatTokensIncludesOverhead(t *testing.T) {
	t.Parallel()

	counter := NewCounter()

	systemPrompt := "You are a resume parser."
	userPrompt := "Extract from this resume: Kim Minsu, Backend Engineer."

	count, err := counter.CountChatTokens(systemPrompt, userPrompt, "gpt-4o-mini")
	require.NoError(t, err)

	textOnly, err := counter.CountTokens(systemPrompt+userPrompt, "gpt-4o-mini")
	require.NoError(t, err)
	assert.Greater(t, count, textOnly, "chat tokens should include per-message overhead")

	// Empty prompts still carry the priming overhead.
	count, err = counter.CountChatTokens("", "", "gpt-4o-mini")
	require.NoError(t, err)
	assert.Greater(t, count, 0)
}

func TestNormalizeModelName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"gpt-4", "gpt-4"},
		{"gpt-4o-mini", "gpt-4"},
		{"gpt-3.5-turbo", "gpt-3.5-turbo"},
		{"claude-sonnet-4-20250514", "gpt-4"},
		{"gemini-2.0-flash", "gpt-4"},
		{"openai/gpt-4o-mini", "gpt-4"},
		{"anthropic/claude-3-haiku", "gpt-4"},
		{"meta-llama/llama-3.1-8b-instruct", "gpt-4"},
		{"unknown-model", "gpt-4"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeModelName(tt.input))
		})
	}
}

func TestTruncateForModel(t *testing.T) {
	t.Parallel()

	counter := NewCounter()

	t.Run("short text unchanged", func(t *testing.T) {
		t.Parallel()
		text := "A short resume line."
		assert.Equal(t, text, counter.TruncateForModel(text, "gpt-4", 1000))
	})

	t.Run("long text cut to budget", func(t *testing.T) {
		t.Parallel()
		text := strings.Repeat("worked on distributed ingestion pipelines ", 2000)
		out := counter.TruncateForModel(text, "gpt-4", 500)
		assert.Less(t, len(out), len(text))

		// Re-encoding the kept text lands on the budget give or take a
		// merge at the cut point.
		count, err := counter.CountTokens(out, "gpt-4")
		require.NoError(t, err)
		assert.InDelta(t, 500, count, 5)
	})

	t.Run("multibyte text stays valid utf8", func(t *testing.T) {
		t.Parallel()
		text := strings.Repeat("백엔드 엔지니어로 분산 시스템을 개발했습니다. ", 500)
		out := counter.TruncateForModel(text, "gpt-4", 200)
		assert.Less(t, len(out), len(text))
		assert.True(t, utf8.ValidString(out))
	})

	t.Run("zero budget empties the text", func(t *testing.T) {
		t.Parallel()
		out := counter.TruncateForModel("anything at all", "gpt-4", 0)
		assert.Empty(t, out)
	})
}

func TestTruncatePackageHelper(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("resume content ", 5000)
	out := Truncate(text, 100)
	assert.Less(t, len(out), len(text))

	count, err := CountTokensDefault(out, "gpt-4")
	require.NoError(t, err)
	assert.InDelta(t, 100, count, 3)
}

func TestCalculateUsage(t *testing.T) {
	t.Parallel()

	counter := NewCounter()

	usage, err := counter.CalculateUsage(
		"You are a resume parser.",
		"Extract from: Kim Minsu, Backend Engineer at Acme.",
		`{"name":"Kim Minsu","last_position":"Backend Engineer"}`,
		"gpt-4o-mini",
		"primary",
	)
	require.NoError(t, err)

	assert.Greater(t, usage.PromptTokens, 0)
	assert.Greater(t, usage.CompletionTokens, 0)
	assert.Equal(t, usage.PromptTokens+usage.CompletionTokens, usage.TotalTokens)
	assert.Equal(t, "gpt-4o-mini", usage.Model)
	assert.Equal(t, "primary", usage.Provider)
}

func TestCalculateUsageWithEmptyCompletion(t *testing.T) {
	t.Parallel()

	counter := NewCounter()

	usage, err := counter.CalculateUsage("", "", "", "gpt-4o-mini", "primary")
	require.NoError(t, err)
	assert.NotNil(t, usage)
	assert.Equal(t, 0, usage.CompletionTokens)
	assert.GreaterOrEqual(t, usage.PromptTokens, 0)
}

func TestDefaultCounterHelpers(t *testing.T) {
	t.Parallel()

	count, err := CountTokensDefault("Hello, world!", "gpt-4")
	require.NoError(t, err)
	assert.Greater(t, count, 0)

	usage, err := CalculateUsageDefault("System", "User", "Response", "gpt-4", "primary")
	require.NoError(t, err)
	assert.Greater(t, usage.TotalTokens, 0)
}

func TestEncodingCacheReuse(t *testing.T) {
	t.Parallel()

	counter := NewCounter()

	count1, err := counter.CountTokens("Hello", "gpt-4")
	require.NoError(t, err)
	count2, err := counter.CountTokens("Hello", "gpt-4")
	require.NoError(t, err)
	assert.Equal(t, count1, count2)
}

func TestCountTokensSpecialCharacters(t *testing.T) {
	t.Parallel()

	counter := NewCounter()

	tests := []struct {
		name string
		text string
	}{
		{"korean", "김민수 백엔드 엔지니어"},
		{"mixed", "Backend 엔지니어 (2019–2024)"},
		{"json", `{"name": "Kim", "exp_years": 5.5}`},
		{"newlines", "Line 1\nLine 2\nLine 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := counter.CountTokens(tt.text, "gpt-4")
			require.NoError(t, err)
			assert.Greater(t, count, 0)
		})
	}
}
