package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/config"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

func testConfig(baseURL string) config.Config {
	return config.Config{
		AppEnv:            "test",
		PrimaryLLMKey:     "test-key",
		PrimaryLLMBaseURL: baseURL,
		PrimaryLLMModel:   "gpt-4o-mini",
		EmbeddingsModel:   "text-embedding-3-small",
		LLMTimeout:        2 * time.Second,
		EmbedTimeout:      2 * time.Second,
		LLMMaxRetries:     2,
	}
}

func chatResponse(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(b)
}

func TestGenerateJSONSuccess(t *testing.T) {
	t.Parallel()
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(chatResponse(`{"name":"Kim"}`)))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	out, err := c.GenerateJSON(context.Background(), "system prompt", "user prompt", 2048)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Kim"}`, out)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotBody["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, gotBody["response_format"])

	msgs, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
}

func TestGenerateJSONMissingKey(t *testing.T) {
	t.Parallel()
	cfg := testConfig("http://localhost:0")
	cfg.PrimaryLLMKey = ""
	c := New(cfg)
	_, err := c.GenerateJSON(context.Background(), "sys", "user", 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestGenerateJSONClientErrorDoesNotRetry(t *testing.T) {
	t.Parallel()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad request"}}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	_, err := c.GenerateJSON(context.Background(), "sys", "user", 100)
	require.Error(t, err)
	assert.Equal(t, 1, calls, "4xx must not retry")
}

func TestGenerateJSONRetriesOnRateLimit(t *testing.T) {
	t.Parallel()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(chatResponse(`{"ok":true}`)))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	out, err := c.GenerateJSON(context.Background(), "sys", "user", 100)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, 2, calls)
}

func TestGenerateJSONRetriesOnServerError(t *testing.T) {
	t.Parallel()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(chatResponse(`{"ok":true}`)))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	out, err := c.GenerateJSON(context.Background(), "sys", "user", 100)
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, 3, calls)
}

func TestGenerateJSONRateLimitExhaustsRetries(t *testing.T) {
	t.Parallel()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	_, err := c.GenerateJSON(context.Background(), "sys", "user", 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamRateLimit)
	assert.Equal(t, 3, calls, "initial attempt plus two retries")
}

func TestGenerateJSONEmptyChoices(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	_, err := c.GenerateJSON(context.Background(), "sys", "user", 100)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty choices")
}

func TestEmbedSuccess(t *testing.T) {
	t.Parallel()
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		b, _ := json.Marshal(map[string]any{
			"data": []map[string]any{
				{"embedding": []float64{0.25, -0.5, 1.0}},
			},
		})
		_, _ = w.Write(b)
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	vec, err := c.Embed(context.Background(), "resume text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5, 1.0}, vec)
	assert.Equal(t, "text-embedding-3-small", gotBody["model"])
	assert.Equal(t, []any{"resume text"}, gotBody["input"])
}

func TestEmbedFallsBackToPrimaryKey(t *testing.T) {
	t.Parallel()
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		b, _ := json.Marshal(map[string]any{
			"data": []map[string]any{{"embedding": []float64{0.1}}},
		})
		_, _ = w.Write(b)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.EmbeddingKey = ""
	c := New(cfg)
	_, err := c.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-key", gotAuth)

	cfg.EmbeddingKey = "embed-key"
	c = New(cfg)
	_, err = c.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, "Bearer embed-key", gotAuth)
}

func TestEmbedMissingConfig(t *testing.T) {
	t.Parallel()
	cfg := testConfig("http://localhost:0")
	cfg.PrimaryLLMKey = ""
	cfg.EmbeddingKey = ""
	c := New(cfg)
	_, err := c.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestEmbedEmptyData(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := New(testConfig(srv.URL))
	_, err := c.Embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty data")
}

func TestNameReportsPrimary(t *testing.T) {
	t.Parallel()
	c := New(config.Config{})
	assert.Equal(t, domain.ProviderPrimary, c.Name())
}
