// Package openaicompat implements the primary provider client against any
// OpenAI-compatible chat completions and embeddings API.
package openaicompat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"log/slog"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/ai/tokencount"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/config"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

const providerLabel = "primary"

// Client talks to the primary chat endpoint and doubles as the embedding
// backend. The base URL may point at api.openai.com or any compatible
// gateway.
type Client struct {
	cfg     config.Config
	chatHC  *http.Client
	embedHC *http.Client
}

// New constructs the primary client with per-operation timeouts.
func New(cfg config.Config) *Client {
	chatTimeout := cfg.LLMTimeout
	if chatTimeout <= 0 {
		chatTimeout = 120 * time.Second
	}
	embedTimeout := cfg.EmbedTimeout
	if embedTimeout <= 0 {
		embedTimeout = 8 * time.Second
	}
	return &Client{
		cfg:     cfg,
		chatHC:  &http.Client{Timeout: chatTimeout},
		embedHC: &http.Client{Timeout: embedTimeout},
	}
}

// Name identifies this client to the provider manager.
func (c *Client) Name() domain.AIProvider { return domain.ProviderPrimary }

// GenerateJSON calls the chat completions endpoint in JSON mode and returns
// the message content. Timeouts, connection errors, 408, 429 and 5xx retry
// under the configured backoff; other 4xx fail immediately.
func (c *Client) GenerateJSON(ctx domain.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	if c.cfg.PrimaryLLMKey == "" {
		return "", fmt.Errorf("%w: PRIMARY_LLM_KEY missing", domain.ErrInvalidArgument)
	}
	model := c.cfg.PrimaryLLMModel
	body := map[string]any{
		"model":           model,
		"temperature":     0.1,
		"max_tokens":      maxTokens,
		"response_format": map[string]string{"type": "json_object"},
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userPrompt},
		},
	}
	b, _ := json.Marshal(body)
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	endpoint := c.cfg.PrimaryLLMBaseURL + "/chat/completions"
	op := func() error {
		start := time.Now()
		// Recreate the request each attempt; bodies are single-use.
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
		r.Header.Set("Authorization", "Bearer "+c.cfg.PrimaryLLMKey)
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.chatHC.Do(r)
		observability.LLMRequestDuration.WithLabelValues(providerLabel, "chat").Observe(time.Since(start).Seconds())
		if err != nil {
			observability.LLMRequestsTotal.WithLabelValues(providerLabel, "chat", "network_error").Inc()
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
			}
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			observability.LLMRequestsTotal.WithLabelValues(providerLabel, "chat", "read_error").Inc()
			return err
		}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			observability.LLMRequestsTotal.WithLabelValues(providerLabel, "chat", "rate_limited").Inc()
			slog.Warn("llm provider rate limited",
				slog.String("provider", providerLabel), slog.String("op", "chat"),
				slog.Int("status", resp.StatusCode),
				slog.String("x_request_id", resp.Header.Get("X-Request-Id")))
			return fmt.Errorf("%w: chat status %d", domain.ErrUpstreamRateLimit, resp.StatusCode)
		case resp.StatusCode == http.StatusRequestTimeout:
			observability.LLMRequestsTotal.WithLabelValues(providerLabel, "chat", "timeout").Inc()
			return fmt.Errorf("%w: chat status %d", domain.ErrUpstreamTimeout, resp.StatusCode)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			observability.LLMRequestsTotal.WithLabelValues(providerLabel, "chat", "client_error").Inc()
			slog.Warn("llm provider 4xx",
				slog.String("provider", providerLabel), slog.String("op", "chat"),
				slog.Int("status", resp.StatusCode), slog.String("model", model),
				slog.String("endpoint", endpoint),
				slog.String("x_request_id", resp.Header.Get("X-Request-Id")),
				slog.String("body", snippet(bodyBytes)))
			return backoff.Permanent(fmt.Errorf("chat status %d", resp.StatusCode))
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			observability.LLMRequestsTotal.WithLabelValues(providerLabel, "chat", "server_error").Inc()
			slog.Error("llm provider non-2xx",
				slog.String("provider", providerLabel), slog.String("op", "chat"),
				slog.Int("status", resp.StatusCode), slog.String("model", model),
				slog.String("endpoint", endpoint),
				slog.String("x_request_id", resp.Header.Get("X-Request-Id")),
				slog.String("body", snippet(bodyBytes)))
			return fmt.Errorf("chat status %d", resp.StatusCode)
		}
		if err := json.Unmarshal(bodyBytes, &out); err != nil {
			observability.LLMRequestsTotal.WithLabelValues(providerLabel, "chat", "decode_error").Inc()
			slog.Error("llm provider decode error",
				slog.String("provider", providerLabel), slog.String("op", "chat"),
				slog.String("model", model), slog.Any("error", err))
			return err
		}
		observability.LLMRequestsTotal.WithLabelValues(providerLabel, "chat", "ok").Inc()
		return nil
	}
	if err := backoff.Retry(op, c.newBackOff(ctx)); err != nil {
		return "", fmt.Errorf("op=openaicompat.chat: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("op=openaicompat.chat: empty choices")
	}
	content := out.Choices[0].Message.Content
	if usage, err := tokencount.CalculateUsageDefault(systemPrompt, userPrompt, content, model, providerLabel); err == nil {
		slog.Debug("llm token usage",
			slog.String("provider", providerLabel), slog.String("model", model),
			slog.Int("prompt_tokens", usage.PromptTokens),
			slog.Int("completion_tokens", usage.CompletionTokens),
			slog.Int("total_tokens", usage.TotalTokens))
	}
	return content, nil
}

// Embed calls the embeddings endpoint for one text and returns its vector.
func (c *Client) Embed(ctx domain.Context, text string) ([]float32, error) {
	key := c.cfg.EmbeddingKey
	if key == "" {
		key = c.cfg.PrimaryLLMKey
	}
	if key == "" || c.cfg.EmbeddingsModel == "" {
		// Do not log secrets; only indicate presence
		slog.Error("embedding key or model missing",
			slog.Bool("has_api_key", key != ""),
			slog.String("model", c.cfg.EmbeddingsModel))
		return nil, fmt.Errorf("%w: EMBEDDING_KEY or EMBEDDINGS_MODEL missing", domain.ErrInvalidArgument)
	}
	body := map[string]any{
		"model": c.cfg.EmbeddingsModel,
		"input": []string{text},
	}
	b, _ := json.Marshal(body)
	var out struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	endpoint := c.cfg.PrimaryLLMBaseURL + "/embeddings"
	op := func() error {
		start := time.Now()
		r, _ := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
		r.Header.Set("Authorization", "Bearer "+key)
		r.Header.Set("Content-Type", "application/json")
		resp, err := c.embedHC.Do(r)
		observability.LLMRequestDuration.WithLabelValues(providerLabel, "embed").Observe(time.Since(start).Seconds())
		if err != nil {
			observability.LLMRequestsTotal.WithLabelValues(providerLabel, "embed", "network_error").Inc()
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
			}
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			observability.LLMRequestsTotal.WithLabelValues(providerLabel, "embed", "read_error").Inc()
			return err
		}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			observability.LLMRequestsTotal.WithLabelValues(providerLabel, "embed", "rate_limited").Inc()
			slog.Warn("llm provider rate limited",
				slog.String("provider", providerLabel), slog.String("op", "embed"),
				slog.Int("status", resp.StatusCode))
			return fmt.Errorf("%w: embed status %d", domain.ErrUpstreamRateLimit, resp.StatusCode)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			observability.LLMRequestsTotal.WithLabelValues(providerLabel, "embed", "client_error").Inc()
			slog.Warn("llm provider 4xx",
				slog.String("provider", providerLabel), slog.String("op", "embed"),
				slog.Int("status", resp.StatusCode),
				slog.String("model", c.cfg.EmbeddingsModel),
				slog.String("body", snippet(bodyBytes)))
			return backoff.Permanent(fmt.Errorf("embed status %d", resp.StatusCode))
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			observability.LLMRequestsTotal.WithLabelValues(providerLabel, "embed", "server_error").Inc()
			slog.Error("llm provider non-2xx",
				slog.String("provider", providerLabel), slog.String("op", "embed"),
				slog.Int("status", resp.StatusCode),
				slog.String("model", c.cfg.EmbeddingsModel),
				slog.String("body", snippet(bodyBytes)))
			return fmt.Errorf("embed status %d", resp.StatusCode)
		}
		if err := json.Unmarshal(bodyBytes, &out); err != nil {
			observability.LLMRequestsTotal.WithLabelValues(providerLabel, "embed", "decode_error").Inc()
			return err
		}
		observability.LLMRequestsTotal.WithLabelValues(providerLabel, "embed", "ok").Inc()
		return nil
	}
	if err := backoff.Retry(op, c.newBackOff(ctx)); err != nil {
		return nil, fmt.Errorf("op=openaicompat.embed: %w", err)
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("op=openaicompat.embed: empty data")
	}
	vec := make([]float32, len(out.Data[0].Embedding))
	for i, v := range out.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// newBackOff builds the retry policy: bounded attempts, exponential
// intervals, 20% jitter.
func (c *Client) newBackOff(ctx domain.Context) backoff.BackOff {
	maxRetries, initial, maxInterval, multiplier := c.cfg.GetLLMBackoffConfig()
	if maxRetries < 0 {
		maxRetries = 0
	}
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = initial
	expo.MaxInterval = maxInterval
	expo.Multiplier = multiplier
	expo.RandomizationFactor = 0.2
	return backoff.WithMaxRetries(backoff.WithContext(expo, ctx), uint64(maxRetries))
}

func snippet(b []byte) string {
	if len(b) > 512 {
		b = b[:512]
	}
	return string(b)
}
