// Package gemini implements the tertiary provider client on the Google
// genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"google.golang.org/genai"

	"log/slog"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/config"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

const providerLabel = "tertiary"

// Client wraps the Gemini generate-content API.
type Client struct {
	cfg    config.Config
	client *genai.Client
}

// New constructs the tertiary client against the Gemini API backend.
func New(ctx domain.Context, cfg config.Config) (*Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.TertiaryLLMKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("op=gemini.new: %w", err)
	}
	return &Client{cfg: cfg, client: client}, nil
}

// Name identifies this client to the provider manager.
func (c *Client) Name() domain.AIProvider { return domain.ProviderTertiary }

// GenerateJSON sends one exchange with the JSON response MIME type set.
// maxTokens is advisory for this provider; Gemini bounds output by model.
func (c *Client) GenerateJSON(ctx domain.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	if c.cfg.TertiaryLLMKey == "" {
		return "", fmt.Errorf("%w: TERTIARY_LLM_KEY missing", domain.ErrInvalidArgument)
	}
	timeout := c.cfg.LLMTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	model := c.cfg.TertiaryLLMModel
	genConfig := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(float32(0.1)),
		ResponseMIMEType:  "application/json",
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}
	contents := []*genai.Content{genai.NewContentFromText(userPrompt, genai.RoleUser)}
	var content string
	op := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		start := time.Now()
		resp, err := c.client.Models.GenerateContent(attemptCtx, model, contents, genConfig)
		observability.LLMRequestDuration.WithLabelValues(providerLabel, "chat").Observe(time.Since(start).Seconds())
		if err != nil {
			return c.classify(err, model)
		}
		if resp == nil || len(resp.Candidates) == 0 || resp.Text() == "" {
			observability.LLMRequestsTotal.WithLabelValues(providerLabel, "chat", "empty").Inc()
			return errors.New("empty candidates")
		}
		observability.LLMRequestsTotal.WithLabelValues(providerLabel, "chat", "ok").Inc()
		content = resp.Text()
		return nil
	}
	if err := backoff.Retry(op, c.newBackOff(ctx)); err != nil {
		return "", fmt.Errorf("op=gemini.chat: %w", err)
	}
	return content, nil
}

// classify maps genai errors onto the retry policy. The SDK surfaces HTTP
// status through the error string, so matching follows the documented
// status names.
func (c *Client) classify(err error, model string) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(msg, "quota"):
		observability.LLMRequestsTotal.WithLabelValues(providerLabel, "chat", "rate_limited").Inc()
		slog.Warn("llm provider rate limited",
			slog.String("provider", providerLabel), slog.String("model", model))
		return fmt.Errorf("%w: %v", domain.ErrUpstreamRateLimit, err)
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "DEADLINE_EXCEEDED"):
		observability.LLMRequestsTotal.WithLabelValues(providerLabel, "chat", "timeout").Inc()
		return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
	case strings.Contains(msg, "INVALID_ARGUMENT") || strings.Contains(msg, "PERMISSION_DENIED") ||
		strings.Contains(msg, "NOT_FOUND") || strings.Contains(msg, "UNAUTHENTICATED"):
		observability.LLMRequestsTotal.WithLabelValues(providerLabel, "chat", "client_error").Inc()
		slog.Warn("llm provider 4xx",
			slog.String("provider", providerLabel), slog.String("model", model),
			slog.Any("error", err))
		return backoff.Permanent(err)
	default:
		observability.LLMRequestsTotal.WithLabelValues(providerLabel, "chat", "server_error").Inc()
		slog.Error("llm provider error",
			slog.String("provider", providerLabel), slog.String("model", model),
			slog.Any("error", err))
		return err
	}
}

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
