// Package anthropic implements the secondary provider client on the
// official Anthropic SDK.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	backoff "github.com/cenkalti/backoff/v4"

	"log/slog"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/config"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

const providerLabel = "secondary"

// Client wraps the Anthropic messages API.
type Client struct {
	cfg    config.Config
	client sdk.Client
}

// New constructs the secondary client. SDK-internal retries are disabled;
// retry policy lives here so all providers behave the same way.
func New(cfg config.Config) *Client {
	return &Client{
		cfg: cfg,
		client: sdk.NewClient(
			option.WithAPIKey(cfg.SecondaryLLMKey),
			option.WithMaxRetries(0),
		),
	}
}

// Name identifies this client to the provider manager.
func (c *Client) Name() domain.AIProvider { return domain.ProviderSecondary }

// GenerateJSON sends one system+user exchange and returns the concatenated
// text blocks. The messages API has no JSON mode; the system prompt pins the
// output shape and the response cleaner strips any strays.
func (c *Client) GenerateJSON(ctx domain.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	if c.cfg.SecondaryLLMKey == "" {
		return "", fmt.Errorf("%w: SECONDARY_LLM_KEY missing", domain.ErrInvalidArgument)
	}
	timeout := c.cfg.LLMTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	model := c.cfg.SecondaryLLMModel
	var content string
	op := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		start := time.Now()
		resp, err := c.client.Messages.New(attemptCtx, sdk.MessageNewParams{
			Model:       sdk.Model(model),
			MaxTokens:   int64(maxTokens),
			Temperature: sdk.Float(0.1),
			System:      []sdk.TextBlockParam{{Text: systemPrompt}},
			Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(userPrompt))},
		})
		observability.LLMRequestDuration.WithLabelValues(providerLabel, "chat").Observe(time.Since(start).Seconds())
		if err != nil {
			return c.classify(err, model)
		}
		var text strings.Builder
		for _, block := range resp.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		if text.Len() == 0 {
			observability.LLMRequestsTotal.WithLabelValues(providerLabel, "chat", "empty").Inc()
			return errors.New("empty message content")
		}
		observability.LLMRequestsTotal.WithLabelValues(providerLabel, "chat", "ok").Inc()
		content = text.String()
		return nil
	}
	if err := backoff.Retry(op, c.newBackOff(ctx)); err != nil {
		return "", fmt.Errorf("op=anthropic.chat: %w", err)
	}
	return content, nil
}

// classify maps SDK errors onto the retry policy: 429 and 5xx retry, other
// 4xx are permanent, transport timeouts retry as upstream timeouts.
func (c *Client) classify(err error, model string) error {
	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == 429:
			observability.LLMRequestsTotal.WithLabelValues(providerLabel, "chat", "rate_limited").Inc()
			slog.Warn("llm provider rate limited",
				slog.String("provider", providerLabel), slog.String("model", model),
				slog.Int("status", apierr.StatusCode))
			return fmt.Errorf("%w: chat status %d", domain.ErrUpstreamRateLimit, apierr.StatusCode)
		case apierr.StatusCode == 408:
			observability.LLMRequestsTotal.WithLabelValues(providerLabel, "chat", "timeout").Inc()
			return fmt.Errorf("%w: chat status %d", domain.ErrUpstreamTimeout, apierr.StatusCode)
		case apierr.StatusCode >= 400 && apierr.StatusCode < 500:
			observability.LLMRequestsTotal.WithLabelValues(providerLabel, "chat", "client_error").Inc()
			slog.Warn("llm provider 4xx",
				slog.String("provider", providerLabel), slog.String("model", model),
				slog.Int("status", apierr.StatusCode))
			return backoff.Permanent(fmt.Errorf("chat status %d: %w", apierr.StatusCode, err))
		default:
			observability.LLMRequestsTotal.WithLabelValues(providerLabel, "chat", "server_error").Inc()
			slog.Error("llm provider non-2xx",
				slog.String("provider", providerLabel), slog.String("model", model),
				slog.Int("status", apierr.StatusCode))
			return err
		}
	}
	observability.LLMRequestsTotal.WithLabelValues(providerLabel, "chat", "network_error").Inc()
	var nerr net.Error
	if (errors.As(err, &nerr) && nerr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
	}
	return err
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
