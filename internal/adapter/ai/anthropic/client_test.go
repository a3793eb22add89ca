package anthropic

import (
	"context"
	"errors"
	"fmt"
	"testing"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/config"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestNameReportsSecondary(t *testing.T) {
	t.Parallel()
	c := New(config.Config{SecondaryLLMKey: "key"})
	assert.Equal(t, domain.ProviderSecondary, c.Name())
}

func TestGenerateJSONMissingKey(t *testing.T) {
	t.Parallel()
	c := New(config.Config{})
	_, err := c.GenerateJSON(context.Background(), "sys", "user", 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestClassifyTransportTimeout(t *testing.T) {
	t.Parallel()
	c := New(config.Config{SecondaryLLMKey: "key"})
	err := c.classify(timeoutErr{}, "claude-sonnet-4-20250514")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamTimeout)

	var perm *backoff.PermanentError
	assert.False(t, errors.As(err, &perm), "timeouts must stay retryable")
}

func TestClassifyDeadlineExceeded(t *testing.T) {
	t.Parallel()
	c := New(config.Config{SecondaryLLMKey: "key"})
	err := c.classify(fmt.Errorf("request: %w", context.DeadlineExceeded), "claude-sonnet-4-20250514")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamTimeout)
}

func TestClassifyPassesThroughUnknownErrors(t *testing.T) {
	t.Parallel()
	c := New(config.Config{SecondaryLLMKey: "key"})
	cause := errors.New("stream interrupted")
	err := c.classify(cause, "claude-sonnet-4-20250514")
	assert.Equal(t, cause, err)

	var perm *backoff.PermanentError
	assert.False(t, errors.As(err, &perm), "unknown errors must stay retryable")
}
