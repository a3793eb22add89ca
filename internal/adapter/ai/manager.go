// Package ai fans analysis calls out to the configured model providers and
// guards each one with a circuit breaker.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/adapter/observability"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/config"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// Generator is one configured model backend able to return schema-bound JSON.
type Generator interface {
	Name() domain.AIProvider
	GenerateJSON(ctx domain.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

// Embedder produces one embedding vector per text.
type Embedder interface {
	Embed(ctx domain.Context, text string) ([]float32, error)
}

// Manager implements domain.AIClient over a set of provider clients. Every
// provider runs behind its own breaker so a flapping backend cannot burn the
// job wall clock; callers receive domain.ErrCircuitOpen while a breaker is
// open and are expected to continue with the remaining providers.
type Manager struct {
	order        []domain.AIProvider
	clients      map[domain.AIProvider]Generator
	breakers     map[domain.AIProvider]*gobreaker.CircuitBreaker
	embedder     Embedder
	embedBreaker *gobreaker.CircuitBreaker
}

// NewManager wires the given provider clients, primary first. Clients without
// credentials should not be passed in; Available reflects exactly what was
// registered. embedder may be nil when embeddings are not configured.
func NewManager(cfg config.Config, embedder Embedder, clients ...Generator) *Manager {
	m := &Manager{
		clients:  make(map[domain.AIProvider]Generator, len(clients)),
		breakers: make(map[domain.AIProvider]*gobreaker.CircuitBreaker, len(clients)),
		embedder: embedder,
	}
	for _, c := range clients {
		name := c.Name()
		if _, dup := m.clients[name]; dup {
			continue
		}
		m.order = append(m.order, name)
		m.clients[name] = c
		m.breakers[name] = newBreaker(cfg, string(name))
	}
	if embedder != nil {
		m.embedBreaker = newBreaker(cfg, "embedding")
	}
	return m
}

func newBreaker(cfg config.Config, name string) *gobreaker.CircuitBreaker {
	threshold := cfg.CBFailureThreshold
	if threshold <= 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.CBCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(threshold)
		},
		IsSuccessful: func(err error) bool {
			// A canceled caller is not a provider fault.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			// gobreaker orders states closed(0), half-open(1), open(2).
			observability.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			slog.Warn("llm circuit breaker state change",
				slog.String("provider", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
}

// GenerateJSON calls the named provider through its breaker.
func (m *Manager) GenerateJSON(ctx domain.Context, provider domain.AIProvider, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	client, ok := m.clients[provider]
	if !ok {
		return "", fmt.Errorf("%w: provider %s not configured", domain.ErrInvalidArgument, provider)
	}
	out, err := m.breakers[provider].Execute(func() (any, error) {
		return client.GenerateJSON(ctx, systemPrompt, userPrompt, maxTokens)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: provider %s", domain.ErrCircuitOpen, provider)
		}
		return "", err
	}
	return out.(string), nil
}

// Embed produces the embedding vector for one text through the embedding
// breaker.
func (m *Manager) Embed(ctx domain.Context, text string) ([]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("%w: embeddings not configured", domain.ErrInvalidArgument)
	}
	out, err := m.embedBreaker.Execute(func() (any, error) {
		return m.embedder.Embed(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: embedding", domain.ErrCircuitOpen)
		}
		return nil, err
	}
	return out.([]float32), nil
}

// Available lists the registered providers in registration order, primary
// first. Breaker state does not remove a provider from this list; callers
// learn about an open breaker from the GenerateJSON error.
func (m *Manager) Available() []domain.AIProvider {
	out := make([]domain.AIProvider, len(m.order))
	copy(out, m.order)
	return out
}

// States reports the breaker state per provider for the readiness payload.
func (m *Manager) States() map[domain.AIProvider]string {
	states := make(map[domain.AIProvider]string, len(m.breakers))
	for name, cb := range m.breakers {
		states[name] = cb.State().String()
	}
	return states
}
