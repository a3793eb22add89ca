package pipeline

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

// CachedSynonyms serves the variant -> canonical skill map from memory,
// refreshing from the repository once the snapshot goes stale. When a
// refresh fails an existing snapshot is served stale: skill spelling
// drift is preferable to blocking analysis on the database. Callers must
// treat the returned map as read-only.
type CachedSynonyms struct {
	repo domain.SynonymRepository
	ttl  time.Duration

	mu        sync.RWMutex
	snapshot  map[string]string
	fetchedAt time.Time
}

// NewCachedSynonyms wraps the repository with a TTL cache. A
// non-positive ttl defaults to one hour.
func NewCachedSynonyms(repo domain.SynonymRepository, ttl time.Duration) *CachedSynonyms {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedSynonyms{repo: repo, ttl: ttl}
}

// Snapshot returns the current synonym map.
func (c *CachedSynonyms) Snapshot(ctx domain.Context) (map[string]string, error) {
	c.mu.RLock()
	snap := c.snapshot
	fresh := snap != nil && time.Since(c.fetchedAt) < c.ttl
	c.mu.RUnlock()
	if fresh {
		return snap, nil
	}

	m, err := c.repo.All(ctx)
	if err != nil {
		if snap != nil {
			slog.Warn("synonym refresh failed, serving stale snapshot",
				slog.String("error", err.Error()))
			return snap, nil
		}
		return nil, fmt.Errorf("op=pipeline.Snapshot: %w", err)
	}
	c.mu.Lock()
	c.snapshot = m
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	return m, nil
}
