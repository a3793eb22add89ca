package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

type stubSynonymRepo struct {
	domain.SynonymRepository

	calls atomic.Int64
	m     map[string]string
	err   error
}

func (s *stubSynonymRepo) All(domain.Context) (map[string]string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.m, nil
}

func TestCachedSynonyms_ServesFromCacheWithinTTL(t *testing.T) {
	t.Parallel()
	repo := &stubSynonymRepo{m: map[string]string{"golang": "Go"}}
	cache := NewCachedSynonyms(repo, time.Hour)

	for i := 0; i < 3; i++ {
		snap, err := cache.Snapshot(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Go", snap["golang"])
	}
	assert.Equal(t, int64(1), repo.calls.Load())
}

func TestCachedSynonyms_RefreshesAfterExpiry(t *testing.T) {
	t.Parallel()
	repo := &stubSynonymRepo{m: map[string]string{"golang": "Go"}}
	cache := NewCachedSynonyms(repo, time.Nanosecond)

	_, err := cache.Snapshot(context.Background())
	require.NoError(t, err)

	repo.m = map[string]string{"k8s": "Kubernetes"}
	time.Sleep(time.Millisecond)

	snap, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Kubernetes", snap["k8s"])
	assert.Equal(t, int64(2), repo.calls.Load())
}

func TestCachedSynonyms_ServesStaleOnRefreshFailure(t *testing.T) {
	t.Parallel()
	repo := &stubSynonymRepo{m: map[string]string{"golang": "Go"}}
	cache := NewCachedSynonyms(repo, time.Nanosecond)

	_, err := cache.Snapshot(context.Background())
	require.NoError(t, err)

	repo.err = errors.New("connection refused")
	time.Sleep(time.Millisecond)

	snap, err := cache.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Go", snap["golang"])
}

func TestCachedSynonyms_FirstFetchFailurePropagates(t *testing.T) {
	t.Parallel()
	repo := &stubSynonymRepo{err: errors.New("connection refused")}
	cache := NewCachedSynonyms(repo, time.Hour)

	_, err := cache.Snapshot(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestCachedSynonyms_DefaultTTL(t *testing.T) {
	t.Parallel()
	cache := NewCachedSynonyms(&stubSynonymRepo{}, 0)
	assert.Equal(t, time.Hour, cache.ttl)
}
