package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/config"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

type bumpCall struct {
	id     string
	errMsg string
	next   time.Time
}

type replayFailures struct {
	domain.WebhookFailureRepository
	mu        sync.Mutex
	due       []domain.WebhookFailure
	listErr   error
	delivered []string
	abandoned []string
	bumps     []bumpCall
}

func (s *replayFailures) ListDue(_ domain.Context, _ time.Time, _ int) ([]domain.WebhookFailure, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.WebhookFailure, len(s.due))
	copy(out, s.due)
	return out, nil
}

func (s *replayFailures) MarkDelivered(_ domain.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, id)
	return nil
}

func (s *replayFailures) MarkAbandoned(_ domain.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abandoned = append(s.abandoned, id)
	return nil
}

func (s *replayFailures) Bump(_ domain.Context, id string, errMsg string, next time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bumps = append(s.bumps, bumpCall{id: id, errMsg: errMsg, next: next})
	return nil
}

type replayJobs struct {
	domain.JobRepository
	job domain.ProcessingJob
	err error
}

func (s *replayJobs) GetAny(_ domain.Context, _ string) (domain.ProcessingJob, error) {
	if s.err != nil {
		return domain.ProcessingJob{}, s.err
	}
	return s.job, nil
}

func knownJobs() *replayJobs {
	return &replayJobs{job: domain.ProcessingJob{ID: "job-1", TenantID: "tenant-1"}}
}

func testReplayer(url string, failures *replayFailures, jobs domain.JobRepository, tenants domain.TenantRepository) *Replayer {
	return &Replayer{
		cfg: config.Config{
			WebhookURL:            url,
			WebhookSecret:         "s3cret",
			WebhookReplayInterval: time.Minute,
		},
		failures: failures,
		jobs:     jobs,
		tenants:  tenants,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

func dueRow(retryCount int) domain.WebhookFailure {
	return domain.WebhookFailure{
		ID:         "wf-1",
		JobID:      "job-1",
		Payload:    []byte(`{"job_id":"job-1","status":"completed"}`),
		Status:     domain.WebhookFailurePending,
		RetryCount: retryCount,
	}
}

func TestReplayer_DeliversDueRow(t *testing.T) {
	t.Parallel()
	var (
		mu     sync.Mutex
		bodies [][]byte
		hdrs   []http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, body)
		hdrs = append(hdrs, r.Header.Clone())
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	failures := &replayFailures{due: []domain.WebhookFailure{dueRow(2)}}
	r := testReplayer(srv.URL, failures, knownJobs(), nil)

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)
	assert.JSONEq(t, `{"job_id":"job-1","status":"completed"}`, string(bodies[0]),
		"replay sends the stored payload untouched")
	assert.Equal(t, "s3cret", hdrs[0].Get("X-Webhook-Secret"))
	assert.Equal(t, []string{"wf-1"}, failures.delivered)
	assert.Empty(t, failures.bumps)
	assert.Empty(t, failures.abandoned)
}

func TestReplayer_BumpsOnReceiverFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	failures := &replayFailures{due: []domain.WebhookFailure{dueRow(2)}}
	r := testReplayer(srv.URL, failures, knownJobs(), nil)

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.Len(t, failures.bumps, 1)
	assert.Equal(t, "wf-1", failures.bumps[0].id)
	assert.Contains(t, failures.bumps[0].errMsg, "503")
	// Two spent replays push the next attempt out to base*2^2.
	assert.WithinDuration(t, time.Now().UTC().Add(4*time.Minute), failures.bumps[0].next, 5*time.Second)
	assert.Empty(t, failures.delivered)
}

func TestReplayer_AbandonsWhenBudgetSpent(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	failures := &replayFailures{due: []domain.WebhookFailure{dueRow(replayBudget)}}
	r := testReplayer(srv.URL, failures, knownJobs(), nil)

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, int32(0), hits.Load(), "spent rows never reach the receiver")
	assert.Equal(t, []string{"wf-1"}, failures.abandoned)
}

func TestReplayer_AbandonsOrphanedRow(t *testing.T) {
	t.Parallel()
	failures := &replayFailures{due: []domain.WebhookFailure{dueRow(1)}}
	r := testReplayer("http://receiver.invalid", failures, &replayJobs{err: domain.ErrNotFound}, nil)

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, []string{"wf-1"}, failures.abandoned)
}

func TestReplayer_LeavesRowWhenJobLookupFails(t *testing.T) {
	t.Parallel()
	failures := &replayFailures{due: []domain.WebhookFailure{dueRow(1)}}
	r := testReplayer("http://receiver.invalid", failures, &replayJobs{err: errors.New("db down")}, nil)

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, failures.abandoned)
	assert.Empty(t, failures.bumps)
	assert.Empty(t, failures.delivered)
}

func TestReplayer_AbandonsWhenNoReceiver(t *testing.T) {
	t.Parallel()
	failures := &replayFailures{due: []domain.WebhookFailure{dueRow(1)}}
	r := testReplayer("", failures, knownJobs(), nil)

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, []string{"wf-1"}, failures.abandoned)
}

func TestReplayer_TenantReceiverOverride(t *testing.T) {
	t.Parallel()
	var tenantHits atomic.Int32
	tenantSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		tenantHits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer tenantSrv.Close()

	failures := &replayFailures{due: []domain.WebhookFailure{dueRow(0)}}
	tenants := &stubTenants{tenant: domain.Tenant{ID: "tenant-1", WebhookURL: tenantSrv.URL}}
	r := testReplayer("http://default.invalid", failures, knownJobs(), tenants)

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(1), tenantHits.Load())
}

func TestReplayer_MixedBatch(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// First row delivers, second bounces.
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	second := dueRow(3)
	second.ID = "wf-2"
	failures := &replayFailures{due: []domain.WebhookFailure{dueRow(0), second}}
	r := testReplayer(srv.URL, failures, knownJobs(), nil)

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"wf-1"}, failures.delivered)
	require.Len(t, failures.bumps, 1)
	assert.Equal(t, "wf-2", failures.bumps[0].id)
}

func TestReplayer_ListFailurePropagates(t *testing.T) {
	t.Parallel()
	failures := &replayFailures{listErr: errors.New("query timeout")}
	r := testReplayer("http://receiver.invalid", failures, knownJobs(), nil)

	_, err := r.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query timeout")
}

func TestReplayer_NextDelay(t *testing.T) {
	t.Parallel()
	r := testReplayer("", &replayFailures{}, nil, nil)
	cases := []struct {
		retryCount int
		want       time.Duration
	}{
		{0, time.Minute},
		{1, 2 * time.Minute},
		{4, 16 * time.Minute},
		{6, time.Hour},
		{20, time.Hour},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, r.nextDelay(tc.retryCount), "retry count %d", tc.retryCount)
	}
}

func TestReplayer_RunStopsOnCancel(t *testing.T) {
	t.Parallel()
	r := testReplayer("", &replayFailures{}, nil, nil)
	r.cfg.WebhookReplayInterval = 2 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancellation")
	}
}

func TestStatusLabelOf(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "completed", statusLabelOf([]byte(`{"job_id":"j","status":"completed"}`)))
	assert.Equal(t, "unknown", statusLabelOf([]byte(`{"job_id":"j"}`)))
	assert.Equal(t, "unknown", statusLabelOf([]byte(`{not json`)))
}
