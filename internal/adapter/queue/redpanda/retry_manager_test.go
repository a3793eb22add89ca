package redpanda

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-resume-analyzer/internal/config"
	"github.com/fairyhunter13/ai-resume-analyzer/internal/domain"
)

func TestBackoffFor_ExponentialWithCap(t *testing.T) {
	t.Parallel()
	rm := &RetryManager{cfg: config.Config{
		RetryInitialDelay: 2 * time.Second,
		RetryMaxDelay:     30 * time.Second,
		RetryMultiplier:   2,
	}}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{7, 30 * time.Second},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, rm.backoffFor(tc.attempt), "attempt %d", tc.attempt)
	}
}

func TestBackoffFor_JitterStaysInBounds(t *testing.T) {
	t.Parallel()
	rm := &RetryManager{cfg: config.Config{
		RetryInitialDelay: 10 * time.Second,
		RetryMaxDelay:     time.Minute,
		RetryMultiplier:   2,
		RetryJitter:       true,
	}}

	for i := 0; i < 50; i++ {
		d := rm.backoffFor(2)
		assert.GreaterOrEqual(t, d, 10*time.Second)
		assert.LessOrEqual(t, d, 12*time.Second, "jitter adds at most 20%")
	}
}

func TestBackoffFor_Defaults(t *testing.T) {
	t.Parallel()
	rm := &RetryManager{cfg: config.Config{}}

	assert.Equal(t, 2*time.Second, rm.backoffFor(2))
	assert.Equal(t, 4*time.Second, rm.backoffFor(3))
}

func TestHandleFailure_SchedulesRedelivery(t *testing.T) {
	t.Parallel()
	pub := &stubPublisher{}
	jobs := &stubJobStore{job: domain.ProcessingJob{ID: "job-1", Status: domain.JobAnalyzing}}
	rm := &RetryManager{producer: pub, jobs: jobs, cfg: queueConfig()}

	err := rm.HandleFailure(context.Background(), testPayload(), 1, errors.New("upstream timeout"))

	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(pub.requeuedAttempts()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{2}, pub.requeuedAttempts())
	assert.Empty(t, pub.dlqRecords())
}

func TestHandleFailure_SkipsSettledJob(t *testing.T) {
	t.Parallel()
	pub := &stubPublisher{}
	jobs := &stubJobStore{job: domain.ProcessingJob{ID: "job-1", Status: domain.JobCompleted}}
	rm := &RetryManager{producer: pub, jobs: jobs, cfg: queueConfig()}

	err := rm.HandleFailure(context.Background(), testPayload(), 1, errors.New("late failure"))

	require.NoError(t, err)
	assert.Never(t, func() bool {
		return len(pub.requeuedAttempts()) > 0
	}, 50*time.Millisecond, 5*time.Millisecond, "a settled job must not be redelivered")
}

func TestHandleFailure_SkipsWhenLookupFails(t *testing.T) {
	t.Parallel()
	pub := &stubPublisher{}
	jobs := &stubJobStore{err: errors.New("db down")}
	rm := &RetryManager{producer: pub, jobs: jobs, cfg: queueConfig()}

	err := rm.HandleFailure(context.Background(), testPayload(), 1, errors.New("boom"))

	require.NoError(t, err)
	assert.Never(t, func() bool {
		return len(pub.requeuedAttempts()) > 0
	}, 50*time.Millisecond, 5*time.Millisecond)
}

func TestHandleFailure_DeadLettersWhenBudgetSpent(t *testing.T) {
	t.Parallel()
	pub := &stubPublisher{}
	rm := &RetryManager{producer: pub, jobs: &stubJobStore{}, cfg: queueConfig()}

	err := rm.HandleFailure(context.Background(), testPayload(), 3, errors.New("persistent fault"))

	require.NoError(t, err)
	records := pub.dlqRecords()
	require.Len(t, records, 1)
	assert.Equal(t, "job-1", records[0].Payload.JobID)
	assert.Equal(t, "cand-1", records[0].Payload.CandidateID)
	assert.Equal(t, 3, records[0].Attempt)
	assert.Equal(t, "persistent fault", records[0].Reason)
	assert.WithinDuration(t, time.Now().UTC(), records[0].FailedAt, time.Minute)
	assert.Empty(t, pub.requeuedAttempts())
}

func TestHandleFailure_PropagatesDLQError(t *testing.T) {
	t.Parallel()
	pub := &stubPublisher{dlqErr: errors.New("dlq topic unavailable")}
	rm := &RetryManager{producer: pub, jobs: &stubJobStore{}, cfg: queueConfig()}

	err := rm.HandleFailure(context.Background(), testPayload(), 3, errors.New("persistent fault"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "dlq topic unavailable")
}

func TestMoveToDLQ_StampsFailureTime(t *testing.T) {
	t.Parallel()
	pub := &stubPublisher{}
	rm := &RetryManager{producer: pub, cfg: queueConfig()}

	before := time.Now().UTC()
	require.NoError(t, rm.MoveToDLQ(context.Background(), testPayload(), 2, "operator drain"))

	records := pub.dlqRecords()
	require.Len(t, records, 1)
	assert.Equal(t, 2, records[0].Attempt)
	assert.Equal(t, "operator drain", records[0].Reason)
	assert.False(t, records[0].FailedAt.Before(before))
}
