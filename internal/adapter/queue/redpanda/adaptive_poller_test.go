package redpanda

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdaptivePoller_SpeedsUpOnSuccess(t *testing.T) {
	t.Parallel()
	p := NewAdaptivePoller(2 * time.Second)

	assert.Equal(t, 2*time.Second, p.GetNextInterval(), "no history polls at base")

	p.RecordSuccess()
	first := p.GetNextInterval()
	assert.Less(t, first, 2*time.Second)

	for i := 0; i < 5; i++ {
		p.RecordSuccess()
	}
	assert.Equal(t, time.Second, p.GetNextInterval(), "speedup floors at half the base")
	assert.True(t, p.IsHealthy())
}

func TestAdaptivePoller_FloorsAtMinInterval(t *testing.T) {
	t.Parallel()
	p := NewAdaptivePoller(150 * time.Millisecond)

	for i := 0; i < 10; i++ {
		p.RecordSuccess()
	}
	assert.Equal(t, 100*time.Millisecond, p.GetNextInterval())
}

func TestAdaptivePoller_BacksOffOnFailure(t *testing.T) {
	t.Parallel()
	p := NewAdaptivePoller(time.Second)

	p.RecordFailure()
	one := p.GetNextInterval()
	assert.GreaterOrEqual(t, one, 1500*time.Millisecond)
	assert.LessOrEqual(t, one, 1650*time.Millisecond, "jitter adds at most 10%")

	p.RecordFailure()
	two := p.GetNextInterval()
	assert.GreaterOrEqual(t, two, 2250*time.Millisecond)
	assert.False(t, p.IsHealthy())
}

func TestAdaptivePoller_CapsAtMaxInterval(t *testing.T) {
	t.Parallel()
	p := NewAdaptivePoller(5 * time.Second)

	for i := 0; i < 4; i++ {
		p.RecordFailure()
	}
	assert.Equal(t, 10*time.Second, p.GetNextInterval())
}

func TestAdaptivePoller_TripsAfterTenFailures(t *testing.T) {
	t.Parallel()
	p := NewAdaptivePoller(100 * time.Millisecond)

	for i := 0; i < pollerTripThreshold; i++ {
		p.RecordFailure()
	}
	assert.Equal(t, 10*time.Second, p.GetNextInterval(), "a tripped poller pins the max interval")
	assert.False(t, p.IsHealthy())
}

func TestAdaptivePoller_SuccessResetsFailureStreak(t *testing.T) {
	t.Parallel()
	p := NewAdaptivePoller(time.Second)

	for i := 0; i < pollerTripThreshold; i++ {
		p.RecordFailure()
	}
	p.RecordSuccess()

	assert.True(t, p.IsHealthy())
	assert.LessOrEqual(t, p.GetNextInterval(), time.Second)
}
