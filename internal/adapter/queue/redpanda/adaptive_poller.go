package redpanda

import (
	"math"
	"sync"
	"time"
)

// AdaptivePoller paces poll loops: the interval shrinks while polls
// succeed and backs off exponentially (with jitter) across consecutive
// failures. Past ten straight failures it pins the maximum interval
// until a success resets the streak.
type AdaptivePoller struct {
	mu sync.Mutex

	baseInterval  time.Duration
	minInterval   time.Duration
	maxInterval   time.Duration
	backoffFactor float64

	consecutiveSuccess int
	consecutiveFailure int
	healthy            bool
}

const pollerTripThreshold = 10

// NewAdaptivePoller creates a poller around the given base interval.
func NewAdaptivePoller(baseInterval time.Duration) *AdaptivePoller {
	return &AdaptivePoller{
		baseInterval:  baseInterval,
		minInterval:   100 * time.Millisecond,
		maxInterval:   10 * time.Second,
		backoffFactor: 1.5,
		healthy:       true,
	}
}

// GetNextInterval returns how long the caller should wait before the
// next poll.
func (ap *AdaptivePoller) GetNextInterval() time.Duration {
	ap.mu.Lock()
	defer ap.mu.Unlock()

	if ap.consecutiveFailure >= pollerTripThreshold {
		return ap.maxInterval
	}

	if ap.consecutiveFailure > 0 {
		interval := float64(ap.baseInterval) * math.Pow(ap.backoffFactor, float64(ap.consecutiveFailure))
		// jitter up to 10% so a fleet of pollers spreads out
		interval += interval * 0.1 * math.Mod(float64(time.Now().UnixNano()), 1000) / 1000
		if interval > float64(ap.maxInterval) {
			return ap.maxInterval
		}
		return time.Duration(interval)
	}

	interval := float64(ap.baseInterval) * math.Max(0.5, 1/float64(ap.consecutiveSuccess+1))
	if interval < float64(ap.minInterval) {
		return ap.minInterval
	}
	return time.Duration(interval)
}

// RecordSuccess notes a successful poll.
func (ap *AdaptivePoller) RecordSuccess() {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	ap.consecutiveSuccess++
	ap.consecutiveFailure = 0
	ap.healthy = true
}

// RecordFailure notes a failed poll.
func (ap *AdaptivePoller) RecordFailure() {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	ap.consecutiveFailure++
	ap.consecutiveSuccess = 0
	ap.healthy = false
}

// IsHealthy reports whether the last poll succeeded.
func (ap *AdaptivePoller) IsHealthy() bool {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	return ap.healthy
}
