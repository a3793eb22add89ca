// Package ratelimiter implements the sliding-window request limiter
// keyed by (route class, subject). The distributed counter lives in
// Redis; when Redis is unreachable an in-process counter takes over so
// limits degrade to per-replica instead of failing open.
package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Route classes. Each class carries its own window configuration.
const (
	ClassUpload  = "upload"
	ClassSearch  = "search"
	ClassAuth    = "auth"
	ClassExport  = "export"
	ClassDefault = "default"
)

// Limiter answers whether one request for a subject may proceed.
type Limiter interface {
	Allow(ctx context.Context, class, subject string) (allowed bool, retryAfter time.Duration, err error)
}

// WindowConfig bounds one route class.
type WindowConfig struct {
	Limit  int
	Window time.Duration
}

// PerMinute builds a one-minute window.
func PerMinute(limit int) WindowConfig {
	return WindowConfig{Limit: limit, Window: time.Minute}
}

// PerHour builds a one-hour window.
func PerHour(limit int) WindowConfig {
	return WindowConfig{Limit: limit, Window: time.Hour}
}

// SlidingWindowLimiter estimates the rolling-window count from the
// current and previous fixed buckets, weighting the previous bucket by
// the unexpired fraction of the window. One Lua script keeps the
// read-increment atomic across replicas.
type SlidingWindowLimiter struct {
	redis   *redis.Client
	windows map[string]WindowConfig
	script  *redis.Script
	local   *localCounter
	mu      sync.RWMutex
}

// NewSlidingWindowLimiter constructs a limiter over the given per-class
// windows. A nil Redis client degrades to the in-process counter only.
func NewSlidingWindowLimiter(rdb *redis.Client, windows map[string]WindowConfig) *SlidingWindowLimiter {
	if windows == nil {
		windows = map[string]WindowConfig{}
	}
	return &SlidingWindowLimiter{
		redis:   rdb,
		windows: windows,
		script:  redis.NewScript(luaSlidingWindowScript),
		local:   newLocalCounter(),
	}
}

const luaSlidingWindowScript = `
local curr_key = KEYS[1]
local prev_key = KEYS[2]
local limit = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])
local elapsed_ms = tonumber(ARGV[3])

local curr = tonumber(redis.call("GET", curr_key) or "0")
local prev = tonumber(redis.call("GET", prev_key) or "0")

local weight = (window_ms - elapsed_ms) / window_ms
if weight < 0 then
  weight = 0
end
local count = curr + prev * weight

if count + 1 > limit then
  return { 0, window_ms - elapsed_ms }
end

redis.call("INCR", curr_key)
redis.call("PEXPIRE", curr_key, window_ms * 2)
return { 1, 0 }
`

// Allow consumes one slot for subject under class. Unknown classes are
// unlimited.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, class, subject string) (bool, time.Duration, error) {
	if l == nil {
		return true, 0, nil
	}
	l.mu.RLock()
	cfg, ok := l.windows[class]
	l.mu.RUnlock()
	if !ok || cfg.Limit <= 0 || cfg.Window <= 0 {
		return true, 0, nil
	}

	now := time.Now()
	windowMS := cfg.Window.Milliseconds()
	bucket := now.UnixMilli() / windowMS
	elapsedMS := now.UnixMilli() % windowMS

	if l.redis != nil {
		currKey := fmt.Sprintf("rl:%s:%s:%d", class, subject, bucket)
		prevKey := fmt.Sprintf("rl:%s:%s:%d", class, subject, bucket-1)
		res, err := l.script.Run(ctx, l.redis, []string{currKey, prevKey}, cfg.Limit, windowMS, elapsedMS).Result()
		if err == nil {
			vals, ok := res.([]interface{})
			if ok && len(vals) == 2 {
				allowed := toInt64(vals[0]) == 1
				retryAfter := time.Duration(toInt64(vals[1])) * time.Millisecond
				return allowed, retryAfter, nil
			}
			slog.Error("rate limiter unexpected script result",
				slog.String("class", class), slog.Any("result", res))
			return true, 0, nil
		}
		slog.Warn("rate limiter redis unavailable, using in-process fallback",
			slog.String("class", class), slog.Any("error", err))
	}

	allowed, retryAfter := l.local.allow(class+":"+subject, cfg, bucket, elapsedMS)
	return allowed, retryAfter, nil
}

// SetWindow updates one class's window at runtime. Safe for concurrent
// use.
func (l *SlidingWindowLimiter) SetWindow(class string, cfg WindowConfig) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.windows[class] = cfg
}

// localCounter is the per-process fallback: the same two-bucket sliding
// window, without cross-replica coordination. Buckets expire two windows
// after their last touch so a long Redis outage across many distinct
// subjects cannot grow the map without bound.
type localCounter struct {
	mu      sync.Mutex
	buckets map[string]*localBucket
	ops     int
}

type localBucket struct {
	index  int64
	curr   int
	prev   int
	expiry time.Time
}

// sweepEvery bounds how often the eviction scan runs.
const sweepEvery = 1024

func newLocalCounter() *localCounter {
	return &localCounter{buckets: make(map[string]*localBucket)}
}

func (c *localCounter) sweep(now time.Time) {
	for k, b := range c.buckets {
		if now.After(b.expiry) {
			delete(c.buckets, k)
		}
	}
}

func (c *localCounter) allow(key string, cfg WindowConfig, bucket, elapsedMS int64) (bool, time.Duration) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ops++; c.ops >= sweepEvery {
		c.ops = 0
		c.sweep(now)
	}
	b, ok := c.buckets[key]
	if !ok {
		b = &localBucket{index: bucket}
		c.buckets[key] = b
	}
	b.expiry = now.Add(2 * cfg.Window)
	switch {
	case bucket == b.index+1:
		b.prev, b.curr, b.index = b.curr, 0, bucket
	case bucket != b.index:
		b.prev, b.curr, b.index = 0, 0, bucket
	}

	windowMS := cfg.Window.Milliseconds()
	weight := float64(windowMS-elapsedMS) / float64(windowMS)
	if weight < 0 {
		weight = 0
	}
	count := float64(b.curr) + float64(b.prev)*weight
	if count+1 > float64(cfg.Limit) {
		return false, time.Duration(windowMS-elapsedMS) * time.Millisecond
	}
	b.curr++
	return true, 0
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}
