// Package ratelimit provides per-key token bucket rate limiting for MCP tools.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRateLimited is wrapped by CheckLimit when a tool's bucket is empty.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter is a per-key token bucket. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   int     // bucket size, and the tokens a new key starts with
	now     func() time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewLimiter creates a limiter refilling rate tokens per second up to burst.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		now:     time.Now,
	}
}

// Allow takes one token from key's bucket, reporting false if none is left.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), last: now}
		l.buckets[key] = b
	}

	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = min(b.tokens+l.rate*elapsed, float64(l.burst))
		b.last = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// ToolLimiters maps tool names to their limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters returns the default limits of the rabbitsim tools.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"rabbitsim_simulate": NewLimiter(6.0/60.0, 2),  // 6/minute, burst 2
		"rabbitsim_export":   NewLimiter(10.0/60.0, 3), // 10/minute, burst 3
		"rabbitsim_batches":  NewLimiter(1.0, 10),      // 60/minute, burst 10
		"rabbitsim_batch":    NewLimiter(1.0, 10),      // 60/minute, burst 10
		"rabbitsim_backup":   NewLimiter(5.0/60.0, 2),  // 5/minute, burst 2
		"rabbitsim_restore":  NewLimiter(5.0/60.0, 2),  // 5/minute, burst 2
	}
}

// CheckLimit consumes a token for toolName. Tools without a limiter are
// never limited.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}
	if !limiter.Allow(toolName) {
		return fmt.Errorf("%w for %s, please try again shortly", ErrRateLimited, toolName)
	}
	return nil
}
