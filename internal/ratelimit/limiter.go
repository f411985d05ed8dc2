// Package ratelimit provides rate limiting for API calls using a token bucket algorithm.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/capiweb/capishare/internal/constants"
	"github.com/capiweb/capishare/internal/logging"
)

// RateLimiter implements a token bucket rate limiter.
// It allows bursts up to maxTokens, then refills at refillRate tokens/second.
// A cooldown set after a 429 blocks all acquisitions until it expires.
type RateLimiter struct {
	tokens        float64   // Current number of tokens available
	maxTokens     float64   // Maximum bucket capacity
	refillRate    float64   // Tokens added per second
	lastRefill    time.Time // Last time tokens were refilled
	lastWarnTime  time.Time // Last time we warned user about rate limiting
	cooldownUntil time.Time
	logger        *logging.Logger
	mu            sync.Mutex
}

// NewRateLimiter creates a new rate limiter.
//
// Parameters:
//   - tokensPerSecond: Rate at which tokens are added
//   - burstSize: Maximum tokens that can accumulate (allows brief bursts)
func NewRateLimiter(tokensPerSecond float64, burstSize float64) *RateLimiter {
	return &RateLimiter{
		tokens:     burstSize, // Start with full bucket
		maxTokens:  burstSize,
		refillRate: tokensPerSecond,
		lastRefill: time.Now(),
		logger:     logging.NewNopLogger(),
	}
}

// SetLogger sets the logger used for long-wait warnings.
func (rl *RateLimiter) SetLogger(l *logging.Logger) {
	rl.mu.Lock()
	rl.logger = logging.OrNop(l)
	rl.mu.Unlock()
}

// Wait blocks until a token is available or context is cancelled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	startTime := time.Now()

	if rl.tryAcquire() {
		return nil
	}

	waitTime := rl.timeUntilNextToken()
	if waitTime > constants.RateLimitWarnThreshold {
		rl.mu.Lock()
		// Only warn every 10 seconds to avoid spam
		if time.Since(rl.lastWarnTime) > 10*time.Second {
			rl.logger.Warn().Float64("wait_s", waitTime.Seconds()).Msg("rate limited: waiting for API capacity")
			rl.lastWarnTime = time.Now()
		}
		rl.mu.Unlock()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if rl.tryAcquire() {
			if actualWait := time.Since(startTime); actualWait > 5*time.Second {
				rl.logger.Debug().Dur("waited", actualWait).Msg("rate limit wait completed")
			}
			return nil
		}

		timer := time.NewTimer(rl.timeUntilNextToken())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// TryAcquire attempts to take one token without blocking.
func (rl *RateLimiter) TryAcquire() bool {
	return rl.tryAcquire()
}

func (rl *RateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.refillLocked(now)

	if now.Before(rl.cooldownUntil) {
		return false
	}
	if rl.tokens >= 1.0 {
		rl.tokens -= 1.0
		return true
	}
	return false
}

func (rl *RateLimiter) refillLocked(now time.Time) {
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now
}

// timeUntilNextToken calculates how long to wait until at least one token is available.
func (rl *RateLimiter) timeUntilNextToken() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Before(rl.cooldownUntil) {
		return rl.cooldownUntil.Sub(now)
	}

	tokensNeeded := 1.0 - rl.tokens
	if tokensNeeded <= 0 {
		return 0
	}
	if rl.refillRate <= 0 {
		return time.Second
	}
	return time.Duration(tokensNeeded / rl.refillRate * float64(time.Second))
}

// Drain empties the bucket. Called when the server answers 429 so that
// concurrent callers back off together.
func (rl *RateLimiter) Drain() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refillLocked(time.Now())
	rl.tokens = 0
}

// SetCooldown blocks acquisitions for d. An existing longer cooldown is kept.
func (rl *RateLimiter) SetCooldown(d time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	until := time.Now().Add(d)
	if until.After(rl.cooldownUntil) {
		rl.cooldownUntil = until
	}
}

// CooldownRemaining returns the time left on the current cooldown, or 0.
func (rl *RateLimiter) CooldownRemaining() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if d := time.Until(rl.cooldownUntil); d > 0 {
		return d
	}
	return 0
}

// GetCurrentTokens returns the current number of tokens (for testing/debugging).
func (rl *RateLimiter) GetCurrentTokens() float64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	elapsed := time.Since(rl.lastRefill).Seconds()
	tokens := rl.tokens + (elapsed * rl.refillRate)
	if tokens > rl.maxTokens {
		tokens = rl.maxTokens
	}
	return tokens
}
