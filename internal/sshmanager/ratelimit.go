package sshmanager

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gluk-w/sshdeck/internal/logutil"
)

// Rate limiting defaults. Two independent mechanisms protect a target from
// connection storms:
//   - Sliding-window rate limit: max attempts per minute per target.
//   - Consecutive failure block: after N failures in a row, the target is
//     temporarily blocked for BlockDuration.
const (
	DefaultMaxAttemptsPerMinute = 10
	DefaultMaxConsecFailures    = 5
	DefaultBlockDuration        = 5 * time.Minute
)

// RateLimitConfig holds configuration for the connection rate limiter.
type RateLimitConfig struct {
	MaxAttemptsPerMinute int
	MaxConsecFailures    int
	BlockDuration        time.Duration
}

// DefaultRateLimitConfig returns the default rate limit configuration.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxAttemptsPerMinute: DefaultMaxAttemptsPerMinute,
		MaxConsecFailures:    DefaultMaxConsecFailures,
		BlockDuration:        DefaultBlockDuration,
	}
}

type targetRateState struct {
	attempts       []time.Time
	consecFailures int
	blockedUntil   time.Time
}

// RateLimiter enforces limits on connection attempts per target
// (user@host:port).
type RateLimiter struct {
	mu     sync.Mutex
	config RateLimitConfig
	state  map[string]*targetRateState
	nowFn  func() time.Time
}

// NewRateLimiter creates a new RateLimiter with the given configuration.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		config: config,
		state:  make(map[string]*targetRateState),
		nowFn:  time.Now,
	}
}

// Allow checks whether a connection attempt for the target is allowed and
// records it if so.
func (rl *RateLimiter) Allow(target string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.nowFn()
	s := rl.getOrCreateState(target)

	if now.Before(s.blockedUntil) {
		remaining := s.blockedUntil.Sub(now).Truncate(time.Second)
		log.Printf("[ssh] rate limit: %s is blocked for %s (consecutive failures: %d)",
			logutil.SanitizeForLog(target), remaining, s.consecFailures)
		return fmt.Errorf("connection blocked after %d consecutive failures; retry after %s", s.consecFailures, remaining)
	}

	cutoff := now.Add(-time.Minute)
	pruned := s.attempts[:0]
	for _, t := range s.attempts {
		if t.After(cutoff) {
			pruned = append(pruned, t)
		}
	}
	s.attempts = pruned

	if len(s.attempts) >= rl.config.MaxAttemptsPerMinute {
		log.Printf("[ssh] rate limit: %s exceeded %d attempts/min",
			logutil.SanitizeForLog(target), rl.config.MaxAttemptsPerMinute)
		return fmt.Errorf("rate limit exceeded: %d connection attempts in the last minute (max %d)",
			len(s.attempts), rl.config.MaxAttemptsPerMinute)
	}

	s.attempts = append(s.attempts, now)
	return nil
}

// RecordSuccess resets the consecutive failure counter for the target.
func (rl *RateLimiter) RecordSuccess(target string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	s := rl.getOrCreateState(target)
	s.consecFailures = 0
	s.blockedUntil = time.Time{}
}

// RecordFailure increments the consecutive failure counter and blocks the
// target once the threshold is reached.
func (rl *RateLimiter) RecordFailure(target string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.nowFn()
	s := rl.getOrCreateState(target)
	s.consecFailures++

	if s.consecFailures >= rl.config.MaxConsecFailures {
		s.blockedUntil = now.Add(rl.config.BlockDuration)
		log.Printf("[ssh] rate limit: blocking %s until %s (%d consecutive failures)",
			logutil.SanitizeForLog(target), s.blockedUntil.Format(time.RFC3339), s.consecFailures)
	}
}

// RateLimitStatus represents the current rate limit state for a target.
type RateLimitStatus struct {
	RecentAttempts    int        `json:"recent_attempts"`
	MaxAttemptsPerMin int        `json:"max_attempts_per_min"`
	ConsecFailures    int        `json:"consec_failures"`
	MaxConsecFailures int        `json:"max_consec_failures"`
	Blocked           bool       `json:"blocked"`
	BlockedUntil      *time.Time `json:"blocked_until,omitempty"`
}

// Status returns the current rate limit status for the target.
func (rl *RateLimiter) Status(target string) RateLimitStatus {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	st := RateLimitStatus{
		MaxAttemptsPerMin: rl.config.MaxAttemptsPerMinute,
		MaxConsecFailures: rl.config.MaxConsecFailures,
	}
	s, ok := rl.state[target]
	if !ok {
		return st
	}

	now := rl.nowFn()
	cutoff := now.Add(-time.Minute)
	for _, t := range s.attempts {
		if t.After(cutoff) {
			st.RecentAttempts++
		}
	}
	st.ConsecFailures = s.consecFailures
	if now.Before(s.blockedUntil) {
		bu := s.blockedUntil
		st.Blocked = true
		st.BlockedUntil = &bu
	}
	return st
}

// Reset clears all rate limiting state for the target.
func (rl *RateLimiter) Reset(target string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.state, target)
}

// Must be called with rl.mu held.
func (rl *RateLimiter) getOrCreateState(target string) *targetRateState {
	s, ok := rl.state[target]
	if !ok {
		s = &targetRateState{}
		rl.state[target] = s
	}
	return s
}
