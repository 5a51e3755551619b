package sshterminal

import (
	"fmt"
	"sync"
	"time"
)

// Security-related limits for terminal sessions.
const (
	// MaxInputMessageSize is the maximum size in bytes for a single input
	// message sent over the WebSocket. Messages larger than this are rejected.
	MaxInputMessageSize = 64 * 1024 // 64 KB

	// MaxTermCols is the maximum allowed terminal width.
	MaxTermCols = 500
	// MaxTermRows is the maximum allowed terminal height.
	MaxTermRows = 200

	// MessageRateLimit is the sustained number of messages per second a
	// terminal socket may send.
	MessageRateLimit = 100
	// MessageRateBurst is how many messages may arrive back to back.
	MessageRateBurst = 200
)

// ValidateSize rejects dimensions outside 1..MaxTermCols x 1..MaxTermRows.
func ValidateSize(cols, rows int) error {
	if cols < 1 || cols > MaxTermCols {
		return fmt.Errorf("terminal width %d out of range 1-%d", cols, MaxTermCols)
	}
	if rows < 1 || rows > MaxTermRows {
		return fmt.Errorf("terminal height %d out of range 1-%d", rows, MaxTermRows)
	}
	return nil
}

// MessageLimiter paces the messages one terminal socket may send. Every
// accepted message moves a virtual schedule one interval forward; a message
// is refused while the schedule runs more than burst-1 intervals ahead of
// the clock. Idle time lets the schedule fall back to the present, which
// restores the full burst.
type MessageLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	ahead    time.Duration // how far the schedule may lead the clock
	due      time.Time
	now      func() time.Time
}

// NewMessageLimiter allows perSecond messages on average with bursts of up
// to burst. A non-positive perSecond disables the limit.
func NewMessageLimiter(perSecond float64, burst int) *MessageLimiter {
	if burst < 1 {
		burst = 1
	}
	var interval time.Duration
	if perSecond > 0 {
		interval = time.Duration(float64(time.Second) / perSecond)
	}
	return &MessageLimiter{
		interval: interval,
		ahead:    time.Duration(burst-1) * interval,
		now:      time.Now,
	}
}

// Allow reports whether one more message fits and, if so, books it.
func (l *MessageLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	due := l.due
	if due.Before(now) {
		due = now
	}
	if due.Sub(now) > l.ahead {
		return false
	}
	l.due = due.Add(l.interval)
	return true
}
