package sshterminal

import (
	"testing"
	"time"
)

func TestValidateSize(t *testing.T) {
	tests := []struct {
		cols, rows int
		ok         bool
	}{
		{80, 24, true},
		{1, 1, true},
		{MaxTermCols, MaxTermRows, true},
		{0, 24, false},
		{80, -1, false},
		{MaxTermCols + 1, 24, false},
		{80, MaxTermRows + 1, false},
	}
	for _, tt := range tests {
		err := ValidateSize(tt.cols, tt.rows)
		if (err == nil) != tt.ok {
			t.Errorf("ValidateSize(%d, %d) error = %v, want ok=%v", tt.cols, tt.rows, err, tt.ok)
		}
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(perSecond float64, burst int) (*MessageLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	l := NewMessageLimiter(perSecond, burst)
	l.now = clock.now
	return l, clock
}

func TestMessageLimiter_RejectsOverBurst(t *testing.T) {
	l, _ := newTestLimiter(10, 3)
	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("Allow() = false at message %d, within burst", i)
		}
	}
	if l.Allow() {
		t.Fatal("Allow() = true once the burst was spent")
	}
}

func TestMessageLimiter_SustainedRate(t *testing.T) {
	l, clock := newTestLimiter(100, 1)
	if !l.Allow() {
		t.Fatal("first message refused")
	}
	if l.Allow() {
		t.Fatal("second message within the interval allowed")
	}
	clock.advance(5 * time.Millisecond)
	if l.Allow() {
		t.Fatal("message after half an interval allowed")
	}
	clock.advance(5 * time.Millisecond)
	if !l.Allow() {
		t.Fatal("message after a full interval refused")
	}
}

func TestMessageLimiter_IdleRestoresBurst(t *testing.T) {
	l, clock := newTestLimiter(10, 3)
	for l.Allow() {
	}
	clock.advance(time.Minute)
	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("Allow() = false at message %d after idling", i)
		}
	}
	if l.Allow() {
		t.Error("idling granted more than one burst")
	}
}

func TestMessageLimiter_Disabled(t *testing.T) {
	l, _ := newTestLimiter(0, 1)
	for i := 0; i < 1000; i++ {
		if !l.Allow() {
			t.Fatalf("disabled limiter refused message %d", i)
		}
	}
}
