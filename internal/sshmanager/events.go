package sshmanager

import (
	"log"
	"sync"
	"time"

	"github.com/gluk-w/sshdeck/internal/logutil"
)

// EventType identifies the type of connection event.
type EventType string

const (
	EventConnected     EventType = "connected"
	EventConnectFailed EventType = "connect_failed"
	EventDisconnected  EventType = "disconnected"
	EventTeardownError EventType = "teardown_error"
	EventRateLimited   EventType = "rate_limited"
)

// ConnectionEvent is one entry in a target's event history.
type ConnectionEvent struct {
	Target    string    `json:"target"`
	SessionID string    `json:"session_id,omitempty"`
	Type      EventType `json:"type"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`

	// DurationMs is how long the session was up; set on disconnected events.
	DurationMs int64 `json:"duration_ms,omitempty"`
}

// EventListener receives every event after it is stored.
type EventListener func(ConnectionEvent)

// maxEventsPerTarget limits the number of stored events per target.
const maxEventsPerTarget = 100

// EventLog keeps the last maxEventsPerTarget events for each target.
type EventLog struct {
	mu        sync.RWMutex
	events    map[string][]ConnectionEvent
	listeners []EventListener
	nowFn     func() time.Time
}

// NewEventLog creates an empty event log.
func NewEventLog() *EventLog {
	return &EventLog{
		events: make(map[string][]ConnectionEvent),
		nowFn:  time.Now,
	}
}

// OnEvent registers a listener. Listeners run synchronously on the goroutine
// that emitted the event, outside the log's lock.
func (l *EventLog) OnEvent(fn EventListener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// Emit records an event and logs it.
func (l *EventLog) Emit(target, sessionID string, eventType EventType, details string) {
	l.record(ConnectionEvent{
		Target:    target,
		SessionID: sessionID,
		Type:      eventType,
		Details:   details,
	})
}

func (l *EventLog) record(event ConnectionEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = l.nowFn()
	}

	l.mu.Lock()
	events := append(l.events[event.Target], event)
	if len(events) > maxEventsPerTarget {
		events = events[len(events)-maxEventsPerTarget:]
	}
	l.events[event.Target] = events
	listeners := make([]EventListener, len(l.listeners))
	copy(listeners, l.listeners)
	l.mu.Unlock()

	log.Printf("[ssh] event %s/%s: %s", logutil.SanitizeForLog(event.Target), event.Type, logutil.SanitizeForLog(event.Details))

	for _, fn := range listeners {
		fn(event)
	}
}

// Events returns the stored events for a target, oldest first.
func (l *EventLog) Events(target string) []ConnectionEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	events := l.events[target]
	result := make([]ConnectionEvent, len(events))
	copy(result, events)
	return result
}

// Recent returns the most recent n events for a target.
func (l *EventLog) Recent(target string, n int) []ConnectionEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	events := l.events[target]
	if n < 0 {
		n = 0
	}
	if len(events) > n {
		events = events[len(events)-n:]
	}
	result := make([]ConnectionEvent, len(events))
	copy(result, events)
	return result
}

// Targets returns every target with at least one stored event.
func (l *EventLog) Targets() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.events))
	for t := range l.events {
		out = append(out, t)
	}
	return out
}

// Clear removes all stored events for a target.
func (l *EventLog) Clear(target string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.events, target)
}

// CountsByType returns how many events of the given type each target has.
// Targets without a matching event are omitted.
func (l *EventLog) CountsByType(eventType EventType) map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make(map[string]int)
	for target, events := range l.events {
		count := 0
		for _, e := range events {
			if e.Type == eventType {
				count++
			}
		}
		if count > 0 {
			result[target] = count
		}
	}
	return result
}
