package sshaudit

import (
	"net"
	"net/http"
	"strings"

	"github.com/gluk-w/sshdeck/internal/sshmanager"
)

// RecordConnectionEvent turns a registry event into an audit entry. It is
// meant to be registered with sshmanager's EventLog.OnEvent.
func (a *Auditor) RecordConnectionEvent(e sshmanager.ConnectionEvent) {
	var eventType string
	switch e.Type {
	case sshmanager.EventConnected:
		eventType = EventConnectionEstablished
	case sshmanager.EventConnectFailed:
		eventType = EventConnectionFailed
	case sshmanager.EventDisconnected:
		eventType = EventConnectionTerminated
	case sshmanager.EventTeardownError:
		eventType = EventTeardownError
	case sshmanager.EventRateLimited:
		eventType = EventRateLimited
	default:
		return
	}
	a.Log(AuditEntry{
		EventType:  eventType,
		SessionID:  e.SessionID,
		Target:     e.Target,
		Username:   targetUser(e.Target),
		Details:    e.Details,
		DurationMs: e.DurationMs,
	})
}

// LogSession records a change to a saved session profile.
func (a *Auditor) LogSession(eventType, name, sourceIP string) {
	a.Log(AuditEntry{EventType: eventType, Target: "session:" + name, SourceIP: sourceIP})
}

// LogKey records a key being generated, saved or deleted.
func (a *Auditor) LogKey(eventType, name, fingerprint, sourceIP string) {
	entry := AuditEntry{EventType: eventType, Target: "key:" + name, SourceIP: sourceIP}
	if fingerprint != "" {
		entry.Details = "fingerprint=" + fingerprint
	}
	a.Log(entry)
}

// targetUser returns the user part of user@host:port.
func targetUser(target string) string {
	user, _, ok := strings.Cut(target, "@")
	if !ok {
		return ""
	}
	return user
}

// ExtractSourceIP extracts the client IP from an HTTP request, preferring
// X-Forwarded-For and X-Real-IP headers.
func ExtractSourceIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-Ip"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
