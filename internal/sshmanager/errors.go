package sshmanager

import (
	"errors"
	"fmt"
)

// Kind classifies registry failures.
type Kind int

const (
	KindConfig      Kind = iota + 1 // invalid parameters, including unsupported auth type
	KindRateLimited                 // too many recent attempts against the target
	KindTransport                   // TCP connect failed or timed out
	KindHandshake                   // SSH protocol handshake failed
	KindHostKey                     // server host key rejected
	KindAuth                        // authentication failed
	KindChannel                     // session channel could not be opened
	KindPty                         // PTY request refused
	KindShell                       // shell could not be started
	KindNotFound                    // unknown session id
	KindWrite
	KindRead
	KindResize
)

var kindNames = map[Kind]string{
	KindConfig:      "invalid configuration",
	KindRateLimited: "rate limited",
	KindTransport:   "connection failed",
	KindHandshake:   "handshake failed",
	KindHostKey:     "host key verification failed",
	KindAuth:        "authentication failed",
	KindChannel:     "channel open failed",
	KindPty:         "pty request failed",
	KindShell:       "shell start failed",
	KindNotFound:    "session not found",
	KindWrite:       "write failed",
	KindRead:        "read failed",
	KindResize:      "resize failed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error is returned by every Registry operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of a registry error, or 0 for any other error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsKind reports whether err is a registry *Error of kind k.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}
