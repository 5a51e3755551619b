package sshmanager

import (
	"fmt"
	"sync"
	"time"
)

// ConnectionState is the lifecycle phase of a single connection.
type ConnectionState string

const (
	StateDisconnected   ConnectionState = "disconnected"
	StateConnecting     ConnectionState = "connecting"
	StateHandshaking    ConnectionState = "handshaking"
	StateAuthenticating ConnectionState = "authenticating"
	StateChannelOpen    ConnectionState = "channel_open"
	StateShellActive    ConnectionState = "shell_active"
	StateClosing        ConnectionState = "closing"
	StateClosed         ConnectionState = "closed"
)

func (s ConnectionState) String() string {
	return string(s)
}

// IsValid returns true if the state is one of the defined constants.
func (s ConnectionState) IsValid() bool {
	switch s {
	case StateDisconnected, StateConnecting, StateHandshaking, StateAuthenticating,
		StateChannelOpen, StateShellActive, StateClosing, StateClosed:
		return true
	default:
		return false
	}
}

// lifecycle lists the allowed forward edges. Any setup phase may
// also fall straight to Closed when it fails.
var lifecycle = map[ConnectionState][]ConnectionState{
	StateDisconnected:   {StateConnecting},
	StateConnecting:     {StateHandshaking, StateClosed},
	StateHandshaking:    {StateAuthenticating, StateClosed},
	StateAuthenticating: {StateChannelOpen, StateClosed},
	StateChannelOpen:    {StateShellActive, StateClosed},
	StateShellActive:    {StateClosing},
	StateClosing:        {StateClosed},
}

func canTransition(from, to ConnectionState) bool {
	for _, s := range lifecycle[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StateTransition records a state change for debugging.
type StateTransition struct {
	From      ConnectionState `json:"from"`
	To        ConnectionState `json:"to"`
	Timestamp time.Time       `json:"timestamp"`
}

// maxTransitions bounds the per-connection history. A full lifecycle is
// seven transitions so this is never hit in practice.
const maxTransitions = 16

// stateMachine guards one connection's state with its own small lock so
// that State() never waits on a slow send or teardown.
type stateMachine struct {
	mu      sync.Mutex
	state   ConnectionState
	history []StateTransition
	nowFn   func() time.Time
}

func newStateMachine() *stateMachine {
	return &stateMachine{state: StateDisconnected, nowFn: time.Now}
}

func (m *stateMachine) get() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// advance moves to the next state, rejecting edges the lifecycle does not
// allow. Moving to the current state is a no-op.
func (m *stateMachine) advance(to ConnectionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == to {
		return nil
	}
	if !canTransition(m.state, to) {
		return fmt.Errorf("invalid state transition %s -> %s", m.state, to)
	}
	m.history = append(m.history, StateTransition{From: m.state, To: to, Timestamp: m.nowFn()})
	if len(m.history) > maxTransitions {
		m.history = m.history[len(m.history)-maxTransitions:]
	}
	m.state = to
	return nil
}

func (m *stateMachine) transitions() []StateTransition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StateTransition, len(m.history))
	copy(out, m.history)
	return out
}
