package sshmanager

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/gluk-w/sshdeck/internal/logutil"
	"github.com/gluk-w/sshdeck/internal/sshterminal"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConnectTimeout   = 10 * time.Second
	DefaultHandshakeTimeout = 30 * time.Second
)

// Options configures a Registry. Zero values select the defaults.
type Options struct {
	ConnectTimeout   time.Duration // bounds the TCP dial
	HandshakeTimeout time.Duration // bounds the SSH handshake and authentication
	Terminal         sshterminal.Options

	// HostKeys checks server host keys. When nil every host key is
	// accepted.
	HostKeys *HostKeyVerifier

	// AgentSocket overrides SSH_AUTH_SOCK for agent authentication.
	AgentSocket string

	// RateLimit limits connection attempts per target. Nil disables it.
	RateLimit *RateLimitConfig
}

// Registry owns every live Connection, keyed by session id. The map lock is
// only held for map operations; all I/O happens under the per-connection
// lock.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection

	dialer  dialer
	limiter *RateLimiter
	events  *EventLog
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = DefaultHandshakeTimeout
	}
	r := &Registry{
		conns: make(map[string]*Connection),
		dialer: dialer{
			connectTimeout:   opts.ConnectTimeout,
			handshakeTimeout: opts.HandshakeTimeout,
			agentSocket:      opts.AgentSocket,
			hostKeys:         opts.HostKeys,
			terminal:         opts.Terminal,
		},
		events: NewEventLog(),
	}
	if opts.RateLimit != nil {
		r.limiter = NewRateLimiter(*opts.RateLimit)
	}
	return r
}

// Events returns the connection event log.
func (r *Registry) Events() *EventLog { return r.events }

// Connect drives a new connection through setup and returns its session id.
// Nothing is registered unless every step succeeds.
func (r *Registry) Connect(ctx context.Context, cfg ConnectionConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", &Error{Kind: KindConfig, Op: "connect", Err: err}
	}
	target := cfg.Target()

	if r.limiter != nil {
		if err := r.limiter.Allow(target); err != nil {
			r.events.Emit(target, "", EventRateLimited, err.Error())
			return "", &Error{Kind: KindRateLimited, Op: "connect", Err: err}
		}
	}

	start := time.Now()
	conn, err := r.dialer.establish(ctx, cfg)
	if err != nil {
		if r.limiter != nil {
			r.limiter.RecordFailure(target)
		}
		r.events.Emit(target, "", EventConnectFailed, err.Error())
		return "", err
	}
	if r.limiter != nil {
		r.limiter.RecordSuccess(target)
	}

	conn.id = uuid.NewString()
	r.mu.Lock()
	r.conns[conn.id] = conn
	r.mu.Unlock()

	log.Printf("[ssh] connected %s as %s in %s",
		logutil.SanitizeForLog(target), conn.id, time.Since(start).Truncate(time.Millisecond))
	r.events.Emit(target, conn.id, EventConnected, fmt.Sprintf("auth=%s", cfg.AuthType))
	return conn.id, nil
}

func (r *Registry) lookup(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

func (r *Registry) get(op, id string) (*Connection, error) {
	c, ok := r.lookup(id)
	if !ok {
		return nil, &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf("session %q", id)}
	}
	return c, nil
}

// Disconnect removes the session and tears it down. Unknown ids are a
// no-op. Teardown failures are logged, never returned: the connection is
// gone from the registry either way.
func (r *Registry) Disconnect(id string) {
	r.mu.Lock()
	c, ok := r.conns[id]
	delete(r.conns, id)
	r.mu.Unlock()
	if !ok {
		return
	}
	r.teardown(c)
}

func (r *Registry) teardown(c *Connection) error {
	target := c.cfg.Target()
	err := c.close()
	if err != nil {
		log.Printf("[ssh] teardown of %s (%s): %s", c.id, logutil.SanitizeForLog(target), logutil.SanitizeForLog(err.Error()))
		r.events.Emit(target, c.id, EventTeardownError, err.Error())
		err = fmt.Errorf("session %s: %w", c.id, err)
	}
	r.events.record(ConnectionEvent{
		Target:     target,
		SessionID:  c.id,
		Type:       EventDisconnected,
		DurationMs: time.Since(c.connectedAt).Milliseconds(),
	})
	return err
}

// SendCommand writes raw bytes to the session's shell. No line terminator
// is added.
func (r *Registry) SendCommand(id string, data []byte) error {
	c, err := r.get("send", id)
	if err != nil {
		return err
	}
	return c.send(data)
}

// ReadOutput returns whatever output has arrived since the last call, or
// "" when there is none. It never waits for the remote side.
func (r *Registry) ReadOutput(id string) (string, error) {
	c, err := r.get("read", id)
	if err != nil {
		return "", err
	}
	return c.read()
}

// ResizeTerminal changes the session's PTY size.
func (r *Registry) ResizeTerminal(id string, cols, rows int) error {
	c, err := r.get("resize", id)
	if err != nil {
		return err
	}
	return c.resize(cols, rows)
}

// OutputReady returns a channel that is signaled when new output arrives,
// for callers that stream instead of polling on a fixed interval.
func (r *Registry) OutputReady(id string) (<-chan struct{}, error) {
	c, err := r.get("read", id)
	if err != nil {
		return nil, err
	}
	return c.term.Output().Notify(), nil
}

// Info returns the public view of one session.
func (r *Registry) Info(id string) (ConnectionInfo, error) {
	c, err := r.get("info", id)
	if err != nil {
		return ConnectionInfo{}, err
	}
	return c.info(), nil
}

// Transitions returns the state history of one session.
func (r *Registry) Transitions(id string) ([]StateTransition, error) {
	c, err := r.get("transitions", id)
	if err != nil {
		return nil, err
	}
	return c.state.transitions(), nil
}

// List returns every live session ordered by connect time.
func (r *Registry) List() []ConnectionInfo {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	out := make([]ConnectionInfo, len(conns))
	for i, c := range conns {
		out[i] = c.info()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CloseAll disconnects every session concurrently. Every session is removed
// even when its teardown fails; the first such failure is returned. It
// returns early with ctx's error if ctx ends first; teardowns already
// started keep running.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]*Connection)
	r.mu.Unlock()

	if len(conns) == 0 {
		return nil
	}
	log.Printf("[ssh] closing %d sessions", len(conns))

	done := make(chan error, 1)
	go func() {
		var g errgroup.Group
		for _, c := range conns {
			g.Go(func() error { return r.teardown(c) })
		}
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
