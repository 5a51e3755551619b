package sshmanager

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gluk-w/sshdeck/internal/sshterminal"
	"golang.org/x/crypto/ssh"
)

// Connection is one live shell: the TCP socket, the SSH client on top of
// it and the interactive channel. All three are created together by
// establish and released together by close.
type Connection struct {
	id          string
	cfg         ConnectionConfig
	connectedAt time.Time
	state       *stateMachine

	mu     sync.Mutex // serializes send, read, resize and teardown
	client *ssh.Client
	term   *sshterminal.Terminal
	creds  *credentials
	closed bool
}

// ConnectionInfo is the public view of a Connection.
type ConnectionInfo struct {
	SessionID   string          `json:"session_id"`
	Host        string          `json:"host"`
	Port        uint16          `json:"port"`
	Username    string          `json:"username"`
	AuthType    AuthType        `json:"auth_type"`
	State       ConnectionState `json:"state"`
	ConnectedAt time.Time       `json:"connected_at"`
}

func (c *Connection) info() ConnectionInfo {
	return ConnectionInfo{
		SessionID:   c.id,
		Host:        c.cfg.Host,
		Port:        c.cfg.Port,
		Username:    c.cfg.Username,
		AuthType:    c.cfg.AuthType,
		State:       c.state.get(),
		ConnectedAt: c.connectedAt,
	}
}

// dialer settings for one establish call.
type dialer struct {
	connectTimeout   time.Duration
	handshakeTimeout time.Duration
	agentSocket      string
	hostKeys         *HostKeyVerifier
	terminal         sshterminal.Options
}

// establish runs the whole setup sequence. On any failure everything opened
// so far is released, the state machine ends in Closed and a *Error is
// returned. The returned Connection has no id yet.
func (d dialer) establish(ctx context.Context, cfg ConnectionConfig) (conn *Connection, err error) {
	sm := newStateMachine()
	_ = sm.advance(StateConnecting)
	defer func() {
		if err != nil {
			_ = sm.advance(StateClosed)
		}
	}()

	probe := &authProbe{onVerified: func() { _ = sm.advance(StateAuthenticating) }}
	creds, err := loadCredentials(cfg, d.agentSocket, probe)
	if err != nil {
		return nil, &Error{Kind: KindAuth, Op: "connect", Err: err}
	}
	defer func() {
		if err != nil {
			creds.Close()
		}
	}()

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	var hostKeyAlgos []string
	if d.hostKeys != nil {
		hostKeyCallback, hostKeyAlgos, err = d.hostKeys.callback(cfg.Addr())
		if err != nil {
			return nil, &Error{Kind: KindHostKey, Op: "connect", Err: err}
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, d.connectTimeout)
	defer cancel()
	var nd net.Dialer
	tcp, err := nd.DialContext(dialCtx, "tcp", cfg.Addr())
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return nil, &Error{Kind: KindTransport, Op: "connect", Err: err}
	}

	_ = sm.advance(StateHandshaking)
	_ = tcp.SetDeadline(time.Now().Add(d.handshakeTimeout))
	stop := context.AfterFunc(ctx, func() { tcp.Close() })

	clientConn, chans, reqs, err := ssh.NewClientConn(tcp, cfg.Addr(), &ssh.ClientConfig{
		User:              cfg.Username,
		Auth:              creds.methods,
		HostKeyCallback:   probe.wrapHostKey(hostKeyCallback),
		HostKeyAlgorithms: hostKeyAlgos,
	})
	stopped := stop()
	if err != nil {
		tcp.Close()
		if !stopped {
			return nil, &Error{Kind: KindHandshake, Op: "connect", Err: fmt.Errorf("%w: %w", ctx.Err(), err)}
		}
		kind, cause := probe.classify(err)
		return nil, &Error{Kind: kind, Op: "connect", Err: cause}
	}
	if !stopped {
		clientConn.Close()
		return nil, &Error{Kind: KindHandshake, Op: "connect", Err: ctx.Err()}
	}
	_ = sm.advance(StateAuthenticating)

	client := ssh.NewClient(clientConn, chans, reqs)

	// Channel, PTY and shell requests get the same budget as the handshake.
	setupDeadline := time.Now().Add(d.handshakeTimeout)
	_ = tcp.SetDeadline(setupDeadline)
	stop = context.AfterFunc(ctx, func() { client.Close() })

	topts := d.terminal
	topts.OnChannelOpen = func() { _ = sm.advance(StateChannelOpen) }
	term, err := sshterminal.Open(client, topts)
	stopped = stop()
	if err == nil && !stopped {
		term.Close()
		client.Close()
		return nil, &Error{Kind: KindChannel, Op: "connect", Err: ctx.Err()}
	}
	if err != nil {
		client.Close()
		switch {
		case !stopped:
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		case !time.Now().Before(setupDeadline):
			err = fmt.Errorf("no reply within %s: %w", d.handshakeTimeout, err)
		}
		return nil, &Error{Kind: setupKind(err), Op: "connect", Err: err}
	}
	_ = tcp.SetDeadline(time.Time{})
	_ = sm.advance(StateShellActive)

	// A shell that exits on its own leaves shell_active; the session stays
	// registered until it is disconnected.
	go func() {
		<-term.Exited()
		_ = sm.advance(StateClosing)
	}()

	stripped := cfg
	stripped.AuthValue = ""
	stripped.Passphrase = ""
	return &Connection{
		cfg:         stripped,
		connectedAt: time.Now(),
		state:       sm,
		client:      client,
		term:        term,
		creds:       creds,
	}, nil
}

func setupKind(err error) Kind {
	var se *sshterminal.SetupError
	if errors.As(err, &se) {
		switch se.Stage {
		case sshterminal.StagePty:
			return KindPty
		case sshterminal.StageShell:
			return KindShell
		}
	}
	return KindChannel
}

var errClosed = errors.New("connection closed")

func (c *Connection) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &Error{Kind: KindNotFound, Op: "send", Err: errClosed}
	}
	if err := c.term.Write(data); err != nil {
		return &Error{Kind: KindWrite, Op: "send", Err: err}
	}
	return nil
}

func (c *Connection) read() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", &Error{Kind: KindNotFound, Op: "read", Err: errClosed}
	}
	out, err := c.term.ReadOutput()
	if err != nil {
		return "", &Error{Kind: KindRead, Op: "read", Err: err}
	}
	return out, nil
}

func (c *Connection) resize(cols, rows int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &Error{Kind: KindNotFound, Op: "resize", Err: errClosed}
	}
	if c.state.get() != StateShellActive {
		return &Error{Kind: KindResize, Op: "resize", Err: fmt.Errorf("channel is %s", c.state.get())}
	}
	if err := c.term.Resize(cols, rows); err != nil {
		return &Error{Kind: KindResize, Op: "resize", Err: err}
	}
	return nil
}

// close tears the connection down. Every step runs even if an earlier one
// failed; the joined error is for logging only.
func (c *Connection) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.state.advance(StateClosing)

	var errs []error
	if err := c.term.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := c.client.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, fmt.Errorf("close client: %w", err))
	}
	if err := c.creds.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = append(errs, fmt.Errorf("close agent: %w", err))
	}

	_ = c.state.advance(StateClosed)
	return errors.Join(errs...)
}
