package sshterminal

import (
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/ssh"
)

// Defaults for a new terminal.
const (
	DefaultTerm = "xterm-256color"
	DefaultCols = 80
	DefaultRows = 24

	// DefaultTeardownWait bounds each waiting step of Close.
	DefaultTeardownWait = 2 * time.Second
)

// Stage identifies the setup step that failed in Open.
type Stage string

const (
	StageChannel Stage = "channel"
	StagePty     Stage = "pty"
	StageShell   Stage = "shell"
)

// SetupError reports which step of Open failed.
type SetupError struct {
	Stage Stage
	Err   error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("open terminal: %s: %v", e.Stage, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// Options configures Open. Zero values select the defaults above.
type Options struct {
	Term         string
	Cols, Rows   int
	BufferSize   int
	TeardownWait time.Duration

	// OnChannelOpen, if set, runs once the session channel exists and
	// before the PTY is requested.
	OnChannelOpen func()
}

// Terminal is one PTY-backed shell on an SSH session channel. It is not safe
// for concurrent use; callers serialize access (sshmanager holds a
// per-connection lock).
type Terminal struct {
	session      *ssh.Session
	stdin        io.WriteCloser
	out          *OutputBuffer
	stdoutDone   chan struct{}
	teardownWait time.Duration
}

// Open opens a session channel on client, requests a PTY and starts the
// login shell. On failure everything opened so far is closed and a
// *SetupError is returned.
func Open(client *ssh.Client, opts Options) (*Terminal, error) {
	if opts.Term == "" {
		opts.Term = DefaultTerm
	}
	if opts.Cols <= 0 {
		opts.Cols = DefaultCols
	}
	if opts.Rows <= 0 {
		opts.Rows = DefaultRows
	}
	if opts.TeardownWait <= 0 {
		opts.TeardownWait = DefaultTeardownWait
	}

	session, err := client.NewSession()
	if err != nil {
		return nil, &SetupError{Stage: StageChannel, Err: err}
	}
	if opts.OnChannelOpen != nil {
		opts.OnChannelOpen()
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := session.RequestPty(opts.Term, opts.Rows, opts.Cols, modes); err != nil {
		session.Close()
		return nil, &SetupError{Stage: StagePty, Err: err}
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, &SetupError{Stage: StageChannel, Err: fmt.Errorf("stdin pipe: %w", err)}
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, &SetupError{Stage: StageChannel, Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	out := NewOutputBuffer(opts.BufferSize)
	session.Stderr = out

	if err := session.Shell(); err != nil {
		session.Close()
		return nil, &SetupError{Stage: StageShell, Err: err}
	}

	t := &Terminal{
		session:      session,
		stdin:        stdin,
		out:          out,
		stdoutDone:   make(chan struct{}),
		teardownWait: opts.TeardownWait,
	}
	go t.pump(stdout)
	return t, nil
}

// pump copies channel output into the buffer until EOF or error.
func (t *Terminal) pump(stdout io.Reader) {
	defer close(t.stdoutDone)
	buf := make([]byte, ReadChunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			t.out.Write(buf[:n])
		}
		if err != nil {
			t.out.CloseWithError(err)
			return
		}
	}
}

// Write sends raw bytes to the shell. Nothing is appended.
func (t *Terminal) Write(p []byte) error {
	_, err := t.stdin.Write(p)
	return err
}

// ReadOutput returns output that has already arrived, or "" if none has.
// It never blocks.
func (t *Terminal) ReadOutput() (string, error) {
	return t.out.Take(ReadChunkSize)
}

// Output exposes the buffer so streaming callers can wait on Notify.
func (t *Terminal) Output() *OutputBuffer {
	return t.out
}

// Exited is closed once the remote side has ended the output stream.
func (t *Terminal) Exited() <-chan struct{} {
	return t.stdoutDone
}

// Resize changes the PTY window size.
func (t *Terminal) Resize(cols, rows int) error {
	if err := ValidateSize(cols, rows); err != nil {
		return err
	}
	return t.session.WindowChange(rows, cols)
}

// Close tears the channel down: send EOF, wait for the peer's EOF, close the
// channel, wait for the close to be confirmed. All four steps always run.
// The returned error joins every step that failed.
func (t *Terminal) Close() error {
	var errs []error

	if err := t.stdin.Close(); err != nil && !errors.Is(err, io.EOF) {
		errs = append(errs, fmt.Errorf("send eof: %w", err))
	}
	t.out.Release()

	select {
	case <-t.stdoutDone:
	case <-time.After(t.teardownWait):
		errs = append(errs, errors.New("wait eof: timed out"))
	}

	if err := t.session.Close(); err != nil && !errors.Is(err, io.EOF) {
		errs = append(errs, fmt.Errorf("close channel: %w", err))
	}

	waitDone := make(chan error, 1)
	go func() { waitDone <- t.session.Wait() }()
	select {
	case err := <-waitDone:
		if err != nil && !isNormalExit(err) {
			errs = append(errs, fmt.Errorf("wait close: %w", err))
		}
	case <-time.After(t.teardownWait):
		errs = append(errs, errors.New("wait close: timed out"))
	}

	return errors.Join(errs...)
}

// isNormalExit reports whether a Wait error only describes how the remote
// shell ended.
func isNormalExit(err error) bool {
	var exitErr *ssh.ExitError
	var missing *ssh.ExitMissingError
	return errors.As(err, &exitErr) || errors.As(err, &missing) || errors.Is(err, io.EOF)
}
