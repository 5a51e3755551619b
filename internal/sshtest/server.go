// Package sshtest runs an in-process SSH server for tests. Shell sessions
// echo their input, report window changes and exit when stdin reaches EOF.
package sshtest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"sync"
	"testing"

	"golang.org/x/crypto/ssh"
)

// Options controls what the server accepts.
type Options struct {
	Password       string          // accepted password for any user, if set
	AuthorizedKeys []ssh.PublicKey // accepted public keys for any user
	NoClientAuth   bool

	RejectChannel bool // refuse "session" channels
	RejectPty     bool // refuse "pty-req"
	RejectShell   bool // refuse "shell"

	Banner     string // written to the channel when the shell starts
	ExitOnLine string // input line that makes the shell exit, like "exit"
	IgnoreEOF  bool   // keep the channel open after the client's EOF

	StallRequests bool // accept session channels but never answer their requests
}

// Server is a running test server.
type Server struct {
	Addr    string
	Host    string
	Port    uint16
	HostKey ssh.PublicKey

	opts     Options
	config   *ssh.ServerConfig
	listener net.Listener
	wg       sync.WaitGroup

	mu    sync.Mutex
	conns []net.Conn
	ptys  []PtyRequest
}

// PtyRequest records one accepted pty-req.
type PtyRequest struct {
	Term       string
	Cols, Rows uint32
}

// Start listens on 127.0.0.1 and serves until the test ends.
func Start(t testing.TB, opts Options) *Server {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	hostSigner, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("host signer: %v", err)
	}

	s := &Server{opts: opts, HostKey: hostSigner.PublicKey()}
	s.config = &ssh.ServerConfig{NoClientAuth: opts.NoClientAuth}
	if opts.Password != "" {
		s.config.PasswordCallback = func(_ ssh.ConnMetadata, pw []byte) (*ssh.Permissions, error) {
			if string(pw) == opts.Password {
				return &ssh.Permissions{}, nil
			}
			return nil, fmt.Errorf("password rejected")
		}
	}
	if len(opts.AuthorizedKeys) > 0 {
		s.config.PublicKeyCallback = func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			for _, k := range opts.AuthorizedKeys {
				if ssh.FingerprintSHA256(k) == ssh.FingerprintSHA256(key) {
					return &ssh.Permissions{}, nil
				}
			}
			return nil, fmt.Errorf("unknown public key")
		}
	}
	s.config.AddHostKey(hostSigner)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s.listener = ln
	s.Addr = ln.Addr().String()
	host, portStr, _ := net.SplitHostPort(s.Addr)
	port, _ := strconv.Atoi(portStr)
	s.Host, s.Port = host, uint16(port)

	s.wg.Add(1)
	go s.serve()
	t.Cleanup(s.Close)
	return s
}

// PtyRequests returns the pty-req payloads accepted so far.
func (s *Server) PtyRequests() []PtyRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PtyRequest(nil), s.ptys...)
}

// Close stops the listener and drops every connection.
func (s *Server) Close() {
	s.listener.Close()
	s.mu.Lock()
	for _, c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		netConn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, netConn)
		s.mu.Unlock()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(netConn)
		}()
	}
}

func (s *Server) handleConn(netConn net.Conn) {
	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, s.config)
	if err != nil {
		netConn.Close()
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	for newChan := range chans {
		if newChan.ChannelType() != "session" || s.opts.RejectChannel {
			newChan.Reject(ssh.Prohibited, "session channels refused")
			continue
		}
		ch, requests, err := newChan.Accept()
		if err != nil {
			continue
		}
		go s.handleSession(ch, requests)
	}
}

func (s *Server) handleSession(ch ssh.Channel, requests <-chan *ssh.Request) {
	defer ch.Close()

	if s.opts.StallRequests {
		for range requests {
		}
		return
	}
	for req := range requests {
		switch req.Type {
		case "pty-req":
			if s.opts.RejectPty {
				req.Reply(false, nil)
				continue
			}
			s.recordPty(req.Payload)
			req.Reply(true, nil)

		case "window-change":
			if len(req.Payload) >= 8 {
				cols := binary.BigEndian.Uint32(req.Payload[0:4])
				rows := binary.BigEndian.Uint32(req.Payload[4:8])
				fmt.Fprintf(ch, "resize:%dx%d\n", cols, rows)
			}
			if req.WantReply {
				req.Reply(true, nil)
			}

		case "shell":
			if s.opts.RejectShell {
				req.Reply(false, nil)
				continue
			}
			req.Reply(true, nil)
			go func() {
				if s.opts.Banner != "" {
					ch.Write([]byte(s.opts.Banner))
				}
				if echo(ch, s.opts.ExitOnLine) || !s.opts.IgnoreEOF {
					exit(ch)
				}
			}()

		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}

// echo writes input back until EOF or until a line equal to exitLine
// arrives. It reports whether exitLine was seen.
func echo(ch ssh.Channel, exitLine string) bool {
	buf := make([]byte, 4096)
	var line []byte
	for {
		n, err := ch.Read(buf)
		if n > 0 {
			ch.Write(buf[:n])
		}
		if exitLine != "" && sawLine(&line, buf[:n], exitLine) {
			return true
		}
		if err != nil {
			return false
		}
	}
}

// exit reports exit status 0 and closes the channel.
func exit(ch ssh.Channel) {
	ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{0}))
	ch.CloseWrite()
	ch.Close()
}

// sawLine feeds p into the pending line and reports whether a completed
// line equals want.
func sawLine(line *[]byte, p []byte, want string) bool {
	for _, c := range p {
		if c != '\n' && c != '\r' {
			*line = append(*line, c)
			continue
		}
		if string(*line) == want {
			return true
		}
		*line = (*line)[:0]
	}
	return false
}

func (s *Server) recordPty(payload []byte) {
	var p struct {
		Term    string
		Columns uint32
		Rows    uint32
		Width   uint32
		Height  uint32
		Modes   string
	}
	if err := ssh.Unmarshal(payload, &p); err != nil {
		return
	}
	s.mu.Lock()
	s.ptys = append(s.ptys, PtyRequest{Term: p.Term, Cols: p.Columns, Rows: p.Rows})
	s.mu.Unlock()
}

// Dial connects to the server with the given auth methods, ignoring the host
// key.
func (s *Server) Dial(t testing.TB, user string, auth ...ssh.AuthMethod) *ssh.Client {
	t.Helper()
	client, err := ssh.Dial("tcp", s.Addr, &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	})
	if err != nil {
		t.Fatalf("dial test server: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}
