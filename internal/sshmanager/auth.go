package sshmanager

import (
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/gluk-w/sshdeck/internal/sshkeys"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// authProbe watches a handshake so a failed ssh.NewClientConn can be
// attributed to the right phase: the host key check, authentication, or
// the protocol exchange before either.
type authProbe struct {
	mu         sync.Mutex
	hostKeyErr error
	attempted  bool
	onVerified func()
}

func (p *authProbe) wrapHostKey(cb ssh.HostKeyCallback) ssh.HostKeyCallback {
	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		if err := cb(hostname, remote, key); err != nil {
			p.mu.Lock()
			p.hostKeyErr = err
			p.mu.Unlock()
			return err
		}
		if p.onVerified != nil {
			p.onVerified()
		}
		return nil
	}
}

func (p *authProbe) markAttempted() {
	p.mu.Lock()
	p.attempted = true
	p.mu.Unlock()
}

// classify maps a handshake error to a Kind. For host key failures the
// verifier's own error is returned in place of the handshake error.
func (p *authProbe) classify(err error) (Kind, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.hostKeyErr != nil:
		return KindHostKey, p.hostKeyErr
	case p.attempted, strings.Contains(err.Error(), "unable to authenticate"):
		return KindAuth, err
	default:
		return KindHandshake, err
	}
}

// credentials holds the auth methods for one attempt plus anything that has
// to be released with the connection.
type credentials struct {
	methods []ssh.AuthMethod
	agent   io.Closer
}

func (c *credentials) Close() error {
	if c.agent != nil {
		return c.agent.Close()
	}
	return nil
}

// loadCredentials prepares auth material before any network traffic. Key
// files are parsed and the agent is contacted here so that local problems
// surface as auth errors without dialing.
func loadCredentials(cfg ConnectionConfig, agentSocket string, probe *authProbe) (*credentials, error) {
	switch cfg.AuthType {
	case AuthPassword:
		password := cfg.AuthValue
		return &credentials{methods: []ssh.AuthMethod{
			ssh.PasswordCallback(func() (string, error) {
				probe.markAttempted()
				return password, nil
			}),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				probe.markAttempted()
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		}}, nil

	case AuthKey:
		signer, err := sshkeys.LoadPrivateKeyFile(cfg.AuthValue, cfg.Passphrase)
		if err != nil {
			return nil, err
		}
		return &credentials{methods: []ssh.AuthMethod{
			ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
				probe.markAttempted()
				return []ssh.Signer{signer}, nil
			}),
		}}, nil

	case AuthAgent:
		if agentSocket == "" {
			agentSocket = os.Getenv("SSH_AUTH_SOCK")
		}
		if agentSocket == "" {
			return nil, fmt.Errorf("no ssh agent available (SSH_AUTH_SOCK is not set)")
		}
		conn, err := net.Dial("unix", agentSocket)
		if err != nil {
			return nil, fmt.Errorf("connect to ssh agent: %w", err)
		}
		client := agent.NewClient(conn)
		signers, err := client.Signers()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("list agent keys: %w", err)
		}
		if len(signers) == 0 {
			conn.Close()
			return nil, fmt.Errorf("ssh agent holds no keys")
		}
		return &credentials{
			methods: []ssh.AuthMethod{
				ssh.PublicKeysCallback(func() ([]ssh.Signer, error) {
					probe.markAttempted()
					return signers, nil
				}),
			},
			agent: conn,
		}, nil
	}
	return nil, fmt.Errorf("unsupported auth type %q", cfg.AuthType)
}
