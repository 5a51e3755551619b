package sshmanager

import (
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/gluk-w/sshdeck/internal/logutil"
	"github.com/skeema/knownhosts"
	"golang.org/x/crypto/ssh"
)

// HostKeyPolicy decides how server host keys are checked.
//
//	Verify=false               accept any key
//	Verify=true, Strict=false  trust on first use: unknown hosts are recorded
//	Verify=true, Strict=true   only hosts already in known_hosts are accepted
//
// A changed key is rejected whenever Verify is set.
type HostKeyPolicy struct {
	Verify bool `json:"verify_host_keys"`
	Strict bool `json:"strict_host_key_checking"`
}

// ErrHostKeyUnknown is returned under a strict policy for a host that has
// no known_hosts entry.
var ErrHostKeyUnknown = errors.New("host key is not in known_hosts")

// ErrHostKeyChanged is returned when a host presents a key that differs
// from its known_hosts entry.
var ErrHostKeyChanged = errors.New("host key has changed")

// HostKeyVerifier checks host keys against a known_hosts file. The policy
// can be changed while connections are in flight; each attempt uses the
// policy in effect when it started.
type HostKeyVerifier struct {
	path string

	policyMu sync.RWMutex
	policy   HostKeyPolicy

	writeMu sync.Mutex
}

// NewHostKeyVerifier creates the known_hosts file (0600) and its directory
// if they do not exist yet.
func NewHostKeyVerifier(path string, policy HostKeyPolicy) (*HostKeyVerifier, error) {
	if path == "" {
		return nil, fmt.Errorf("known_hosts path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create known_hosts directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("create known_hosts: %w", err)
	}
	f.Close()
	return &HostKeyVerifier{path: path, policy: policy}, nil
}

// Path returns the known_hosts location.
func (v *HostKeyVerifier) Path() string { return v.path }

func (v *HostKeyVerifier) Policy() HostKeyPolicy {
	v.policyMu.RLock()
	defer v.policyMu.RUnlock()
	return v.policy
}

func (v *HostKeyVerifier) SetPolicy(p HostKeyPolicy) {
	v.policyMu.Lock()
	v.policy = p
	v.policyMu.Unlock()
	log.Printf("[ssh] host key policy: verify=%t strict=%t", p.Verify, p.Strict)
}

// callback returns the host key callback for one connection attempt and
// the key algorithms to prefer for addr, so a host already on file is asked
// for the key type that was recorded.
func (v *HostKeyVerifier) callback(addr string) (ssh.HostKeyCallback, []string, error) {
	policy := v.Policy()
	if !policy.Verify {
		return ssh.InsecureIgnoreHostKey(), nil, nil
	}

	db, err := knownhosts.New(v.path)
	if err != nil {
		return nil, nil, fmt.Errorf("load known_hosts: %w", err)
	}
	algos := db.HostKeyAlgorithms(addr)
	check := db.HostKeyCallback()

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := check(hostname, remote, key)
		switch {
		case err == nil:
			return nil
		case knownhosts.IsHostKeyChanged(err):
			log.Printf("[ssh] host key for %s changed (%s)", logutil.SanitizeForLog(hostname), ssh.FingerprintSHA256(key))
			return fmt.Errorf("%w: %s presented %s", ErrHostKeyChanged, hostname, ssh.FingerprintSHA256(key))
		case knownhosts.IsHostUnknown(err):
			if policy.Strict {
				return fmt.Errorf("%w: %s (%s)", ErrHostKeyUnknown, hostname, ssh.FingerprintSHA256(key))
			}
			return v.remember(hostname, remote, key)
		default:
			return err
		}
	}, algos, nil
}

// remember appends a first-seen host key to known_hosts.
func (v *HostKeyVerifier) remember(hostname string, remote net.Addr, key ssh.PublicKey) error {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()

	f, err := os.OpenFile(v.path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("open known_hosts for writing: %w", err)
	}
	defer f.Close()

	if err := knownhosts.WriteKnownHost(f, hostname, remote, key); err != nil {
		return fmt.Errorf("write known_hosts: %w", err)
	}
	log.Printf("[ssh] added host key for %s to %s (%s)",
		logutil.SanitizeForLog(hostname), v.path, ssh.FingerprintSHA256(key))
	return nil
}
