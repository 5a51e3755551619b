// Package sessionstore persists named connection profiles together with
// their vault-encrypted credentials in a single owner-only JSON file.
package sessionstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"

	"github.com/gluk-w/sshdeck/internal/fsutil"
	"github.com/gluk-w/sshdeck/internal/logutil"
	"github.com/gluk-w/sshdeck/internal/sshmanager"
)

// Kind classifies store failures.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindStorage:
		return "storage"
	}
	return "unknown"
}

type Error struct {
	Kind Kind
	Op   string
	Name string
	Err  error
}

func (e *Error) Error() string {
	msg := "session store " + e.Op
	if e.Name != "" {
		msg += fmt.Sprintf(" %q", e.Name)
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a store *Error of kind k.
func IsKind(err error, k Kind) bool {
	var se *Error
	return errors.As(err, &se) && se.Kind == k
}

// SavedSession is the persisted form of one profile. The auth value of the
// config is never written; the credential lives only in EncryptedAuth.
type SavedSession struct {
	Config        sshmanager.ConnectionConfig `json:"config"`
	EncryptedAuth string                      `json:"encrypted_auth"`
}

// Summary is the non-secret view returned by Load.
type Summary struct {
	Name     string              `json:"name"`
	Host     string              `json:"host"`
	Port     uint16              `json:"port"`
	Username string              `json:"username"`
	AuthType sshmanager.AuthType `json:"auth_type"`
}

// Store reads and rewrites the whole collection on every call. Calls on one
// Store are serialized; separate processes sharing the file are not.
type Store struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the collection file location.
func (s *Store) Path() string { return s.path }

func (s *Store) read() (map[string]SavedSession, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]SavedSession{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	sessions := map[string]SavedSession{}
	if len(data) == 0 {
		return sessions, nil
	}
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return sessions, nil
}

func (s *Store) write(sessions map[string]SavedSession) error {
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	return fsutil.WriteFileAtomic(s.path, data, 0600)
}

// Save inserts or replaces the named profile. The config's AuthValue and
// Passphrase are cleared before persisting.
func (s *Store) Save(name string, cfg sshmanager.ConnectionConfig, encryptedAuth string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.read()
	if err != nil {
		return &Error{Kind: KindStorage, Op: "save", Name: name, Err: err}
	}
	cfg.AuthValue = ""
	cfg.Passphrase = ""
	sessions[name] = SavedSession{Config: cfg, EncryptedAuth: encryptedAuth}
	if err := s.write(sessions); err != nil {
		return &Error{Kind: KindStorage, Op: "save", Name: name, Err: err}
	}
	log.Printf("[sessions] saved %s", logutil.SanitizeForLog(name))
	return nil
}

// Load lists every stored profile without credential material, ordered by
// name.
func (s *Store) Load() ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.read()
	if err != nil {
		return nil, &Error{Kind: KindStorage, Op: "load", Err: err}
	}
	out := make([]Summary, 0, len(sessions))
	for name, sess := range sessions {
		out = append(out, Summary{
			Name:     name,
			Host:     sess.Config.Host,
			Port:     sess.Config.Port,
			Username: sess.Config.Username,
			AuthType: sess.Config.AuthType,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get returns the named profile including its encrypted credential.
func (s *Store) Get(name string) (SavedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.read()
	if err != nil {
		return SavedSession{}, &Error{Kind: KindStorage, Op: "get", Name: name, Err: err}
	}
	sess, ok := sessions[name]
	if !ok {
		return SavedSession{}, &Error{Kind: KindNotFound, Op: "get", Name: name}
	}
	return sess, nil
}

// Delete removes the named profile. Removing an absent name is a no-op.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.read()
	if err != nil {
		return &Error{Kind: KindStorage, Op: "delete", Name: name, Err: err}
	}
	if _, ok := sessions[name]; !ok {
		return nil
	}
	delete(sessions, name)
	if err := s.write(sessions); err != nil {
		return &Error{Kind: KindStorage, Op: "delete", Name: name, Err: err}
	}
	log.Printf("[sessions] deleted %s", logutil.SanitizeForLog(name))
	return nil
}
