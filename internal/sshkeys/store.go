package sshkeys

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/gluk-w/sshdeck/internal/logutil"
)

// EntryPrefix namespaces key entries in the vault.
const EntryPrefix = "ssh_key_"

// ErrEmptyName is returned for an empty key name.
var ErrEmptyName = errors.New("key name is empty")

// SecretStore is the subset of the vault used here.
type SecretStore interface {
	Store(name, value string) error
	Retrieve(name string) (string, error)
	Delete(name string) error
	ListEntries() ([]string, error)
}

// Store keeps named private keys encrypted in a SecretStore.
type Store struct {
	secrets SecretStore
}

func NewStore(secrets SecretStore) *Store {
	return &Store{secrets: secrets}
}

func entryName(name string) string { return EntryPrefix + name }

// Save stores private key text under name, replacing any previous key.
func (s *Store) Save(name, privateKey string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if err := s.secrets.Store(entryName(name), privateKey); err != nil {
		return fmt.Errorf("save key %q: %w", name, err)
	}
	log.Printf("[keys] saved key %s", logutil.SanitizeForLog(name))
	return nil
}

// Load returns the private key text stored under name.
func (s *Store) Load(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", ErrEmptyName
	}
	key, err := s.secrets.Retrieve(entryName(name))
	if err != nil {
		return "", fmt.Errorf("load key %q: %w", name, err)
	}
	return key, nil
}

// Delete removes the named key. Removing an absent key is not an error.
func (s *Store) Delete(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	if err := s.secrets.Delete(entryName(name)); err != nil {
		return fmt.Errorf("delete key %q: %w", name, err)
	}
	log.Printf("[keys] deleted key %s", logutil.SanitizeForLog(name))
	return nil
}

// List returns the stored key names in order. Backends that cannot
// enumerate entries yield an empty list.
func (s *Store) List() ([]string, error) {
	entries, err := s.secrets.ListEntries()
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	var names []string
	for _, e := range entries {
		if name, ok := strings.CutPrefix(e, EntryPrefix); ok && name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Info loads the named key and describes its public half.
func (s *Store) Info(name string) (KeyInfo, error) {
	key, err := s.Load(name)
	if err != nil {
		return KeyInfo{}, err
	}
	info, err := Describe([]byte(key))
	if err != nil {
		return KeyInfo{Name: name}, err
	}
	info.Name = name
	return info, nil
}
