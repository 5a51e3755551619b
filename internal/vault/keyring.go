package vault

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// DefaultKeyringService is the service name entries are filed under in the
// platform secret store.
const DefaultKeyringService = "sshdeck"

// keyringKeyUser is the account name holding the vault key. The key lives
// under its own service, Service+keyringKeySuffix, so no entry name can
// replace it.
const (
	keyringKeyUser   = "encryption-key"
	keyringKeySuffix = ".vault-key"
)

// KeyringBackend stores entries in the platform secret store.
type KeyringBackend struct {
	Service string
}

func NewKeyringBackend(service string) *KeyringBackend {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringBackend{Service: service}
}

func (b *KeyringBackend) Set(name, value string) error {
	return keyring.Set(b.Service, name, value)
}

func (b *KeyringBackend) Get(name string) (string, error) {
	v, err := keyring.Get(b.Service, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotExist
	}
	return v, err
}

func (b *KeyringBackend) Delete(name string) error {
	err := keyring.Delete(b.Service, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// List always returns no names: secret-store APIs offer no enumeration.
func (b *KeyringBackend) List() ([]string, error) {
	return []string{}, nil
}

// KeyringKeyStore keeps the vault key in the platform secret store, filed
// apart from the entries of a KeyringBackend with the same Service.
type KeyringKeyStore struct {
	Service string
}

func NewKeyringKeyStore(service string) *KeyringKeyStore {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringKeyStore{Service: service}
}

func (s *KeyringKeyStore) LoadKey() (string, error) {
	v, err := keyring.Get(s.Service+keyringKeySuffix, keyringKeyUser)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotExist
	}
	return v, err
}

func (s *KeyringKeyStore) SaveKey(encoded string) error {
	return keyring.Set(s.Service+keyringKeySuffix, keyringKeyUser, encoded)
}
