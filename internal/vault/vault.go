package vault

import (
	"errors"
	"fmt"
	"log"

	"github.com/gluk-w/sshdeck/internal/codec"
	"github.com/gluk-w/sshdeck/internal/crypto"
	"github.com/gluk-w/sshdeck/internal/logutil"
)

// Backend persists named entries. Values are opaque text.
type Backend interface {
	Set(name, value string) error
	// Get returns ErrNotExist if name is absent.
	Get(name string) (string, error)
	// Delete is idempotent.
	Delete(name string) error
	// List is best-effort; see the package documentation.
	List() ([]string, error)
}

// KeyStore persists the codec-encoded vault key.
type KeyStore interface {
	// LoadKey returns ErrNotExist when no key has been provisioned yet.
	LoadKey() (string, error)
	SaveKey(encoded string) error
}

// Vault encrypts values and persists them by name. Its only shared state is
// the immutable cipher, so it is safe for concurrent use as long as the
// backend is.
type Vault struct {
	cipher  *crypto.Cipher
	backend Backend
}

// Open provisions (or loads) the vault key from keys and returns a Vault
// persisting entries to backend.
func Open(keys KeyStore, backend Backend) (*Vault, error) {
	key, err := ProvisionKey(keys)
	if err != nil {
		return nil, err
	}
	c, err := crypto.NewCipher(key)
	if err != nil {
		return nil, &Error{Kind: KindKey, Op: "open", Err: err}
	}
	return &Vault{cipher: c, backend: backend}, nil
}

// ProvisionKey loads the persisted key, generating and saving a fresh one if
// the store is empty.
func ProvisionKey(keys KeyStore) ([]byte, error) {
	encoded, err := keys.LoadKey()
	switch {
	case err == nil:
		key, err := codec.Decode(encoded)
		if err != nil {
			return nil, &Error{Kind: KindKey, Op: "load key", Err: err}
		}
		if len(key) != crypto.KeySize {
			return nil, &Error{Kind: KindKey, Op: "load key", Err: fmt.Errorf("stored key is %d bytes", len(key))}
		}
		return key, nil
	case errors.Is(err, ErrNotExist):
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, &Error{Kind: KindKey, Op: "generate key", Err: err}
		}
		if err := keys.SaveKey(codec.Encode(key)); err != nil {
			return nil, &Error{Kind: KindStorage, Op: "save key", Err: err}
		}
		log.Printf("[vault] generated new vault key")
		return key, nil
	default:
		return nil, &Error{Kind: KindStorage, Op: "load key", Err: err}
	}
}

// Encrypt returns the codec text of nonce || ciphertext || tag for plaintext.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	out, err := v.cipher.Encrypt(plaintext)
	if err != nil {
		return "", &Error{Kind: KindCrypto, Op: "encrypt", Err: err}
	}
	return out, nil
}

// Decrypt reverses Encrypt and fails closed on any integrity problem.
func (v *Vault) Decrypt(payload string) (string, error) {
	out, err := v.cipher.Decrypt(payload)
	if err != nil {
		return "", &Error{Kind: KindCrypto, Op: "decrypt", Err: err}
	}
	return out, nil
}

// Store encrypts value and persists it under name, replacing any previous
// entry.
func (v *Vault) Store(name, value string) error {
	enc, err := v.Encrypt(value)
	if err != nil {
		return err
	}
	if err := v.backend.Set(name, enc); err != nil {
		return &Error{Kind: KindStorage, Op: "store", Name: name, Err: err}
	}
	log.Printf("[vault] stored entry %s", logutil.SanitizeForLog(name))
	return nil
}

// Retrieve loads and decrypts the entry stored under name.
func (v *Vault) Retrieve(name string) (string, error) {
	enc, err := v.backend.Get(name)
	if err != nil {
		if errors.Is(err, ErrNotExist) {
			return "", &Error{Kind: KindNotFound, Op: "retrieve", Name: name}
		}
		return "", &Error{Kind: KindStorage, Op: "retrieve", Name: name, Err: err}
	}
	plain, err := v.cipher.Decrypt(enc)
	if err != nil {
		return "", &Error{Kind: KindCrypto, Op: "retrieve", Name: name, Err: err}
	}
	return plain, nil
}

// Delete removes the entry stored under name. Deleting an absent entry is
// not an error.
func (v *Vault) Delete(name string) error {
	if err := v.backend.Delete(name); err != nil {
		return &Error{Kind: KindStorage, Op: "delete", Name: name, Err: err}
	}
	log.Printf("[vault] deleted entry %s", logutil.SanitizeForLog(name))
	return nil
}

// ListEntries returns the stored entry names. The result may be incomplete
// for backends that cannot enumerate (KeyringBackend returns none).
func (v *Vault) ListEntries() ([]string, error) {
	names, err := v.backend.List()
	if err != nil {
		return nil, &Error{Kind: KindStorage, Op: "list", Err: err}
	}
	return names, nil
}
