// Package crypto implements the authenticated-encryption engine used by the
// vault: AES-256-GCM with a fresh random 96-bit nonce per message. Payloads
// are codec text of nonce || ciphertext || tag.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/gluk-w/sshdeck/internal/codec"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12
)

// Kind classifies crypto failures.
type Kind int

const (
	KindDecode    Kind = iota + 1 // payload is not valid codec text
	KindMalformed                 // decoded payload shorter than a nonce
	KindAuth                      // tag mismatch or tampered payload
	KindKey                       // key has the wrong length
	KindRandom                    // secure random source failed
)

func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindMalformed:
		return "malformed payload"
	case KindAuth:
		return "authentication failed"
	case KindKey:
		return "invalid key"
	case KindRandom:
		return "random source"
	}
	return "unknown"
}

// Error is returned by every operation in this package.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a crypto *Error of kind k.
func IsKind(err error, k Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == k
}

// randReader is swapped in tests to simulate a failing entropy source.
var randReader io.Reader = rand.Reader

// GenerateKey returns KeySize bytes from the secure random source.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(randReader, key); err != nil {
		return nil, &Error{Kind: KindRandom, Op: "generate key", Err: err}
	}
	return key, nil
}

// Cipher encrypts and decrypts under one immutable key. It holds no other
// state and is safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a KeySize-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, &Error{Kind: KindKey, Op: "new cipher", Err: fmt.Errorf("got %d bytes, want %d", len(key), KeySize)}
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, &Error{Kind: KindKey, Op: "new cipher", Err: err}
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, &Error{Kind: KindKey, Op: "new cipher", Err: err}
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under a nonce drawn from the secure random source
// and returns the codec text of nonce || ciphertext || tag.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, NonceSize, NonceSize+len(plaintext)+c.aead.Overhead())
	if _, err := io.ReadFull(randReader, nonce); err != nil {
		return "", &Error{Kind: KindRandom, Op: "encrypt", Err: err}
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return codec.Encode(sealed), nil
}

// Decrypt reverses Encrypt. It never returns plaintext unless the tag
// verifies.
func (c *Cipher) Decrypt(payload string) (string, error) {
	raw, err := codec.Decode(payload)
	if err != nil {
		return "", &Error{Kind: KindDecode, Op: "decrypt", Err: err}
	}
	if len(raw) < NonceSize {
		return "", &Error{Kind: KindMalformed, Op: "decrypt", Err: fmt.Errorf("payload is %d bytes", len(raw))}
	}
	nonce, sealed := raw[:NonceSize], raw[NonceSize:]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", &Error{Kind: KindAuth, Op: "decrypt", Err: err}
	}
	return string(plain), nil
}
