package sshkeys

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gluk-w/sshdeck/internal/fsutil"
	"golang.org/x/crypto/ssh"
)

// Key types accepted by Generate.
const (
	TypeED25519 = "ed25519"
	TypeRSA     = "rsa"
)

const (
	DefaultRSABits = 4096
	MinRSABits     = 2048
)

// randReader is swapped out in tests.
var randReader = rand.Reader

// UnsupportedKeyTypeError is returned by Generate for anything other than
// ed25519 or rsa.
type UnsupportedKeyTypeError struct {
	Type string
}

func (e *UnsupportedKeyTypeError) Error() string {
	return fmt.Sprintf("unsupported key type %q (want %s or %s)", e.Type, TypeED25519, TypeRSA)
}

// PassphraseRequiredError is returned when an encrypted private key is
// parsed without a passphrase.
type PassphraseRequiredError struct {
	Path string
}

func (e *PassphraseRequiredError) Error() string {
	if e.Path == "" {
		return "private key is encrypted and no passphrase was given"
	}
	return fmt.Sprintf("private key %s is encrypted and no passphrase was given", e.Path)
}

// GenerateOptions controls Generate. Type defaults to ed25519 and Bits to
// DefaultRSABits for RSA keys.
type GenerateOptions struct {
	Type       string
	Bits       int
	Passphrase string
	Comment    string
}

// KeyPair is a freshly generated key in text form.
type KeyPair struct {
	PrivateKey  string `json:"private_key"`
	PublicKey   string `json:"public_key"`
	Fingerprint string `json:"fingerprint"`
	Algorithm   string `json:"algorithm"`
}

// Generate creates a new key pair.
func Generate(opts GenerateOptions) (*KeyPair, error) {
	keyType := strings.ToLower(strings.TrimSpace(opts.Type))
	if keyType == "" {
		keyType = TypeED25519
	}

	var priv crypto.PrivateKey
	var pub crypto.PublicKey
	switch keyType {
	case TypeED25519:
		p, k, err := ed25519.GenerateKey(randReader)
		if err != nil {
			return nil, fmt.Errorf("generate ed25519 key: %w", err)
		}
		pub, priv = p, k
	case TypeRSA:
		bits := opts.Bits
		if bits == 0 {
			bits = DefaultRSABits
		}
		if bits < MinRSABits {
			return nil, fmt.Errorf("rsa key size %d is below the minimum of %d", bits, MinRSABits)
		}
		k, err := rsa.GenerateKey(randReader, bits)
		if err != nil {
			return nil, fmt.Errorf("generate rsa key: %w", err)
		}
		pub, priv = &k.PublicKey, k
	default:
		return nil, &UnsupportedKeyTypeError{Type: opts.Type}
	}

	var block *pem.Block
	var err error
	if opts.Passphrase != "" {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, opts.Comment, []byte(opts.Passphrase))
	} else {
		block, err = ssh.MarshalPrivateKey(priv, opts.Comment)
	}
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("create ssh public key: %w", err)
	}
	pubLine := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub)))
	if c := strings.TrimSpace(opts.Comment); c != "" {
		pubLine += " " + c
	}

	return &KeyPair{
		PrivateKey:  string(pem.EncodeToMemory(block)),
		PublicKey:   pubLine,
		Fingerprint: ssh.FingerprintSHA256(sshPub),
		Algorithm:   sshPub.Type(),
	}, nil
}

// ParsePrivateKey parses PEM private key material into a signer. The
// passphrase is only used when the key is encrypted.
func ParsePrivateKey(data []byte, passphrase string) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey(data)
	if err == nil {
		return signer, nil
	}
	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	if passphrase == "" {
		return nil, &PassphraseRequiredError{}
	}
	signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("decrypt private key: %w", err)
	}
	return signer, nil
}

// LoadPrivateKeyFile reads and parses a private key from disk. A leading
// "~" expands to the home directory.
func LoadPrivateKeyFile(path, passphrase string) (ssh.Signer, error) {
	expanded, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	signer, err := ParsePrivateKey(data, passphrase)
	var needPass *PassphraseRequiredError
	if errors.As(err, &needPass) {
		needPass.Path = path
	}
	return signer, err
}
