package sshkeys

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// KeyInfo describes a stored private key without exposing it.
type KeyInfo struct {
	Name        string `json:"name"`
	Algorithm   string `json:"algorithm,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	PublicKey   string `json:"public_key,omitempty"`
	Encrypted   bool   `json:"encrypted"`
}

// Describe derives the public half of a PEM private key. Encrypted OpenSSH
// keys carry their public key in the clear, so no passphrase is needed.
func Describe(privateKeyPEM []byte) (KeyInfo, error) {
	if len(privateKeyPEM) == 0 {
		return KeyInfo{}, fmt.Errorf("describe key: private key is empty")
	}

	var info KeyInfo
	var pub ssh.PublicKey
	signer, err := ssh.ParsePrivateKey(privateKeyPEM)
	switch {
	case err == nil:
		pub = signer.PublicKey()
	default:
		var missing *ssh.PassphraseMissingError
		if !errors.As(err, &missing) {
			return KeyInfo{}, fmt.Errorf("describe key: %w", err)
		}
		info.Encrypted = true
		pub = missing.PublicKey
	}

	if pub != nil {
		info.Algorithm = pub.Type()
		info.Fingerprint = ssh.FingerprintSHA256(pub)
		info.PublicKey = string(trimNewline(ssh.MarshalAuthorizedKey(pub)))
	}
	return info, nil
}

// GetPublicKeyFingerprint calculates the SHA256 fingerprint of a public key
// in authorized_keys format.
func GetPublicKeyFingerprint(publicKey []byte) (string, error) {
	if len(publicKey) == 0 {
		return "", fmt.Errorf("get fingerprint: public key is empty")
	}
	parsed, _, _, _, err := ssh.ParseAuthorizedKey(publicKey)
	if err != nil {
		return "", fmt.Errorf("get fingerprint: parse public key: %w", err)
	}
	return ssh.FingerprintSHA256(parsed), nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
