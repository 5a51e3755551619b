// Package sshkeys generates SSH key pairs, parses private key material with
// an optional passphrase and keeps named private keys in the vault.
//
// [Generate] produces an ed25519 or RSA key pair. The private key is
// encoded in the OpenSSH PEM format, optionally protected by a passphrase;
// the public key is a single authorized_keys line with the comment
// appended. The SHA256 fingerprint is returned alongside.
//
// [ParsePrivateKey] is used by the connection registry for key
// authentication. An encrypted key read without a passphrase yields a
// [*PassphraseRequiredError] so callers can prompt and retry.
//
// [Store] namespaces key entries under [EntryPrefix] in a vault so they can
// share a backend with other secrets.
package sshkeys
