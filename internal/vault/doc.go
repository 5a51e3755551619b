// Package vault protects credentials and generated key material at rest.
//
// A Vault pairs an AES-256-GCM cipher (see internal/crypto) with a named-entry
// Backend. Values are encrypted before they reach the backend, so every
// backend only ever sees codec text of nonce || ciphertext || tag.
//
// # Key provisioning
//
// The 32-byte vault key is produced once, on the first Open against an empty
// KeyStore, and persisted as codec text. Every later Open loads the same key
// unchanged. Rotation is not supported.
//
// # Backends
//
//   - KeyringBackend: the platform secret store via github.com/zalando/go-keyring.
//     The platform APIs cannot enumerate entries, so List always returns an
//     empty result. Callers must not treat ListEntries as complete for this
//     backend.
//   - FileBackend: one owner-only file per entry plus an index file of names,
//     which makes List reliable.
//   - DBBackend: rows in the sqlite vault_entries table.
//
// Each backend has a matching KeyStore for the vault key.
package vault
