package vault

import (
	"fmt"
	"path/filepath"

	"gorm.io/gorm"
)

// Backend names accepted by NewStores.
const (
	BackendKeyring = "keyring"
	BackendFile    = "file"
	BackendSQLite  = "sqlite"
)

// StoreOptions carries what each backend kind needs.
type StoreOptions struct {
	DataDir        string   // FileBackend root (entries under DataDir/vault)
	KeyringService string   // KeyringBackend service name
	DB             *gorm.DB // DBBackend handle
}

// NewStores returns the key store and entry backend for the named backend
// kind.
func NewStores(kind string, opts StoreOptions) (KeyStore, Backend, error) {
	switch kind {
	case BackendKeyring:
		return NewKeyringKeyStore(opts.KeyringService), NewKeyringBackend(opts.KeyringService), nil
	case BackendFile, "":
		dir := filepath.Join(opts.DataDir, "vault")
		b, err := NewFileBackend(dir)
		if err != nil {
			return nil, nil, err
		}
		return NewFileKeyStore(filepath.Join(opts.DataDir, "vault.key")), b, nil
	case BackendSQLite:
		if opts.DB == nil {
			return nil, nil, fmt.Errorf("vault backend %q requires a database", kind)
		}
		return NewDBKeyStore(opts.DB), NewDBBackend(opts.DB), nil
	}
	return nil, nil, fmt.Errorf("unknown vault backend %q", kind)
}
