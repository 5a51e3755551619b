package vault

import (
	"errors"

	"github.com/gluk-w/sshdeck/internal/database"
	"gorm.io/gorm"
)

// dbKeySetting is the settings row holding the vault key.
const dbKeySetting = "vault_key"

// DBBackend stores entries as rows of the vault_entries table.
type DBBackend struct {
	db *gorm.DB
}

func NewDBBackend(db *gorm.DB) *DBBackend {
	return &DBBackend{db: db}
}

func (b *DBBackend) Set(name, value string) error {
	entry := database.VaultEntry{Name: name}
	return b.db.Where("name = ?", name).Assign(database.VaultEntry{Value: value}).FirstOrCreate(&entry).Error
}

func (b *DBBackend) Get(name string) (string, error) {
	var entry database.VaultEntry
	if err := b.db.Where("name = ?", name).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotExist
		}
		return "", err
	}
	return entry.Value, nil
}

func (b *DBBackend) Delete(name string) error {
	return b.db.Where("name = ?", name).Delete(&database.VaultEntry{}).Error
}

func (b *DBBackend) List() ([]string, error) {
	names := []string{}
	if err := b.db.Model(&database.VaultEntry{}).Order("name").Pluck("name", &names).Error; err != nil {
		return nil, err
	}
	return names, nil
}

// DBKeyStore keeps the vault key in the settings table.
type DBKeyStore struct {
	db *gorm.DB
}

func NewDBKeyStore(db *gorm.DB) *DBKeyStore {
	return &DBKeyStore{db: db}
}

func (s *DBKeyStore) LoadKey() (string, error) {
	v, err := database.GetSetting(s.db, dbKeySetting)
	if errors.Is(err, database.ErrNotFound) {
		return "", ErrNotExist
	}
	return v, err
}

func (s *DBKeyStore) SaveKey(encoded string) error {
	return database.SetSetting(s.db, dbKeySetting, encoded)
}
