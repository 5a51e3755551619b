package database

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenCreatesRestrictedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sshdeck.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer Close(db)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat db: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("db permissions = %o, want 0600", perm)
	}
	for _, table := range []interface{}{&Setting{}, &VaultEntry{}, &AuditLog{}} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("table for %T not created", table)
		}
	}
}

func TestSettingsHelpers(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer Close(db)

	if _, err := GetSetting(db, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetSetting(missing) error = %v, want ErrNotFound", err)
	}
	if err := SetSetting(db, "k", "v1"); err != nil {
		t.Fatalf("SetSetting() error: %v", err)
	}
	if err := SetSetting(db, "k", "v2"); err != nil {
		t.Fatalf("SetSetting() overwrite error: %v", err)
	}
	got, err := GetSetting(db, "k")
	if err != nil {
		t.Fatalf("GetSetting() error: %v", err)
	}
	if got != "v2" {
		t.Errorf("GetSetting() = %q, want v2", got)
	}
	if err := DeleteSetting(db, "k"); err != nil {
		t.Fatalf("DeleteSetting() error: %v", err)
	}
	if _, err := GetSetting(db, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSetting after delete error = %v, want ErrNotFound", err)
	}
}
