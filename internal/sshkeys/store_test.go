package sshkeys

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/gluk-w/sshdeck/internal/vault"
)

func newTestStore(t *testing.T) (*Store, *vault.Vault) {
	t.Helper()
	dir := t.TempDir()
	backend, err := vault.NewFileBackend(filepath.Join(dir, "vault"))
	if err != nil {
		t.Fatalf("NewFileBackend() error: %v", err)
	}
	v, err := vault.Open(vault.NewFileKeyStore(filepath.Join(dir, "vault.key")), backend)
	if err != nil {
		t.Fatalf("vault.Open() error: %v", err)
	}
	return NewStore(v), v
}

func TestStoreSaveLoadDelete(t *testing.T) {
	s, v := newTestStore(t)
	kp, err := Generate(GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	if err := s.Save("work", kp.PrivateKey); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, err := s.Load("work")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got != kp.PrivateKey {
		t.Error("loaded key differs from saved key")
	}

	raw, err := v.Retrieve(EntryPrefix + "work")
	if err != nil || raw != kp.PrivateKey {
		t.Errorf("vault entry %q not found under prefix: %v", EntryPrefix+"work", err)
	}

	if err := s.Delete("work"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := s.Load("work"); !vault.IsKind(err, vault.KindNotFound) {
		t.Errorf("expected vault not-found after delete, got %v", err)
	}
	if err := s.Delete("work"); err != nil {
		t.Errorf("second Delete() should be a no-op, got %v", err)
	}
}

func TestStoreListOnlyKeys(t *testing.T) {
	s, v := newTestStore(t)
	if err := v.Store("session_password", "x"); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"b", "a", "c"} {
		if err := s.Save(name, "k"); err != nil {
			t.Fatal(err)
		}
	}
	names, err := s.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(names, want) {
		t.Errorf("List() = %v, want %v", names, want)
	}
}

func TestStoreInfo(t *testing.T) {
	s, _ := newTestStore(t)
	kp, err := Generate(GenerateOptions{Type: TypeED25519, Passphrase: "pw"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save("deploy", kp.PrivateKey); err != nil {
		t.Fatal(err)
	}
	info, err := s.Info("deploy")
	if err != nil {
		t.Fatalf("Info() error: %v", err)
	}
	if info.Name != "deploy" || info.Fingerprint != kp.Fingerprint || !info.Encrypted {
		t.Errorf("Info() = %+v", info)
	}
}

func TestStoreEmptyName(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.Save(" ", "k"); !errors.Is(err, ErrEmptyName) {
		t.Errorf("Save: expected ErrEmptyName, got %v", err)
	}
	if _, err := s.Load(""); !errors.Is(err, ErrEmptyName) {
		t.Errorf("Load: expected ErrEmptyName, got %v", err)
	}
	if err := s.Delete(""); !errors.Is(err, ErrEmptyName) {
		t.Errorf("Delete: expected ErrEmptyName, got %v", err)
	}
}
