package vault

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gluk-w/sshdeck/internal/fsutil"
)

const (
	indexFileName = "index.json"
	entrySuffix   = ".entry"
)

// FileBackend stores each entry in its own 0600 file under Dir and keeps an
// index of names so List is complete. File names are the hex encoding of the
// entry name, which keeps arbitrary names out of path syntax.
type FileBackend struct {
	Dir string
	mu  sync.Mutex
}

func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create vault directory: %w", err)
	}
	return &FileBackend{Dir: dir}, nil
}

func (b *FileBackend) entryPath(name string) string {
	return filepath.Join(b.Dir, hex.EncodeToString([]byte(name))+entrySuffix)
}

func (b *FileBackend) readIndex() ([]string, error) {
	data, err := os.ReadFile(filepath.Join(b.Dir, indexFileName))
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}
	return names, nil
}

func (b *FileBackend) writeIndex(names []string) error {
	sort.Strings(names)
	data, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	return fsutil.WriteFileAtomic(filepath.Join(b.Dir, indexFileName), data, 0600)
}

func (b *FileBackend) Set(name, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := fsutil.WriteFileAtomic(b.entryPath(name), []byte(value), 0600); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	names, err := b.readIndex()
	if err != nil {
		return err
	}
	for _, n := range names {
		if n == name {
			return nil
		}
	}
	return b.writeIndex(append(names, name))
}

func (b *FileBackend) Get(name string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.entryPath(name))
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotExist
	}
	if err != nil {
		return "", fmt.Errorf("read entry: %w", err)
	}
	return string(data), nil
}

func (b *FileBackend) Delete(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(b.entryPath(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove entry: %w", err)
	}
	names, err := b.readIndex()
	if err != nil {
		return err
	}
	kept := names[:0]
	for _, n := range names {
		if n != name {
			kept = append(kept, n)
		}
	}
	if len(kept) == len(names) {
		return nil
	}
	return b.writeIndex(kept)
}

func (b *FileBackend) List() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readIndex()
}

// FileKeyStore keeps the vault key in a single 0600 file.
type FileKeyStore struct {
	Path string
}

func NewFileKeyStore(path string) *FileKeyStore {
	return &FileKeyStore{Path: path}
}

func (s *FileKeyStore) LoadKey() (string, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotExist
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *FileKeyStore) SaveKey(encoded string) error {
	return fsutil.WriteFileAtomic(s.Path, []byte(encoded), 0600)
}
