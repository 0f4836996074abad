// Package storage provides local persistence for chopchop: a flat
// key-value store for configuration and a sqlite-backed library of saved
// execution plans.
package storage

import (
	"encoding/base32"
	"os"
	"path/filepath"
	"strings"
)

// KV is a flat key-value store with JSON values. A missing key and a
// malformed value are treated identically by callers: no saved value.
type KV interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte) error
	Delete(key string) error
}

// FileKV stores each key as a file under a directory. There is exactly one
// writer per session, so no locking is needed.
type FileKV struct {
	dir string
}

// NewFileKV creates a file-backed store rooted at dir, creating it if needed.
func NewFileKV(dir string) (*FileKV, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileKV{dir: dir}, nil
}

// DefaultDir returns the chopchop state directory under the user's home.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".chopchop"
	}
	return filepath.Join(home, ".chopchop")
}

// keyPath maps a key to a filesystem-safe path. Keys containing only
// portable characters map directly; others are base32-encoded.
func (f *FileKV) keyPath(key string) string {
	safe := true
	for _, r := range key {
		if !(r == '.' || r == '-' || r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			safe = false
			break
		}
	}
	if !safe {
		key = strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(key)))
	}
	return filepath.Join(f.dir, key+".json")
}

// Get returns the stored value for key, or false when absent or unreadable.
func (f *FileKV) Get(key string) ([]byte, bool) {
	data, err := os.ReadFile(f.keyPath(key))
	if err != nil {
		return nil, false
	}
	return data, true
}

// Set writes the value for key atomically.
func (f *FileKV) Set(key string, value []byte) error {
	path := f.keyPath(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Delete removes the value for key. Deleting a missing key is a no-op.
func (f *FileKV) Delete(key string) error {
	err := os.Remove(f.keyPath(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// MemKV is an in-memory KV for tests.
type MemKV struct {
	values map[string][]byte
}

// NewMemKV creates an empty in-memory store.
func NewMemKV() *MemKV {
	return &MemKV{values: make(map[string][]byte)}
}

func (m *MemKV) Get(key string) ([]byte, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *MemKV) Set(key string, value []byte) error {
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemKV) Delete(key string) error {
	delete(m.values, key)
	return nil
}
