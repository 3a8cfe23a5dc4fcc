package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileBackend persists entries as individual files under a base
// directory. Keys are encoded so that arbitrary key characters map to
// safe file names. Writes go through a temp file and rename so a crash
// never leaves a half-written entry behind.
type FileBackend struct {
	mu   sync.RWMutex
	path string
}

var _ Backend = (*FileBackend)(nil)

// NewFileBackend creates a file backend rooted at path
func NewFileBackend(path string) (*FileBackend, error) {
	if path == "" {
		return nil, errors.New("file backend requires a path")
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FileBackend{path: path}, nil
}

func (f *FileBackend) encode(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key)) + ".entry"
}

func (f *FileBackend) decode(name string) (string, bool) {
	name = strings.TrimSuffix(name, ".entry")
	raw, err := base64.RawURLEncoding.DecodeString(name)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func (f *FileBackend) Put(ctx context.Context, entry *Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	target := filepath.Join(f.path, f.encode(entry.Key))
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, entry.Value, 0o600); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to commit entry: %w", err)
	}
	return nil
}

func (f *FileBackend) Get(ctx context.Context, key string) (*Entry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	value, err := os.ReadFile(filepath.Join(f.path, f.encode(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read entry: %w", err)
	}
	return &Entry{Key: key, Value: value}, nil
}

func (f *FileBackend) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(filepath.Join(f.path, f.encode(key)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

func (f *FileBackend) List(ctx context.Context, prefix string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names, err := os.ReadDir(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to list storage directory: %w", err)
	}

	var keys []string
	for _, name := range names {
		if name.IsDir() || !strings.HasSuffix(name.Name(), ".entry") {
			continue
		}
		key, ok := f.decode(name.Name())
		if !ok {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (f *FileBackend) Close() error {
	return nil
}
