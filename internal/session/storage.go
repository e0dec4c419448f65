package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrCorruptStorage is returned by Get when the storage file is not a JSON
// object. Set and Delete overwrite such a file.
var ErrCorruptStorage = errors.New("corrupt storage file")

// Storage is a small string key/value store that survives between runs
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// FileStorage keeps all keys in one JSON object on disk. Every write
// replaces the file atomically.
type FileStorage struct {
	path string
	mu   sync.Mutex
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (fs *FileStorage) Path() string { return fs.path }

func (fs *FileStorage) Get(key string) (string, bool, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	values, err := fs.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

func (fs *FileStorage) Set(key, value string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	values, err := fs.read()
	if err != nil && !errors.Is(err, ErrCorruptStorage) {
		return err
	}
	values[key] = value
	return fs.write(values)
}

func (fs *FileStorage) Delete(key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	values, err := fs.read()
	switch {
	case errors.Is(err, ErrCorruptStorage):
		return fs.write(values)
	case err != nil:
		return err
	}
	if _, ok := values[key]; !ok {
		return nil
	}
	delete(values, key)
	return fs.write(values)
}

// read loads the file. A missing file is empty. An undecodable one yields an
// empty map together with ErrCorruptStorage.
func (fs *FileStorage) read() (map[string]string, error) {
	values := map[string]string{}
	data, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", fs.path, err)
	}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return map[string]string{}, fmt.Errorf("%w %s: %v", ErrCorruptStorage, fs.path, err)
	}
	return values, nil
}

func (fs *FileStorage) write(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding storage: %w", err)
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating storage directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "storage-*.json")
	if err != nil {
		return fmt.Errorf("creating temp storage file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing storage: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp storage file: %w", err)
	}
	if err := os.Rename(tmpPath, fs.path); err != nil {
		return fmt.Errorf("renaming storage file to %s: %w", fs.path, err)
	}

	success = true
	return nil
}

// MemoryStorage is a process-local Storage
type MemoryStorage struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string]string)}
}

func (m *MemoryStorage) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *MemoryStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}
