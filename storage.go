package tangguh

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

// Storage is the key/value persistence primitive backing a credential scope.
// Implementations must be safe for concurrent use.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryStorage is a process-lifetime Storage, used as the session scope.
type MemoryStorage struct {
	mu    sync.RWMutex
	store map[string]string
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{store: make(map[string]string)}
}

// Get retrieves a value.
func (s *MemoryStorage) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.store[key]
	return v, ok
}

// Set stores a value.
func (s *MemoryStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[key] = value
	return nil
}

// Delete removes a value.
func (s *MemoryStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, key)
	return nil
}

// FileStorage persists key/value pairs to a TOML file, used as the durable
// credential scope. A missing or malformed file degrades to an empty store
// rather than failing.
type FileStorage struct {
	mu    sync.Mutex
	path  string
	store map[string]string
}

// NewFileStorage loads (or initializes) a file-backed storage at path.
func NewFileStorage(path string) (*FileStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("tangguh: storage path is empty")
	}
	fs := &FileStorage{path: path, store: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fs, nil
		}
		return fs, nil // graceful degradation
	}
	if err := toml.Unmarshal(data, &fs.store); err != nil {
		fs.store = make(map[string]string)
	}
	return fs, nil
}

// Get retrieves a value.
func (s *FileStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.store[key]
	return v, ok
}

// Set stores a value and persists the file.
func (s *FileStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[key] = value
	return s.flush()
}

// Delete removes a value and persists the file.
func (s *FileStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.store[key]; !ok {
		return nil
	}
	delete(s.store, key)
	return s.flush()
}

func (s *FileStorage) flush() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	data, err := toml.Marshal(s.store)
	if err != nil {
		return fmt.Errorf("marshal storage: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write storage: %w", err)
	}
	return nil
}
