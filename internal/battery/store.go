package battery

import (
	"fmt"
	"os"
	"sync"

	"github.com/muurk/origctl/internal/config"
	"gopkg.in/yaml.v3"
)

// StoreFile is the battery cache file name inside the config directory
const StoreFile = "battery.yaml"

// Store persists the last known battery readings
type Store interface {
	// Load returns the persisted readings. Components never saved are not Present.
	Load() (Status, error)
	// Save persists every Present reading of s.
	Save(s Status) error
}

// fileRecord is the on-disk layout of battery.yaml
type fileRecord struct {
	Version int      `yaml:"version"`
	Left    *Reading `yaml:"left,omitempty"`
	Right   *Reading `yaml:"right,omitempty"`
	Case    *Reading `yaml:"case,omitempty"`
}

// FileStore keeps the cache in a YAML file
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultFileStore returns a store in the origctl config directory
func DefaultFileStore() (*FileStore, error) {
	path, err := config.PathInConfigDir(StoreFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve battery cache path: %w", err)
	}
	return NewFileStore(path), nil
}

// Path returns the backing file path
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the cache file. A missing file is an empty cache.
func (f *FileStore) Load() (Status, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("failed to read battery cache: %w", err)
	}

	var rec fileRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return Status{}, fmt.Errorf("failed to parse battery cache: %w", err)
	}

	return Status{
		Left:  fromRecord(rec.Left),
		Right: fromRecord(rec.Right),
		Case:  fromRecord(rec.Case),
	}, nil
}

// Save writes the present readings atomically
func (f *FileStore) Save(s Status) error {
	rec := fileRecord{
		Version: 1,
		Left:    toRecord(s.Left),
		Right:   toRecord(s.Right),
		Case:    toRecord(s.Case),
	}

	data, err := yaml.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("failed to marshal battery cache: %w", err)
	}
	return config.WriteFileAtomic(f.path, data, 0600)
}

// Remove deletes the cache file
func (f *FileStore) Remove() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove battery cache: %w", err)
	}
	return nil
}

func fromRecord(r *Reading) Reading {
	if r == nil || r.Level <= 0 {
		return Reading{}
	}
	return Reading{Level: r.Level, Charging: r.Charging, Present: true}
}

func toRecord(r Reading) *Reading {
	if !r.Present {
		return nil
	}
	return &Reading{Level: r.Level, Charging: r.Charging}
}

// MemoryStore keeps the cache in memory
type MemoryStore struct {
	mu     sync.Mutex
	status Status
	saves  int
	err    error
}

// NewMemoryStore returns a store seeded with s
func NewMemoryStore(s Status) *MemoryStore {
	return &MemoryStore{status: s}
}

// Load returns the stored status
func (m *MemoryStore) Load() (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, nil
}

// Save replaces the stored status, or returns the error set by FailWith
func (m *MemoryStore) Save(s Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.status = s
	m.saves++
	return nil
}

// Saves returns the number of successful Save calls
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// FailWith makes subsequent saves return err (nil restores normal behaviour)
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
