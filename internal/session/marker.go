// ABOUTME: Persistence for the last known identity of a CLI session
// ABOUTME: FileMarker keeps the signed token under the config dir; MemoryMarker is for tests

package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNoMarker is returned by Load when no identity has been persisted.
var ErrNoMarker = errors.New("no session marker")

// MarkerStore persists the session token between process runs.
type MarkerStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// FileMarker stores the token in a single file readable only by its owner.
type FileMarker struct {
	path string
}

// NewFileMarker creates a FileMarker at path. The parent directory is
// created on first Save.
func NewFileMarker(path string) *FileMarker {
	return &FileMarker{path: path}
}

// Path returns the marker file location.
func (m *FileMarker) Path() string {
	return m.path
}

// Load reads the token. Returns ErrNoMarker if the file is missing or empty.
func (m *FileMarker) Load() (string, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoMarker
		}
		return "", fmt.Errorf("reading session marker: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNoMarker
	}
	return token, nil
}

// Save writes the token through a temp file and rename so a concurrent
// reader never sees a partial write.
func (m *FileMarker) Save(token string) error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("creating session marker: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("setting session marker mode: %w", err)
	}
	if _, err := tmp.WriteString(token); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing session marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing session marker: %w", err)
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		return fmt.Errorf("replacing session marker: %w", err)
	}
	return nil
}

// Clear removes the marker. A missing marker is not an error.
func (m *FileMarker) Clear() error {
	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session marker: %w", err)
	}
	return nil
}

// MemoryMarker keeps the token in memory.
type MemoryMarker struct {
	mu    sync.Mutex
	token string
}

func (m *MemoryMarker) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return "", ErrNoMarker
	}
	return m.token, nil
}

func (m *MemoryMarker) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryMarker) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

var (
	_ MarkerStore = (*FileMarker)(nil)
	_ MarkerStore = (*MemoryMarker)(nil)
)
