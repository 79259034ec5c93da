// ABOUTME: Tests for the session marker stores
// ABOUTME: Checks file permissions, replacement and clearing

package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commons", "session")
	m := NewFileMarker(path)

	_, err := m.Load()
	assert.ErrorIs(t, err, ErrNoMarker)

	require.NoError(t, m.Save("first"))
	require.NoError(t, m.Save("second"))

	token, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, "second", token)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, m.Clear())
	require.NoError(t, m.Clear())
	_, err = m.Load()
	assert.ErrorIs(t, err, ErrNoMarker)
}

func TestFileMarker_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session")
	require.NoError(t, os.WriteFile(path, []byte("\n"), 0600))

	_, err := NewFileMarker(path).Load()
	assert.ErrorIs(t, err, ErrNoMarker)
}

func TestMemoryMarker(t *testing.T) {
	var m MemoryMarker

	_, err := m.Load()
	assert.ErrorIs(t, err, ErrNoMarker)

	require.NoError(t, m.Save("token"))
	token, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, "token", token)

	require.NoError(t, m.Clear())
	_, err = m.Load()
	assert.ErrorIs(t, err, ErrNoMarker)
}
