package watcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTakeSnapshot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "f.txt"), []byte("x"), 0o644))

	snap, err := TakeSnapshot(root)
	require.NoError(t, err)

	// Root, sub and the file.
	assert.Equal(t, 3, snap.Len())

	_, ok := snap.InodeOf(filepath.Join(root, "sub", "f.txt"))
	assert.True(t, ok)

	_, ok = snap.InodeOf(filepath.Join(root, "missing"))
	assert.False(t, ok)
}

func TestTakeSnapshot_MissingRoot(t *testing.T) {
	_, err := TakeSnapshot(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
