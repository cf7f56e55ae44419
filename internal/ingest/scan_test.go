package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "plant.pdf"))
	touch(t, filepath.Join(root, "area", "detail.PNG"))
	touch(t, filepath.Join(root, "area", "photo.jpeg"))
	touch(t, filepath.Join(root, "readme.txt"))
	touch(t, filepath.Join(root, ".hidden", "secret.pdf"))
	touch(t, filepath.Join(root, ".swap.pdf"))

	paths, stats, err := ScanDirectory(root)
	require.NoError(t, err)

	assert.Len(t, paths, 3)
	assert.Contains(t, paths, filepath.Join(root, "plant.pdf"))
	assert.Contains(t, paths, filepath.Join(root, "area", "detail.PNG"))
	assert.Contains(t, paths, filepath.Join(root, "area", "photo.jpeg"))
	assert.Equal(t, uint32(3), stats.Matched)
}

func TestScanDirectoryEmptyRoot(t *testing.T) {
	_, _, err := ScanDirectory("  ")
	assert.Error(t, err)
}

func TestScanDirectoryMissingRoot(t *testing.T) {
	paths, stats, _ := ScanDirectory(filepath.Join(t.TempDir(), "nope"))
	assert.Empty(t, paths)
	assert.Equal(t, uint32(1), stats.Failed)
}
