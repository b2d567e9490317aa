package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestFindRecursesAndIgnores(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.zip"))
	touch(t, filepath.Join(root, "USA", "b.zip"))
	touch(t, filepath.Join(root, "USA", "deep", "c.zip"))
	touch(t, filepath.Join(root, "[ROM Hacks]", "hack.zip"))
	touch(t, filepath.Join(root, "USA", "[Translations]", "tr.zip"))

	files, err := Find([]string{root}, []string{"[ROM Hacks]", "[Translations]"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "a.zip"),
		filepath.Join(root, "USA", "b.zip"),
		filepath.Join(root, "USA", "deep", "c.zip"),
	}, files)
}

func TestFindMultipleRoots(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	touch(t, filepath.Join(a, "one.zip"))
	touch(t, filepath.Join(b, "two.zip"))

	files, err := Find([]string{a, b, filepath.Join(a, "missing")}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(a, "one.zip"), filepath.Join(b, "two.zip")}, files)
}

func TestFindNoReadableRoot(t *testing.T) {
	dir := t.TempDir()
	_, err := Find([]string{filepath.Join(dir, "nope")}, nil)
	assert.Error(t, err)

	file := filepath.Join(dir, "file.zip")
	touch(t, file)
	_, err = Find([]string{file}, nil)
	assert.Error(t, err)
}

func TestFindEmpty(t *testing.T) {
	files, err := Find([]string{t.TempDir()}, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}
