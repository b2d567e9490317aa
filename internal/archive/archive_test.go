package archive

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type zipEntry struct {
	name string
	data []byte
}

func writeZip(t *testing.T, path string, entries ...zipEntry) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	zw := zip.NewWriter(f)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("Game (USA).zip"))
	assert.True(t, Supported("/roms/Game (USA).ZIP"))
	assert.False(t, Supported("Game (USA).nes"))
	assert.False(t, Supported("Game (USA).7z"))
	assert.False(t, Supported("zip"))
}

func TestExtractFirstEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.zip")
	writeZip(t, path,
		zipEntry{"game.nes", []byte("first entry content")},
		zipEntry{"readme.txt", []byte("ignored")},
	)

	e, err := Extract(path)
	require.NoError(t, err)
	assert.Equal(t, "game.nes", e.Name)
	assert.Equal(t, []byte("first entry content"), e.Data)
}

func TestExtractUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.nes")
	require.NoError(t, os.WriteFile(path, []byte("raw"), 0o644))

	_, err := Extract(path)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat), "got %v", err)
}

func TestExtractCorrupt(t *testing.T) {
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.zip")
	require.NoError(t, os.WriteFile(garbage, []byte("this is not a zip file at all"), 0o644))

	empty := filepath.Join(dir, "empty.zip")
	writeZip(t, empty)

	good := filepath.Join(dir, "good.zip")
	writeZip(t, good, zipEntry{"game.nes", make([]byte, 4096)})
	raw, err := os.ReadFile(good)
	require.NoError(t, err)
	truncated := filepath.Join(dir, "truncated.zip")
	require.NoError(t, os.WriteFile(truncated, raw[:len(raw)/2], 0o644))

	missing := filepath.Join(dir, "missing.zip")

	for _, path := range []string{garbage, empty, truncated, missing} {
		_, err := Extract(path)
		assert.True(t, errors.Is(err, ErrCorruptArchive), "%s: got %v", filepath.Base(path), err)
	}
}
