// Package archive reads the single cartridge image stored in a compressed
// container. Only one content entry per container is expected; anything after
// the first entry is ignored.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

var (
	// ErrUnsupportedFormat marks a candidate that is not a supported container.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrCorruptArchive marks a container that could not be opened or read.
	ErrCorruptArchive = errors.New("corrupt archive")
)

// Extensions lists the supported container extensions, upper case.
var Extensions = [...]string{".ZIP"}

// maxEntrySize caps the declared size of the content entry. Cartridge images
// are a few MiB at most; anything bigger is a broken or hostile header.
const maxEntrySize = 256 << 20

// Supported reports whether path has a supported container extension.
func Supported(path string) bool {
	ext := strings.ToUpper(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Entry is the content extracted from a container.
type Entry struct {
	Name string
	Data []byte
}

// Extract opens the container at path and returns its first entry in full.
func Extract(path string) (Entry, error) {
	if !Supported(path) {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: open %s: %v", ErrCorruptArchive, path, err)
	}
	defer zr.Close()

	if len(zr.File) == 0 {
		return Entry{}, fmt.Errorf("%w: %s has no entries", ErrCorruptArchive, path)
	}
	f := zr.File[0]
	if f.UncompressedSize64 > maxEntrySize {
		return Entry{}, fmt.Errorf("%w: %s entry %q declares %d bytes", ErrCorruptArchive, path, f.Name, f.UncompressedSize64)
	}

	rc, err := f.Open()
	if err != nil {
		return Entry{}, fmt.Errorf("%w: open entry %q in %s: %v", ErrCorruptArchive, f.Name, path, err)
	}
	defer rc.Close()

	buf := bytes.NewBuffer(make([]byte, 0, int(f.UncompressedSize64)))
	// the zip reader verifies the stored CRC once the entry is drained
	if _, err := io.Copy(buf, io.LimitReader(rc, maxEntrySize+1)); err != nil {
		return Entry{}, fmt.Errorf("%w: read entry %q in %s: %v", ErrCorruptArchive, f.Name, path, err)
	}
	if uint64(buf.Len()) != f.UncompressedSize64 {
		return Entry{}, fmt.Errorf("%w: %s entry %q is %d bytes, header declares %d", ErrCorruptArchive, path, f.Name, buf.Len(), f.UncompressedSize64)
	}
	return Entry{Name: f.Name, Data: buf.Bytes()}, nil
}
