package catalog

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

// Load opens the catalog at path and parses it. DAT files are often shipped
// compressed, so a .zip (first .dat/.xml entry, else the first entry) or a .zst
// wrapper is unpacked transparently.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnreadable, err)
	}
	defer f.Close()

	var r io.Reader = f
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCatalogUnreadable, path, err)
		}
		defer zr.Close()
		r = zr
	case ".zip":
		rc, err := openZipped(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCatalogUnreadable, path, err)
		}
		defer rc.Close()
		r = rc
	}

	cat, err := Parse(bufio.NewReader(r))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	slog.Info("catalog_loaded", "path", path, "name", cat.Name, "entries", len(cat.Entries), "malformed", len(cat.Malformed))
	return cat, nil
}

func openZipped(f *os.File) (io.ReadCloser, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(f, fi.Size())
	if err != nil {
		return nil, err
	}
	if len(zr.File) == 0 {
		return nil, fmt.Errorf("zip has no entries")
	}
	pick := zr.File[0]
	for _, zf := range zr.File {
		switch strings.ToLower(filepath.Ext(zf.Name)) {
		case ".dat", ".xml":
			return zf.Open()
		}
	}
	return pick.Open()
}
