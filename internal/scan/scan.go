// Package scan enumerates candidate files under a set of root directories.
package scan

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Find walks each root recursively and returns every regular file, in walk
// order, root by root. Directories whose base name appears in ignore are not
// descended into. Unreadable roots and entries are logged and skipped; an
// error is returned only when none of the roots could be read.
func Find(roots []string, ignore []string) ([]string, error) {
	skip := make(map[string]struct{}, len(ignore))
	for _, name := range ignore {
		skip[name] = struct{}{}
	}

	var (
		files    []string
		readable int
		lastErr  error
	)
	for _, root := range roots {
		fi, err := os.Stat(root)
		if err != nil || !fi.IsDir() {
			if err == nil {
				err = errors.New("not a directory")
			}
			slog.Warn("scan_root_skipped", "path", root, "err", err)
			lastErr = err
			continue
		}
		readable++

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				slog.Warn("scan_access_error", "path", path, "err", err)
				if d != nil && d.IsDir() && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if _, ok := skip[d.Name()]; ok && path != root {
					slog.Debug("scan_ignored_dir", "path", path)
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			files = append(files, path)
			return nil
		})
		if err != nil {
			slog.Warn("scan_walk_failed", "path", root, "err", err)
		}
	}

	if readable == 0 && len(roots) > 0 {
		return nil, lastErr
	}
	slog.Info("scan_done", "roots", len(roots), "files", len(files))
	return files, nil
}
