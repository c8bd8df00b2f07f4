package loader

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
)

// ScanDir walks dir recursively and returns every file with a supported
// extension. Hidden directories are skipped.
func ScanDir(ctx context.Context, dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to access %s: %w", path, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); len(name) > 1 && name[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		if Supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
