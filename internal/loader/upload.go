package loader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// SaveUpload writes an uploaded file into dir and returns its full
// path. The name is reduced to its base component and must not escape
// dir. An existing file of the same name is kept; the upload gets a
// uuid-suffixed name instead.
func SaveUpload(r io.Reader, dir, name string) (string, error) {
	name = filepath.Base(filepath.Clean(name))
	if name == "." || name == ".." || name == string(filepath.Separator) || strings.ContainsAny(name, "/\\") {
		return "", fmt.Errorf("invalid file name %q", name)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create uploads directory: %w", err)
	}

	dest := filepath.Join(dir, name)
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		dest = filepath.Join(dir, fmt.Sprintf("%s_%s%s", stem, uuid.NewString(), ext))
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("failed to check destination: %w", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return "", fmt.Errorf("failed to write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to finish upload: %w", err)
	}
	return dest, nil
}
