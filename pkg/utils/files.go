package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MakeDir creates a directory with all parent directories
func MakeDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// MoveFile moves or renames a file
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move file from %s to %s: %w", src, dst, err)
	}
	return nil
}

// WriteTempFile writes data into dir under a unique name derived from name
// and returns the path. The caller removes the file.
func WriteTempFile(dir, name string, data []byte) (string, error) {
	if err := MakeDir(dir); err != nil {
		return "", err
	}
	path := filepath.Join(dir, GenerateUUID()+"_"+SanitizeFilename(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing temp file: %w", err)
	}
	return path, nil
}

// SanitizeFilename strips path separators so an uploaded name cannot escape
// the directory it is written to.
func SanitizeFilename(name string) string {
	name = strings.NewReplacer("/", "_", "\\", "_").Replace(name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "upload"
	}
	return name
}
