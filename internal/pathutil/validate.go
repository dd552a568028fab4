// Package pathutil confines user-supplied output paths to known directories.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideAllowed is returned when a path escapes every allowed directory.
var ErrOutsideAllowed = errors.New("path is outside allowed directories")

// ExportDirName is the export directory inside a data directory.
const ExportDirName = "exports"

// BackupDirName is the archive directory inside a data directory.
const BackupDirName = "backups"

// RedactPath shortens a path to .../<parent>/<base> for error messages.
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// Confine resolves path and checks that it lies inside one of dirs.
// Symlinks in existing ancestors are resolved on both sides, so a link
// pointing out of an allowed directory is rejected. It returns the resolved
// absolute path.
func Confine(path string, dirs []string) (string, error) {
	switch {
	case path == "":
		return "", errors.New("path is empty")
	case strings.ContainsRune(path, 0):
		return "", errors.New("path contains a null byte")
	case len(dirs) == 0:
		return "", errors.New("no allowed directories configured")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", RedactPath(path), err)
	}
	parent, err := resolve(filepath.Dir(abs))
	if err != nil {
		return "", err
	}
	resolved := filepath.Join(parent, filepath.Base(abs))

	for _, dir := range dirs {
		base, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		if base, err = resolve(base); err != nil {
			continue
		}
		if within(resolved, base) {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrOutsideAllowed, RedactPath(abs))
}

// resolve evaluates symlinks on the deepest existing ancestor of dir and
// re-appends the missing tail.
func resolve(dir string) (string, error) {
	if r, err := filepath.EvalSymlinks(dir); err == nil {
		return r, nil
	}
	up := filepath.Dir(dir)
	if up == dir {
		return "", fmt.Errorf("cannot resolve %s", RedactPath(dir))
	}
	r, err := resolve(up)
	if err != nil {
		return "", err
	}
	return filepath.Join(r, filepath.Base(dir)), nil
}

func within(path, base string) bool {
	return path == base || strings.HasPrefix(path, base+string(os.PathSeparator))
}

// ExportDirs lists where exports may be written: <dataDir>/exports and
// ~/.rabbitsim/exports.
func ExportDirs(dataDir string) ([]string, error) {
	return dataDirs(dataDir, ExportDirName)
}

// BackupDirs lists where archives may be written and read:
// <dataDir>/backups, ~/.rabbitsim/backups, then any extra directories.
func BackupDirs(dataDir string, extra ...string) ([]string, error) {
	dirs, err := dataDirs(dataDir, BackupDirName)
	if err != nil {
		return nil, err
	}
	for _, d := range extra {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs, nil
}

func dataDirs(dataDir, name string) ([]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return []string{
		filepath.Join(dataDir, name),
		filepath.Join(home, ".rabbitsim", name),
	}, nil
}
