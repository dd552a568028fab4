package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DataDirName is the per-project data directory.
const DataDirName = ".rabbitsim"

// DBFileName is the database file inside the data directory.
const DBFileName = "rabbitsim.db"

// DataDir returns <root>/.rabbitsim.
func DataDir(root string) string {
	return filepath.Join(root, DataDirName)
}

// DefaultDBPath returns <root>/.rabbitsim/rabbitsim.db.
func DefaultDBPath(root string) string {
	return filepath.Join(DataDir(root), DBFileName)
}

// EnsureDir creates the parent directory of path.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}
