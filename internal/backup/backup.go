// Package backup archives the batch store to portable files and restores it.
//
// An archive is a JSON header line followed by a gzip-compressed JSON payload
// holding every batch with its runs and monthly series. The header carries a
// SHA-256 checksum of the compressed payload.
package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/nvandessel/rabbitsim/internal/pathutil"
	"github.com/nvandessel/rabbitsim/internal/simulation"
	"github.com/nvandessel/rabbitsim/internal/store"
)

// FilePrefix and FileExt name generated archives.
const (
	FilePrefix = "rabbitsim-backup-"
	FileExt    = ".json.gz"
)

// Archive is the decoded payload of a backup file.
type Archive struct {
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	Batches   []ArchivedBatch `json:"batches"`
}

// ArchivedBatch is one stored batch with its runs.
type ArchivedBatch struct {
	Record store.BatchRecord   `json:"record"`
	Runs   []simulation.Result `json:"runs,omitempty"`
}

// RunCount is the number of runs across all batches.
func (a *Archive) RunCount() int {
	n := 0
	for _, b := range a.Batches {
		n += len(b.Runs)
	}
	return n
}

// RestoreMode selects how Restore treats batches already in the store.
type RestoreMode string

const (
	// RestoreMerge keeps existing batches and skips archived ones with the same ID.
	RestoreMerge RestoreMode = "merge"
	// RestoreReplace deletes every stored batch before importing.
	RestoreReplace RestoreMode = "replace"
)

// ParseRestoreMode accepts "merge" (or "") and "replace".
func ParseRestoreMode(s string) (RestoreMode, error) {
	switch RestoreMode(s) {
	case "", RestoreMerge:
		return RestoreMerge, nil
	case RestoreReplace:
		return RestoreReplace, nil
	}
	return "", fmt.Errorf("unknown restore mode %q (valid: merge, replace)", s)
}

// RestoreResult summarizes a restore.
type RestoreResult struct {
	Restored []string `json:"restored"`
	Skipped  []string `json:"skipped"`
	// Deleted lists batches removed by RestoreReplace.
	Deleted []string `json:"deleted"`
}

// DefaultDir returns <root>/.rabbitsim/backups.
func DefaultDir(root string) string {
	return filepath.Join(store.DataDir(root), pathutil.BackupDirName)
}

// GeneratePath returns a timestamped archive path in dir.
func GeneratePath(dir string) string {
	return filepath.Join(dir, FilePrefix+time.Now().UTC().Format("20060102-150405.000")+FileExt)
}

// Backup writes every batch of st to path.
func Backup(ctx context.Context, st *store.Store, path string) (*Archive, error) {
	records, err := st.ListBatches(ctx, 0)
	if err != nil {
		return nil, err
	}

	a := &Archive{Version: FormatVersion, CreatedAt: time.Now().UTC(), Batches: make([]ArchivedBatch, 0, len(records))}
	for _, rec := range records {
		runs, err := st.LoadResults(ctx, rec.ID)
		if err != nil {
			return nil, fmt.Errorf("batch %s: %w", rec.ID, err)
		}
		a.Batches = append(a.Batches, ArchivedBatch{Record: rec, Runs: runs})
	}

	if err := Write(path, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Restore imports the batches of the archive at path. In merge mode batches
// already in st are skipped, so restoring twice is harmless. The archive is
// verified before anything in st changes.
func Restore(ctx context.Context, st *store.Store, path string, mode RestoreMode) (*RestoreResult, error) {
	a, err := Read(path)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{Restored: []string{}, Skipped: []string{}, Deleted: []string{}}
	if mode == RestoreReplace {
		existing, err := st.ListBatches(ctx, 0)
		if err != nil {
			return nil, err
		}
		for _, rec := range existing {
			if err := st.DeleteBatch(ctx, rec.ID); err != nil {
				return result, fmt.Errorf("batch %s: %w", rec.ID, err)
			}
			result.Deleted = append(result.Deleted, rec.ID)
		}
	}

	for _, b := range a.Batches {
		imported, err := st.ImportBatch(ctx, b.Record, b.Runs)
		if err != nil {
			return result, fmt.Errorf("batch %s: %w", b.Record.ID, err)
		}
		if imported {
			result.Restored = append(result.Restored, b.Record.ID)
		} else {
			result.Skipped = append(result.Skipped, b.Record.ID)
		}
	}
	return result, nil
}
