// Package store persists Monte Carlo batches in SQLite.
//
// A batch row holds the configuration and the finalized report; per-run
// summaries and monthly series go in child tables that cascade on delete.
package store

import (
	"errors"
	"strconv"
	"time"

	"github.com/nvandessel/rabbitsim/internal/montecarlo"
	"github.com/nvandessel/rabbitsim/internal/stats"
)

// ErrBatchNotFound is returned when no batch matches an ID or ID prefix.
var ErrBatchNotFound = errors.New("batch not found")

// ErrAmbiguousID is returned when an ID prefix matches more than one batch.
var ErrAmbiguousID = errors.New("batch id prefix is ambiguous")

// MinPrefixLen is the shortest ID prefix accepted by GetBatch.
const MinPrefixLen = 4

// BatchRecord is a stored batch without its runs.
type BatchRecord struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Config    montecarlo.Config `json:"config"`
	Workers   int               `json:"workers"`
	Report    stats.Report      `json:"report"`
	Elapsed   time.Duration     `json:"elapsed_ns"`

	// StoredRuns is the number of run rows saved with the batch.
	StoredRuns int `json:"stored_runs"`
	// HasSeries reports whether monthly series were saved.
	HasSeries bool `json:"has_series"`
}

// ShortIDLen is the number of ID characters shown in listings.
const ShortIDLen = 8

// ShortID truncates id for display. Any ShortID is a valid GetBatch prefix.
func ShortID(id string) string {
	if len(id) <= ShortIDLen {
		return id
	}
	return id[:ShortIDLen]
}

// Metadata describes the batch as string pairs for export file headers.
func (r BatchRecord) Metadata() map[string]string {
	return map[string]string{
		"batch_id":           r.ID,
		"created_at":         r.CreatedAt.UTC().Format(time.RFC3339),
		"base_seed":          strconv.FormatUint(r.Config.BaseSeed, 10),
		"months":             strconv.Itoa(r.Config.Months),
		"initial_population": strconv.Itoa(r.Config.InitialPopulation),
		"runs":               strconv.Itoa(r.Config.Runs),
		"survival_method":    string(r.Config.Survival),
		"litter_policy":      string(r.Config.Litters),
	}
}
