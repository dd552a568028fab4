package mcp

import (
	"time"

	"github.com/nvandessel/rabbitsim/internal/simulation"
	"github.com/nvandessel/rabbitsim/internal/stats"
	"github.com/nvandessel/rabbitsim/internal/store"
)

// SimulateInput defines the input for the rabbitsim_simulate tool. Zero
// values fall back to the configured defaults.
type SimulateInput struct {
	Months            int     `json:"months,omitempty" jsonschema:"description=Months to simulate per run (max 600)"`
	InitialPopulation int     `json:"initial_population,omitempty" jsonschema:"description=Rabbits at month 0; 2 starts from a founding pair (max 1000000)"`
	Runs              int     `json:"runs,omitempty" jsonschema:"description=Independent Monte Carlo runs (max 1000)"`
	Seed              *uint64 `json:"seed,omitempty" jsonschema:"description=Base seed; identical seeds reproduce identical batches"`
	SurvivalMethod    string  `json:"survival_method,omitempty" jsonschema:"description=Survival model: 'static', 'gaussian' or 'exponential'"`
	LitterPolicy      string  `json:"litter_policy,omitempty" jsonschema:"description=Yearly litter counter: 'reset' or 'carry'"`
	Save              bool    `json:"save,omitempty" jsonschema:"description=Persist the batch so it can be listed, inspected and exported later"`
}

// SimulateOutput defines the output for the rabbitsim_simulate tool.
type SimulateOutput struct {
	BatchID   string       `json:"batch_id,omitempty" jsonschema:"description=ID of the stored batch (only when save is set)"`
	Months    int          `json:"months"`
	Runs      int          `json:"runs"`
	Workers   int          `json:"workers"`
	ElapsedMs int64        `json:"elapsed_ms"`
	Report    stats.Report `json:"report" jsonschema:"description=Aggregated statistics over completed runs"`
	Message   string       `json:"message" jsonschema:"description=Human-readable summary"`
}

// BatchesInput defines the input for the rabbitsim_batches tool.
type BatchesInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"description=Maximum number of batches to return, newest first (default: 20)"`
}

// BatchesOutput defines the output for the rabbitsim_batches tool.
type BatchesOutput struct {
	Batches []BatchListItem `json:"batches"`
	Count   int             `json:"count"`
}

// BatchListItem is a one-line view of a stored batch.
type BatchListItem struct {
	ID                string    `json:"id"`
	CreatedAt         time.Time `json:"created_at"`
	Runs              int       `json:"runs"`
	Months            int       `json:"months"`
	InitialPopulation int       `json:"initial_population"`
	SurvivalMethod    string    `json:"survival_method"`
	Completed         uint64    `json:"completed"`
	Failed            uint64    `json:"failed"`
	MeanFinalAlive    float64   `json:"mean_final_alive"`
	ExtinctionRate    float64   `json:"extinction_rate"`
}

// BatchInput defines the input for the rabbitsim_batch tool.
type BatchInput struct {
	ID          string `json:"id" jsonschema:"description=Batch ID or a unique prefix of at least 4 characters,required"`
	IncludeRuns bool   `json:"include_runs,omitempty" jsonschema:"description=Include the per-run summaries (default: false)"`
}

// BatchOutput defines the output for the rabbitsim_batch tool.
type BatchOutput struct {
	Batch store.BatchRecord   `json:"batch"`
	Runs  []simulation.Result `json:"runs,omitempty"`
}

// ExportInput defines the input for the rabbitsim_export tool.
type ExportInput struct {
	ID         string `json:"id" jsonschema:"description=Batch ID or a unique prefix of at least 4 characters,required"`
	Format     string `json:"format,omitempty" jsonschema:"description=Export format: 'csv', 'series-csv' or 'arrow' (default: csv)"`
	OutputPath string `json:"output_path,omitempty" jsonschema:"description=Destination file inside an exports directory (default: .rabbitsim/exports/<id>-<format>.<ext>)"`
}

// ExportOutput defines the output for the rabbitsim_export tool.
type ExportOutput struct {
	Path      string `json:"path"`
	Format    string `json:"format"`
	Rows      int    `json:"rows"`
	SizeBytes int64  `json:"size_bytes"`
	Message   string `json:"message"`
}

// BackupInput defines the input for the rabbitsim_backup tool.
type BackupInput struct {
	OutputPath string `json:"output_path,omitempty" jsonschema:"description=Archive file inside a backups directory (default: auto-generated in .rabbitsim/backups/)"`
}

// BackupOutput defines the output for the rabbitsim_backup tool.
type BackupOutput struct {
	Path      string   `json:"path"`
	Batches   int      `json:"batches"`
	Runs      int      `json:"runs"`
	SizeBytes int64    `json:"size_bytes"`
	Pruned    []string `json:"pruned,omitempty"`
	Message   string   `json:"message"`
}

// RestoreInput defines the input for the rabbitsim_restore tool.
type RestoreInput struct {
	InputPath string `json:"input_path" jsonschema:"description=Archive file inside a backups directory,required"`
	Mode      string `json:"mode,omitempty" jsonschema:"description=Restore mode: 'merge' skips batches already stored and 'replace' clears the store first (default: merge)"`
}

// RestoreOutput defines the output for the rabbitsim_restore tool.
type RestoreOutput struct {
	Restored []string `json:"restored"`
	Skipped  []string `json:"skipped"`
	Deleted  []string `json:"deleted,omitempty"`
	Message  string   `json:"message"`
}
