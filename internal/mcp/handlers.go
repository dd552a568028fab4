package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/rabbitsim/internal/backup"
	"github.com/nvandessel/rabbitsim/internal/constants"
	"github.com/nvandessel/rabbitsim/internal/export"
	"github.com/nvandessel/rabbitsim/internal/montecarlo"
	"github.com/nvandessel/rabbitsim/internal/pathutil"
	"github.com/nvandessel/rabbitsim/internal/ratelimit"
	"github.com/nvandessel/rabbitsim/internal/simulation"
	"github.com/nvandessel/rabbitsim/internal/store"
)

// defaultListLimit is the number of batches rabbitsim_batches returns by default.
const defaultListLimit = 20

// registerTools registers all rabbitsim MCP tools with the server.
func (s *Server) registerTools() {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "rabbitsim_simulate",
		Description: "Run a Monte Carlo batch of rabbit population simulations and return aggregated statistics",
	}, s.handleSimulate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "rabbitsim_batches",
		Description: "List stored simulation batches, newest first",
	}, s.handleBatches)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "rabbitsim_batch",
		Description: "Show one stored batch: configuration, report and optionally per-run summaries",
	}, s.handleBatch)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "rabbitsim_export",
		Description: "Export a stored batch's runs to CSV or Arrow inside the exports directory",
	}, s.handleExport)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "rabbitsim_backup",
		Description: "Archive every stored batch to a checksummed, compressed backup file",
	}, s.handleBackup)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        "rabbitsim_restore",
		Description: "Restore stored batches from a backup file (merge or replace)",
	}, s.handleRestore)
}

// batchConfig merges tool arguments over the configured defaults and checks
// the tool limits.
func (s *Server) batchConfig(args SimulateInput) (montecarlo.Config, error) {
	cfg := s.settings.Batch()
	if args.Months != 0 {
		cfg.Months = args.Months
	}
	if args.InitialPopulation != 0 {
		cfg.InitialPopulation = args.InitialPopulation
	}
	if args.Runs != 0 {
		cfg.Runs = args.Runs
	}
	if args.Seed != nil {
		cfg.BaseSeed = *args.Seed
	}
	if args.SurvivalMethod != "" {
		cfg.Survival = constants.SurvivalMethod(args.SurvivalMethod)
	}
	if args.LitterPolicy != "" {
		cfg.Litters = constants.LitterPolicy(args.LitterPolicy)
	}

	switch {
	case cfg.Months > constants.MaxToolMonths:
		return cfg, fmt.Errorf("months must be <= %d, got %d", constants.MaxToolMonths, cfg.Months)
	case cfg.Runs > constants.MaxToolRuns:
		return cfg, fmt.Errorf("runs must be <= %d, got %d", constants.MaxToolRuns, cfg.Runs)
	case cfg.InitialPopulation > constants.MaxToolPopulation:
		return cfg, fmt.Errorf("initial_population must be <= %d, got %d", constants.MaxToolPopulation, cfg.InitialPopulation)
	}
	if cfg.Pool.MaxCapacity <= 0 || cfg.Pool.MaxCapacity > constants.MaxToolCapacity {
		cfg.Pool.MaxCapacity = constants.MaxToolCapacity
	}
	cfg.KeepResults = true

	return cfg, cfg.Validate()
}

// handleSimulate implements the rabbitsim_simulate tool.
func (s *Server) handleSimulate(ctx context.Context, req *sdk.CallToolRequest, args SimulateInput) (_ *sdk.CallToolResult, _ SimulateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("rabbitsim_simulate", start, retErr, sanitizeToolParams(map[string]any{
			"months": args.Months, "initial_population": args.InitialPopulation, "runs": args.Runs,
			"seed": args.Seed, "survival_method": args.SurvivalMethod,
			"litter_policy": args.LitterPolicy, "save": args.Save,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "rabbitsim_simulate"); err != nil {
		return nil, SimulateOutput{}, err
	}

	cfg, err := s.batchConfig(args)
	if err != nil {
		return nil, SimulateOutput{}, err
	}

	driver, err := montecarlo.New(cfg, montecarlo.WithLogger(s.logger))
	if err != nil {
		return nil, SimulateOutput{}, err
	}
	batch, err := driver.Run(ctx)
	if err != nil {
		return nil, SimulateOutput{}, fmt.Errorf("simulation failed: %w", err)
	}

	out := SimulateOutput{
		Months:    cfg.Months,
		Runs:      cfg.Runs,
		Workers:   batch.Workers,
		ElapsedMs: batch.Elapsed.Milliseconds(),
		Report:    batch.Report,
	}
	out.Message = fmt.Sprintf("%s runs of %d months: mean final population %s, %.1f%% extinct",
		humanize.Comma(int64(cfg.Runs)), cfg.Months,
		humanize.CommafWithDigits(batch.Report.FinalAlive.Mean, 1), batch.Report.ExtinctionRate)
	if batch.Report.Failed > 0 {
		out.Message += fmt.Sprintf(", %d failed", batch.Report.Failed)
	}

	if args.Save {
		id, err := s.store.SaveBatch(ctx, batch)
		if err != nil {
			return nil, SimulateOutput{}, fmt.Errorf("failed to save batch: %w", err)
		}
		out.BatchID = id
		out.Message += fmt.Sprintf(" (saved as %s)", id)
	}

	return nil, out, nil
}

// handleBatches implements the rabbitsim_batches tool.
func (s *Server) handleBatches(ctx context.Context, req *sdk.CallToolRequest, args BatchesInput) (_ *sdk.CallToolResult, _ BatchesOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("rabbitsim_batches", start, retErr, sanitizeToolParams(map[string]any{
			"limit": args.Limit,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "rabbitsim_batches"); err != nil {
		return nil, BatchesOutput{}, err
	}

	limit := args.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	records, err := s.store.ListBatches(ctx, limit)
	if err != nil {
		return nil, BatchesOutput{}, err
	}

	items := make([]BatchListItem, 0, len(records))
	for _, rec := range records {
		items = append(items, BatchListItem{
			ID:                rec.ID,
			CreatedAt:         rec.CreatedAt,
			Runs:              rec.Config.Runs,
			Months:            rec.Config.Months,
			InitialPopulation: rec.Config.InitialPopulation,
			SurvivalMethod:    string(rec.Config.Survival),
			Completed:         rec.Report.Completed,
			Failed:            rec.Report.Failed,
			MeanFinalAlive:    rec.Report.FinalAlive.Mean,
			ExtinctionRate:    rec.Report.ExtinctionRate,
		})
	}
	return nil, BatchesOutput{Batches: items, Count: len(items)}, nil
}

// handleBatch implements the rabbitsim_batch tool.
func (s *Server) handleBatch(ctx context.Context, req *sdk.CallToolRequest, args BatchInput) (_ *sdk.CallToolResult, _ BatchOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("rabbitsim_batch", start, retErr, sanitizeToolParams(map[string]any{
			"id": args.ID, "include_runs": args.IncludeRuns,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "rabbitsim_batch"); err != nil {
		return nil, BatchOutput{}, err
	}
	if args.ID == "" {
		return nil, BatchOutput{}, fmt.Errorf("'id' parameter is required")
	}

	rec, err := s.store.GetBatch(ctx, args.ID)
	if err != nil {
		return nil, BatchOutput{}, err
	}
	out := BatchOutput{Batch: *rec}
	if args.IncludeRuns {
		if out.Runs, err = s.store.ListRuns(ctx, rec.ID); err != nil {
			return nil, BatchOutput{}, err
		}
	}
	return nil, out, nil
}

// handleExport implements the rabbitsim_export tool.
func (s *Server) handleExport(ctx context.Context, req *sdk.CallToolRequest, args ExportInput) (_ *sdk.CallToolResult, _ ExportOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("rabbitsim_export", start, retErr, sanitizeToolParams(map[string]any{
			"id": args.ID, "format": args.Format, "output_path": args.OutputPath,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "rabbitsim_export"); err != nil {
		return nil, ExportOutput{}, err
	}
	if args.ID == "" {
		return nil, ExportOutput{}, fmt.Errorf("'id' parameter is required")
	}

	format := export.FormatCSV
	if args.Format != "" {
		f, err := export.ParseFormat(args.Format)
		if err != nil {
			return nil, ExportOutput{}, err
		}
		format = f
	}

	rec, err := s.store.GetBatch(ctx, args.ID)
	if err != nil {
		return nil, ExportOutput{}, err
	}
	if rec.StoredRuns == 0 {
		return nil, ExportOutput{}, fmt.Errorf("batch %s was saved without per-run results", rec.ID)
	}
	if format == export.FormatSeriesCSV && !rec.HasSeries {
		return nil, ExportOutput{}, fmt.Errorf("batch %s was saved without monthly series", rec.ID)
	}

	allowedDirs, err := pathutil.ExportDirs(s.dataDir)
	if err != nil {
		return nil, ExportOutput{}, fmt.Errorf("failed to determine export dirs: %w", err)
	}
	outputPath := args.OutputPath
	if outputPath == "" {
		// Default path -- controlled by us, no validation needed
		outputPath = filepath.Join(allowedDirs[0], fmt.Sprintf("%s-%s%s", store.ShortID(rec.ID), format, format.Ext()))
	} else if outputPath, err = pathutil.Confine(outputPath, allowedDirs); err != nil {
		return nil, ExportOutput{}, fmt.Errorf("export path rejected: %w", err)
	}
	if err := store.EnsureDir(outputPath); err != nil {
		return nil, ExportOutput{}, err
	}

	var results []simulation.Result
	if format == export.FormatSeriesCSV {
		results, err = s.store.LoadResults(ctx, rec.ID)
	} else {
		results, err = s.store.ListRuns(ctx, rec.ID)
	}
	if err != nil {
		return nil, ExportOutput{}, err
	}
	rows, err := export.WriteFile(outputPath, format, results, rec.Metadata())
	if err != nil {
		return nil, ExportOutput{}, fmt.Errorf("export failed: %w", err)
	}

	var size int64
	if info, err := os.Stat(outputPath); err == nil {
		size = info.Size()
	}
	return nil, ExportOutput{
		Path:      outputPath,
		Format:    string(format),
		Rows:      rows,
		SizeBytes: size,
		Message:   fmt.Sprintf("Exported %s rows (%s) → %s", humanize.Comma(int64(rows)), humanize.Bytes(uint64(size)), outputPath),
	}, nil
}

// backupDir is the configured archive directory, or <root>/.rabbitsim/backups.
func (s *Server) backupDir() string {
	if s.settings.Backup.Dir != "" {
		return s.settings.Backup.Dir
	}
	return backup.DefaultDir(s.root)
}

// handleBackup implements the rabbitsim_backup tool.
func (s *Server) handleBackup(ctx context.Context, req *sdk.CallToolRequest, args BackupInput) (_ *sdk.CallToolResult, _ BackupOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("rabbitsim_backup", start, retErr, sanitizeToolParams(map[string]any{
			"output_path": args.OutputPath,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "rabbitsim_backup"); err != nil {
		return nil, BackupOutput{}, err
	}

	outputPath := args.OutputPath
	if outputPath == "" {
		// Default path -- controlled by us, no validation needed
		outputPath = backup.GeneratePath(s.backupDir())
	} else {
		allowedDirs, err := pathutil.BackupDirs(s.dataDir, s.settings.Backup.Dir)
		if err != nil {
			return nil, BackupOutput{}, fmt.Errorf("failed to determine allowed backup dirs: %w", err)
		}
		if outputPath, err = pathutil.Confine(outputPath, allowedDirs); err != nil {
			return nil, BackupOutput{}, fmt.Errorf("backup path rejected: %w", err)
		}
	}

	archive, err := backup.Backup(ctx, s.store, outputPath)
	if err != nil {
		return nil, BackupOutput{}, fmt.Errorf("backup failed: %w", err)
	}

	out := BackupOutput{Path: outputPath, Batches: len(archive.Batches), Runs: archive.RunCount()}
	if policy, err := s.settings.RetentionPolicy(); err != nil {
		s.logger.Warn("invalid backup retention", "error", err)
	} else if policy != nil {
		if out.Pruned, err = backup.ApplyRetention(filepath.Dir(outputPath), policy); err != nil {
			s.logger.Warn("failed to apply backup retention", "error", err)
		}
	}
	if info, err := os.Stat(outputPath); err == nil {
		out.SizeBytes = info.Size()
	}
	out.Message = fmt.Sprintf("Backup created: %d batches, %s runs (%s) → %s",
		out.Batches, humanize.Comma(int64(out.Runs)), humanize.Bytes(uint64(out.SizeBytes)), outputPath)
	return nil, out, nil
}

// handleRestore implements the rabbitsim_restore tool.
func (s *Server) handleRestore(ctx context.Context, req *sdk.CallToolRequest, args RestoreInput) (_ *sdk.CallToolResult, _ RestoreOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool("rabbitsim_restore", start, retErr, sanitizeToolParams(map[string]any{
			"input_path": args.InputPath, "mode": args.Mode,
		}))
	}()

	if err := ratelimit.CheckLimit(s.toolLimiters, "rabbitsim_restore"); err != nil {
		return nil, RestoreOutput{}, err
	}
	if args.InputPath == "" {
		return nil, RestoreOutput{}, fmt.Errorf("'input_path' parameter is required")
	}
	mode, err := backup.ParseRestoreMode(args.Mode)
	if err != nil {
		return nil, RestoreOutput{}, err
	}

	allowedDirs, err := pathutil.BackupDirs(s.dataDir, s.settings.Backup.Dir)
	if err != nil {
		return nil, RestoreOutput{}, fmt.Errorf("failed to determine allowed backup dirs: %w", err)
	}
	inputPath, err := pathutil.Confine(args.InputPath, allowedDirs)
	if err != nil {
		return nil, RestoreOutput{}, fmt.Errorf("restore path rejected: %w", err)
	}

	result, err := backup.Restore(ctx, s.store, inputPath, mode)
	if err != nil {
		return nil, RestoreOutput{}, fmt.Errorf("restore failed: %w", err)
	}
	return nil, RestoreOutput{
		Restored: result.Restored,
		Skipped:  result.Skipped,
		Deleted:  result.Deleted,
		Message: fmt.Sprintf("Restore complete (mode: %s): %d restored, %d skipped",
			mode, len(result.Restored), len(result.Skipped)),
	}, nil
}
