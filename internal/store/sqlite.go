package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/rabbitsim/internal/montecarlo"
	"github.com/nvandessel/rabbitsim/internal/simulation"
)

// Store is a SQLite-backed batch store. It is safe for concurrent use; writes
// are serialized through a single connection.
type Store struct {
	db *sqlx.DB
	// rows shares db's connection but maps columns through json tags, which
	// simulation.Result and simulation.MonthStats already carry.
	rows *sqlx.DB
	path string
}

// Open opens or creates the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := EnsureDir(path); err != nil {
		return nil, err
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	rows := sqlx.NewDb(db.DB, "sqlite")
	rows.Mapper = reflectx.NewMapperFunc("json", strings.ToLower)
	return &Store{db: db, rows: rows, path: path}, nil
}

// Path is the database file.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// timeLayout is fixed-width so created_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const insertRun = `INSERT INTO runs
    (batch_id, run_index, status, error, final_alive, final_females, final_males,
     total_deaths, total_births, peak, peak_month, trough, trough_month,
     population_months, months_simulated, extinction_month, duration_ns)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertMonth = `INSERT INTO months
    (batch_id, run_index, month, alive, males, females, births, deaths)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// SaveBatch stores b with its kept runs and series and returns the new ID.
func (s *Store) SaveBatch(ctx context.Context, b *montecarlo.Batch) (string, error) {
	if b == nil {
		return "", fmt.Errorf("batch is required")
	}
	created := b.Started
	if created.IsZero() {
		created = time.Now()
	}
	rec := BatchRecord{
		ID:        uuid.NewString(),
		CreatedAt: created,
		Config:    b.Config,
		Workers:   b.Workers,
		Report:    b.Report,
		Elapsed:   b.Elapsed,
	}
	if err := s.insert(ctx, rec, b.Results); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// ImportBatch stores a batch under its existing ID, as read back from a
// backup. It reports false without writing when the ID is already present.
func (s *Store) ImportBatch(ctx context.Context, rec BatchRecord, runs []simulation.Result) (bool, error) {
	if _, err := uuid.Parse(rec.ID); err != nil {
		return false, fmt.Errorf("invalid batch id %q: %w", rec.ID, err)
	}
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM batches WHERE id = ?`, rec.ID); err != nil {
		return false, fmt.Errorf("failed to look up batch: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	if err := s.insert(ctx, rec, runs); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) insert(ctx context.Context, rec BatchRecord, runs []simulation.Result) error {
	configJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	reportJSON, err := json.Marshal(rec.Report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cfg := rec.Config
	if _, err := tx.ExecContext(ctx, `INSERT INTO batches
		(id, created_at, months, initial_population, runs, base_seed, workers,
		 survival_method, litter_policy, config, report, elapsed_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CreatedAt.UTC().Format(timeLayout),
		cfg.Months, cfg.InitialPopulation, cfg.Runs,
		strconv.FormatUint(cfg.BaseSeed, 10), rec.Workers,
		string(cfg.Survival), string(cfg.Litters),
		string(configJSON), string(reportJSON), int64(rec.Elapsed)); err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	if len(runs) > 0 {
		if err := insertResults(ctx, tx, rec.ID, runs); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func insertResults(ctx context.Context, tx *sqlx.Tx, id string, results []simulation.Result) error {
	runStmt, err := tx.PreparexContext(ctx, insertRun)
	if err != nil {
		return fmt.Errorf("failed to prepare run insert: %w", err)
	}
	defer runStmt.Close()

	monthStmt, err := tx.PreparexContext(ctx, insertMonth)
	if err != nil {
		return fmt.Errorf("failed to prepare month insert: %w", err)
	}
	defer monthStmt.Close()

	for _, r := range results {
		if _, err := runStmt.ExecContext(ctx,
			id, r.RunIndex, string(r.Status), r.Error,
			r.FinalAlive, r.FinalFemales, r.FinalMales,
			r.TotalDeaths, r.TotalBirths,
			r.Peak, r.PeakMonth, r.Trough, r.TroughMonth,
			r.PopulationMonths, r.MonthsSimulated, r.ExtinctionMonth,
			int64(r.Duration)); err != nil {
			return fmt.Errorf("failed to insert run %d: %w", r.RunIndex, err)
		}
		for _, m := range r.Series {
			if _, err := monthStmt.ExecContext(ctx,
				id, r.RunIndex, m.Month, m.Alive, m.Males, m.Females, m.Births, m.Deaths); err != nil {
				return fmt.Errorf("failed to insert run %d month %d: %w", r.RunIndex, m.Month, err)
			}
		}
	}
	return nil
}

// batchRow mirrors the batches table plus run/series counts.
type batchRow struct {
	ID         string `db:"id"`
	CreatedAt  string `db:"created_at"`
	Workers    int    `db:"workers"`
	Config     string `db:"config"`
	Report     string `db:"report"`
	ElapsedNS  int64  `db:"elapsed_ns"`
	StoredRuns int    `db:"stored_runs"`
	SeriesRows int    `db:"series_rows"`
}

const selectBatch = `SELECT b.id, b.created_at, b.workers, b.config, b.report, b.elapsed_ns,
    (SELECT COUNT(*) FROM runs r WHERE r.batch_id = b.id) AS stored_runs,
    (SELECT COUNT(*) FROM months m WHERE m.batch_id = b.id) AS series_rows
    FROM batches b`

func (row batchRow) record() (*BatchRecord, error) {
	created, err := time.Parse(timeLayout, row.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("batch %s: bad created_at %q: %w", row.ID, row.CreatedAt, err)
	}
	rec := &BatchRecord{
		ID:         row.ID,
		CreatedAt:  created,
		Workers:    row.Workers,
		Elapsed:    time.Duration(row.ElapsedNS),
		StoredRuns: row.StoredRuns,
		HasSeries:  row.SeriesRows > 0,
	}
	if err := json.Unmarshal([]byte(row.Config), &rec.Config); err != nil {
		return nil, fmt.Errorf("batch %s: failed to decode config: %w", row.ID, err)
	}
	if err := json.Unmarshal([]byte(row.Report), &rec.Report); err != nil {
		return nil, fmt.Errorf("batch %s: failed to decode report: %w", row.ID, err)
	}
	return rec, nil
}

// ListBatches returns stored batches, newest first. limit <= 0 returns all.
func (s *Store) ListBatches(ctx context.Context, limit int) ([]BatchRecord, error) {
	query := selectBatch + ` ORDER BY b.created_at DESC, b.id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []batchRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}

	out := make([]BatchRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

// GetBatch returns the batch whose ID equals id or, for at least MinPrefixLen
// characters, uniquely starts with id.
func (s *Store) GetBatch(ctx context.Context, id string) (*BatchRecord, error) {
	fullID, err := s.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}

	var row batchRow
	if err := s.db.GetContext(ctx, &row, selectBatch+` WHERE b.id = ?`, fullID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
		}
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return row.record()
}

func (s *Store) resolveID(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("%w: empty id", ErrBatchNotFound)
	}

	var ids []string
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM batches WHERE id = ?`, id); err != nil {
		return "", fmt.Errorf("failed to look up batch: %w", err)
	}
	if len(ids) == 1 {
		return ids[0], nil
	}
	if len(id) < MinPrefixLen {
		return "", fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}

	if err := s.db.SelectContext(ctx, &ids,
		`SELECT id FROM batches WHERE substr(id, 1, ?) = ? ORDER BY id LIMIT 2`, len(id), id); err != nil {
		return "", fmt.Errorf("failed to look up batch: %w", err)
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousID, id)
	}
}

// ListRuns returns the stored runs of a batch ordered by run index, without
// their series.
func (s *Store) ListRuns(ctx context.Context, id string) ([]simulation.Result, error) {
	fullID, err := s.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}

	var runs []simulation.Result
	if err := s.rows.SelectContext(ctx, &runs, `SELECT run_index, status, error,
		final_alive, final_females, final_males, total_deaths, total_births,
		peak, peak_month, trough, trough_month, population_months,
		months_simulated, extinction_month, duration_ns
		FROM runs WHERE batch_id = ? ORDER BY run_index`, fullID); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// MonthSeries returns the monthly series of one run. A run stored without a
// series returns an empty slice.
func (s *Store) MonthSeries(ctx context.Context, id string, run int) ([]simulation.MonthStats, error) {
	fullID, err := s.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}

	var exists int
	if err := s.db.GetContext(ctx, &exists,
		`SELECT COUNT(*) FROM runs WHERE batch_id = ? AND run_index = ?`, fullID, run); err != nil {
		return nil, fmt.Errorf("failed to look up run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("batch %s has no run %d", fullID, run)
	}

	series := []simulation.MonthStats{}
	if err := s.rows.SelectContext(ctx, &series, `SELECT month, alive, males, females, births, deaths
		FROM months WHERE batch_id = ? AND run_index = ? ORDER BY month`, fullID, run); err != nil {
		return nil, fmt.Errorf("failed to load series: %w", err)
	}
	return series, nil
}

// LoadResults returns the stored runs with their series attached.
func (s *Store) LoadResults(ctx context.Context, id string) ([]simulation.Result, error) {
	runs, err := s.ListRuns(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range runs {
		series, err := s.MonthSeries(ctx, id, runs[i].RunIndex)
		if err != nil {
			return nil, err
		}
		if len(series) > 0 {
			runs[i].Series = series
		}
	}
	return runs, nil
}

// DeleteBatch removes a batch together with its runs and series.
func (s *Store) DeleteBatch(ctx context.Context, id string) error {
	fullID, err := s.resolveID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM batches WHERE id = ?`, fullID); err != nil {
		return fmt.Errorf("failed to delete batch: %w", err)
	}
	return nil
}
