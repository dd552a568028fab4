package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/rabbitsim/internal/config"
	"github.com/nvandessel/rabbitsim/internal/montecarlo"
	"github.com/nvandessel/rabbitsim/internal/simulation"
	"github.com/nvandessel/rabbitsim/internal/store"
)

// isolateHome sets HOME to a temp directory to avoid touching a real
// ~/.rabbitsim/. MUST be called for any test that loads config or opens stores.
func isolateHome(t *testing.T, tmpDir string) {
	t.Helper()
	tmpHome := filepath.Join(tmpDir, "home")
	if err := os.MkdirAll(tmpHome, 0700); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	t.Setenv("HOME", tmpHome)
}

// execute runs the full command tree with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), err
}

var smallBatch = []string{"--months", "12", "--population", "20", "--runs", "4", "--workers", "2", "--quiet"}

func TestNewRootCmd(t *testing.T) {
	rootCmd := newRootCmd()
	for _, name := range []string{"json", "root", "config", "log-level"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("missing global flag --%s", name)
		}
	}

	want := []string{"version", "run", "trace", "batches", "show", "delete", "export", "plot", "backup", "restore", "config", "mcp-server"}
	have := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		have[c.Name()] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got["version"] != version {
		t.Errorf("version = %q, want %q", got["version"], version)
	}

	out, err = execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "rabbitsim version ") {
		t.Errorf("output = %q", out)
	}
}

func TestRunCmd_JSON(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	out, err := execute(t, append([]string{"run", "--json", "--root", tmpDir}, smallBatch...)...)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var view batchView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if view.ID != "" {
		t.Errorf("ID = %q without --save", view.ID)
	}
	if view.Config.Runs != 4 || view.Config.Months != 12 || view.Config.InitialPopulation != 20 {
		t.Errorf("config not taken from flags: %+v", view.Config)
	}
	if got := view.Report.Completed + view.Report.Failed; got != 4 {
		t.Errorf("completed + failed = %d, want 4", got)
	}
	if view.Report.Percentiles != nil {
		t.Error("percentiles reported without kept results")
	}
	if _, err := os.Stat(store.DefaultDBPath(tmpDir)); !os.IsNotExist(err) {
		t.Error("store created without --save")
	}
}

func TestRunCmd_Text(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	out, err := execute(t, append([]string{"run", "--root", tmpDir, "--percentiles", "--population", "2"}, smallBatch[:2]...)...)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	for _, want := range []string{"Batch: 100 runs x 12 months, initial population 2", "static survival", "p50"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunCmd_Deterministic(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	args := append([]string{"run", "--json", "--root", tmpDir, "--survival", "exponential", "--seed", "42"}, smallBatch...)

	first, err := execute(t, args...)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := execute(t, append(args, "--workers", "1")...)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	var a, b batchView
	json.Unmarshal([]byte(first), &a)
	json.Unmarshal([]byte(second), &b)
	if a.Report.FinalAlive != b.Report.FinalAlive || a.Report.TotalDeaths != b.Report.TotalDeaths {
		t.Errorf("same seed gave different reports:\n%+v\n%+v", a.Report, b.Report)
	}
}

func TestRunCmd_Invalid(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown survival", []string{"--survival", "lunar"}},
		{"zero runs", []string{"--runs", "0"}},
		{"negative months", []string{"--months", "-1"}},
		{"rate above 100", []string{"--adult-rate", "101"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"run", "--quiet", "--root", tmpDir}, tt.args...)...)
			if !errors.Is(err, montecarlo.ErrInvalidConfig) {
				t.Errorf("error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestRunCmd_ConfigFileAndEnv(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	cfgPath := filepath.Join(tmpDir, "rabbitsim.yaml")
	yaml := "simulation:\n  months: 6\n  initial_population: 10\n  runs: 3\n"
	if err := os.WriteFile(cfgPath, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RABBITSIM_RUNS", "5")

	out, err := execute(t, "run", "--json", "--quiet", "--root", tmpDir, "--config", cfgPath, "--months", "9")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var view batchView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	// flag > env > file > default
	if view.Config.Months != 9 || view.Config.Runs != 5 || view.Config.InitialPopulation != 10 {
		t.Errorf("months, runs, population = %d, %d, %d, want 9, 5, 10",
			view.Config.Months, view.Config.Runs, view.Config.InitialPopulation)
	}
}

func TestStoredBatchWorkflow(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	withRoot := func(args ...string) []string { return append(args, "--root", tmpDir) }

	out, err := execute(t, append(withRoot("run", "--json", "--save", "--keep-series"), smallBatch...)...)
	if err != nil {
		t.Fatalf("run --save failed: %v", err)
	}
	var view batchView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if view.ID == "" {
		t.Fatal("no batch id with --save")
	}
	prefix := view.ID[:6]

	out, err = execute(t, withRoot("batches", "--json")...)
	if err != nil {
		t.Fatalf("batches failed: %v", err)
	}
	var listed struct {
		Batches []store.BatchRecord `json:"batches"`
		Count   int                 `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if listed.Count != 1 || listed.Batches[0].ID != view.ID {
		t.Fatalf("batches = %+v, want the saved batch", listed)
	}

	out, err = execute(t, withRoot("show", prefix, "--runs")...)
	if err != nil {
		t.Fatalf("show failed: %v", err)
	}
	if !strings.Contains(out, view.ID) || !strings.Contains(out, "with monthly series") {
		t.Errorf("show output:\n%s", out)
	}

	for _, format := range []string{"csv", "series-csv", "arrow"} {
		out, err = execute(t, withRoot("export", prefix, "--format", format, "--json")...)
		if err != nil {
			t.Fatalf("export %s failed: %v", format, err)
		}
		var exp struct {
			Path string `json:"path"`
			Rows int    `json:"rows"`
		}
		if err := json.Unmarshal([]byte(out), &exp); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if _, err := os.Stat(exp.Path); err != nil {
			t.Errorf("export %s: file missing: %v", format, err)
		}
		if exp.Rows == 0 {
			t.Errorf("export %s wrote no rows", format)
		}
	}

	pngPath := filepath.Join(tmpDir, "run0.png")
	if _, err := execute(t, withRoot("plot", prefix, "--run", "0", "-o", pngPath)...); err != nil {
		t.Fatalf("plot failed: %v", err)
	}
	data, err := os.ReadFile(pngPath)
	if err != nil {
		t.Fatalf("plot file missing: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")) {
		t.Error("plot output is not a PNG")
	}

	if _, err := execute(t, withRoot("plot", prefix, "--kind", "pie")...); err == nil {
		t.Error("plot with unknown kind should fail")
	}

	if _, err := execute(t, withRoot("delete", prefix)...); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := execute(t, withRoot("show", prefix)...); !errors.Is(err, store.ErrBatchNotFound) {
		t.Errorf("show after delete: error = %v, want ErrBatchNotFound", err)
	}
}

func TestExportCmd_NoSeries(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	out, err := execute(t, append([]string{"run", "--json", "--save", "--root", tmpDir}, smallBatch...)...)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var view batchView
	json.Unmarshal([]byte(out), &view)

	_, err = execute(t, "export", view.ID, "--format", "series-csv", "--root", tmpDir)
	if err == nil || !strings.Contains(err.Error(), "without monthly series") {
		t.Errorf("error = %v, want missing series", err)
	}
	_, err = execute(t, "plot", view.ID, "--root", tmpDir)
	if err == nil || !strings.Contains(err.Error(), "without monthly series") {
		t.Errorf("plot error = %v, want missing series", err)
	}
}

func TestBatchesCmd_Empty(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	out, err := execute(t, "batches", "--root", tmpDir)
	if err != nil {
		t.Fatalf("batches failed: %v", err)
	}
	if !strings.Contains(out, "No stored batches") {
		t.Errorf("output = %q", out)
	}
}

func TestTraceCmd(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	csvPath := filepath.Join(tmpDir, "trace.csv")

	out, err := execute(t, "trace", "--json", "--population", "2", "--months", "18", "--csv", csvPath)
	if err != nil {
		t.Fatalf("trace failed: %v", err)
	}
	var res simulation.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(res.Series) != res.MonthsSimulated {
		t.Errorf("len(Series) = %d, MonthsSimulated = %d", len(res.Series), res.MonthsSimulated)
	}
	for i, m := range res.Series {
		if m.Month != i+1 {
			t.Fatalf("Series[%d].Month = %d", i, m.Month)
		}
	}

	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("csv missing: %v", err)
	}
	if !strings.HasPrefix(string(data), "Sim_Number,Month,Total_Alive") {
		t.Errorf("csv header = %q", strings.SplitN(string(data), "\n", 2)[0])
	}

	if _, err := execute(t, "trace", "--run", "-1"); err == nil {
		t.Error("negative run index should fail")
	}
}

func TestTraceCmd_MatchesBatchRun(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	out, err := execute(t, append([]string{"run", "--json", "--save", "--root", tmpDir}, smallBatch...)...)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var view batchView
	json.Unmarshal([]byte(out), &view)

	st, err := store.Open(t.Context(), store.DefaultDBPath(tmpDir))
	if err != nil {
		t.Fatal(err)
	}
	runs, err := st.ListRuns(t.Context(), view.ID)
	st.Close()
	if err != nil || len(runs) != 4 {
		t.Fatalf("ListRuns = %d runs, %v", len(runs), err)
	}

	out, err = execute(t, "trace", "--json", "--run", "3", "--months", "12", "--population", "20")
	if err != nil {
		t.Fatalf("trace failed: %v", err)
	}
	var traced simulation.Result
	json.Unmarshal([]byte(out), &traced)
	if traced.FinalAlive != runs[3].FinalAlive || traced.TotalDeaths != runs[3].TotalDeaths {
		t.Errorf("trace --run 3 = (%d alive, %d deaths), batch run 3 = (%d, %d)",
			traced.FinalAlive, traced.TotalDeaths, runs[3].FinalAlive, runs[3].TotalDeaths)
	}
}

func TestConfigCmd(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("simulation:\n  runs: 7\n"), 0600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "config", "--json", "--config", cfgPath)
	if err != nil {
		t.Fatalf("config failed: %v", err)
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(out), &cfg); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if cfg.Simulation.Runs != 7 {
		t.Errorf("Runs = %d, want 7", cfg.Simulation.Runs)
	}

	out, err = execute(t, "config", "--config", cfgPath)
	if err != nil {
		t.Fatalf("config failed: %v", err)
	}
	if !strings.Contains(out, "runs: 7") {
		t.Errorf("YAML output missing runs:\n%s", out)
	}

	if _, err := execute(t, "config", "--validate", "--config", cfgPath); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestConfigCmd_Invalid(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	cfgPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("simulation:\n  survival_method: lunar\n"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "config", "--validate", "--config", cfgPath); err == nil {
		t.Error("expected validation error")
	}
	out, err := execute(t, "config", "--validate", "--json", "--config", cfgPath)
	if err == nil {
		t.Error("expected validation error in JSON mode")
	}
	if !strings.Contains(out, `"valid": false`) {
		t.Errorf("JSON output = %s", out)
	}

	if _, err := execute(t, "config", "--config", filepath.Join(tmpDir, "missing.yaml")); err == nil {
		t.Error("missing explicit config file should fail")
	}
	if _, err := execute(t, "run", "--quiet", "--config", cfgPath, "--root", tmpDir); err == nil {
		t.Error("run should refuse an invalid config")
	}
}

func TestProgressBar(t *testing.T) {
	var nilBar *progressBar
	nilBar.update(1, 2)
	nilBar.finish()

	var buf bytes.Buffer
	bar := newProgressBar(&buf)
	bar.update(1, 4)
	bar.update(2, 4) // throttled
	bar.update(4, 4) // final update always prints
	bar.finish()

	out := buf.String()
	if !strings.Contains(out, "1 / 4 runs") || !strings.Contains(out, "4 / 4 runs (100%)") {
		t.Errorf("progress output = %q", out)
	}
	if strings.Contains(out, "2 / 4 runs") {
		t.Errorf("progress not throttled: %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Error("finish should end the progress line")
	}
}

