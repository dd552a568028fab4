package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func readAuditEntries(t *testing.T, path string) []AuditEntry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit log: %v", err)
	}
	defer f.Close()

	var entries []AuditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("malformed audit line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestAuditLogger_Log(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".rabbitsim")
	logger := NewAuditLogger(dir)
	if logger == nil {
		t.Fatal("NewAuditLogger returned nil")
	}

	logger.Log(AuditEntry{Timestamp: time.Now(), Tool: "rabbitsim_batches", Status: "success"})
	logger.Log(AuditEntry{Timestamp: time.Now(), Tool: "rabbitsim_batch", Status: "error", Error: "batch not found"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries := readAuditEntries(t, filepath.Join(dir, AuditFile))
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[1].Tool != "rabbitsim_batch" || entries[1].Error != "batch not found" {
		t.Errorf("unexpected entry: %+v", entries[1])
	}

	info, err := os.Stat(filepath.Join(dir, AuditFile))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("audit log permissions = %o, want 600", perm)
	}
}

func TestAuditLogger_NilSafe(t *testing.T) {
	var logger *AuditLogger
	logger.Log(AuditEntry{Tool: "rabbitsim_simulate"})
	if err := logger.Close(); err != nil {
		t.Errorf("Close on nil: %v", err)
	}
}

func TestAuditLogger_LogAfterClose(t *testing.T) {
	dir := t.TempDir()
	logger := NewAuditLogger(dir)
	logger.Close()
	logger.Log(AuditEntry{Tool: "rabbitsim_simulate"})

	if entries := readAuditEntries(t, filepath.Join(dir, AuditFile)); len(entries) != 0 {
		t.Errorf("got %d entries after Close, want 0", len(entries))
	}
}

func TestAuditLogger_Concurrent(t *testing.T) {
	dir := t.TempDir()
	logger := NewAuditLogger(dir)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Log(AuditEntry{Timestamp: time.Now(), Tool: "rabbitsim_batches", Status: "success"})
		}()
	}
	wg.Wait()
	logger.Close()

	if entries := readAuditEntries(t, filepath.Join(dir, AuditFile)); len(entries) != 50 {
		t.Errorf("got %d entries, want 50", len(entries))
	}
}

func TestSanitizeToolParams(t *testing.T) {
	seed := uint64(7)
	var noSeed *uint64

	got := sanitizeToolParams(map[string]any{
		"runs":        100,
		"months":      0,
		"seed":        &seed,
		"output_path": "/home/someone/secret.csv",
		"id":          "",
		"surprise":    "dropped",
		"save":        true,
	})
	want := map[string]string{
		"runs":         "100",
		"seed":         "(set)",
		"output_path":  "(set)",
		"save":         "true",
		"_param_count": "5",
	}
	if len(got) != len(want) {
		t.Errorf("sanitizeToolParams() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("params[%q] = %q, want %q", k, got[k], v)
		}
	}

	if got := sanitizeToolParams(map[string]any{"seed": noSeed}); got["_param_count"] != "0" || got["seed"] != "" {
		t.Errorf("nil seed should be treated as unset, got %v", got)
	}
	if sanitizeToolParams(nil) != nil {
		t.Error("sanitizeToolParams(nil) should be nil")
	}
}

func TestAuditTool_RecordsCalls(t *testing.T) {
	server, tmpDir := setupTestServer(t)

	if _, _, err := server.handleBatches(context.Background(), &sdk.CallToolRequest{}, BatchesInput{Limit: 5}); err != nil {
		t.Fatalf("handleBatches: %v", err)
	}
	_, _, err := server.handleBatch(context.Background(), &sdk.CallToolRequest{}, BatchInput{ID: "nope-nope"})
	if err == nil {
		t.Fatal("expected not-found error")
	}
	server.auditLogger.Close()

	entries := readAuditEntries(t, filepath.Join(tmpDir, ".rabbitsim", AuditFile))
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if e := entries[0]; e.Tool != "rabbitsim_batches" || e.Status != "success" || e.Params["limit"] != "5" {
		t.Errorf("unexpected first entry: %+v", e)
	}
	if e := entries[1]; e.Tool != "rabbitsim_batch" || e.Status != "error" || e.Params["id"] != "(set)" {
		t.Errorf("unexpected second entry: %+v", e)
	}
	if entries[1].Error == "" {
		t.Error("error entry has no message")
	}
}
