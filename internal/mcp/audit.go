package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"time"
)

// AuditFile is the name of the tool audit log inside the data directory.
const AuditFile = "audit.jsonl"

// AuditEntry records one MCP tool invocation. It holds call metadata, never
// batch contents or caller-supplied paths.
type AuditEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Tool       string            `json:"tool"`
	DurationMs int64             `json:"duration_ms"`
	Status     string            `json:"status"` // "success" or "error"
	Error      string            `json:"error,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
}

// AuditLogger appends audit entries to a JSONL file. It is safe for
// concurrent use. A nil AuditLogger is safe to use; all methods are no-ops
// on nil receiver.
type AuditLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewAuditLogger opens dir/audit.jsonl for appending. If the file cannot be
// created a warning is printed to stderr and nil is returned.
func NewAuditLogger(dir string) *AuditLogger {
	if err := os.MkdirAll(dir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot create audit log directory %s: %v\n", dir, err)
		return nil
	}
	path := filepath.Join(dir, AuditFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot open audit log %s: %v\n", path, err)
		return nil
	}
	return &AuditLogger{file: f}
}

// Log appends entry as a single line.
func (a *AuditLogger) Log(entry AuditEntry) {
	if a == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return
	}
	_, _ = a.file.Write(append(data, '\n'))
}

// Close closes the log file. Later calls to Log are dropped.
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// Parameters whose values are safe to record.
var safeValueParams = map[string]bool{
	"months":             true,
	"initial_population": true,
	"runs":               true,
	"survival_method":    true,
	"litter_policy":      true,
	"save":               true,
	"limit":              true,
	"format":             true,
	"include_runs":       true,
	"mode":               true,
}

// Parameters recorded only as "(set)".
var presenceOnlyParams = map[string]bool{
	"id":          true,
	"seed":        true,
	"output_path": true,
	"input_path":  true,
}

// sanitizeToolParams reduces tool arguments to audit metadata. Zero values
// are treated as unset and skipped, unknown keys are dropped, and
// "_param_count" counts the arguments that were set.
func sanitizeToolParams(params map[string]any) map[string]string {
	if params == nil {
		return nil
	}

	result := make(map[string]string)
	set := 0
	for key, val := range params {
		if isZero(val) {
			continue
		}
		set++
		switch {
		case safeValueParams[key]:
			result[key] = fmt.Sprintf("%v", val)
		case presenceOnlyParams[key]:
			result[key] = "(set)"
		}
	}
	result["_param_count"] = fmt.Sprintf("%d", set)
	return result
}

func isZero(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.IsZero()
}

// auditTool records a finished tool call.
func (s *Server) auditTool(toolName string, start time.Time, err error, params map[string]string) {
	entry := AuditEntry{
		Timestamp:  start,
		Tool:       toolName,
		DurationMs: time.Since(start).Milliseconds(),
		Status:     "success",
		Params:     params,
	}
	if err != nil {
		entry.Status = "error"
		entry.Error = err.Error()
	}
	s.auditLogger.Log(entry)
	s.logger.Debug("mcp tool call", "tool", toolName, "status", entry.Status, "duration_ms", entry.DurationMs)
}
