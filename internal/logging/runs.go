package logging

import (
	"encoding/json"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RunLogFile is the name of the run trace inside the data directory.
const RunLogFile = "runs.jsonl"

// RunLogger writes one JSONL line per run event.
// It is safe for concurrent use. A nil RunLogger is safe to use;
// all methods are no-ops on nil receiver.
type RunLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewRunLogger creates a run logger writing to dir/runs.jsonl.
// At "info" level it returns nil and no file is created.
// Returns nil if the file cannot be opened.
func NewRunLogger(dir string, level string) *RunLogger {
	if ParseLevel(level) == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	f, err := os.OpenFile(filepath.Join(dir, RunLogFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return &RunLogger{file: f}
}

// Log writes event as a single JSONL line with a "time" field added.
// The caller's map is not mutated.
func (rl *RunLogger) Log(event map[string]any) {
	if rl == nil || rl.file == nil {
		return
	}

	entry := make(map[string]any, len(event)+1)
	maps.Copy(entry, event)
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.file != nil {
		_, _ = rl.file.Write(data)
	}
}

// Close closes the underlying file.
func (rl *RunLogger) Close() {
	if rl == nil {
		return
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.file != nil {
		rl.file.Close()
		rl.file = nil
	}
}
