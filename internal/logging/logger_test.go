package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"info", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"trace", LevelTrace},
		{"TRACE", LevelTrace},
		{"Debug", slog.LevelDebug},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestValidLevel(t *testing.T) {
	for _, s := range []string{"", "info", "DEBUG", "trace"} {
		if !ValidLevel(s) {
			t.Errorf("ValidLevel(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"warn", "loud"} {
		if ValidLevel(s) {
			t.Errorf("ValidLevel(%q) = true, want false", s)
		}
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantTrace bool
	}{
		{"info", false, false},
		{"debug", true, false},
		{"trace", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug line")
			logger.Log(t.Context(), LevelTrace, "trace line")

			out := buf.String()
			if got := strings.Contains(out, "debug line"); got != tt.wantDebug {
				t.Errorf("debug visible = %v, want %v (%q)", got, tt.wantDebug, out)
			}
			if got := strings.Contains(out, "trace line"); got != tt.wantTrace {
				t.Errorf("trace visible = %v, want %v (%q)", got, tt.wantTrace, out)
			}
		})
	}
}

func TestNewLogger_TraceLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", &buf)
	logger.Log(t.Context(), LevelTrace, "run finished")

	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("output = %q, want level=TRACE", buf.String())
	}
}

func TestNew_ConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := New("info", &buf, FileOptions{})
	if closer == nil {
		t.Fatal("New() returned nil closer")
	}
	defer closer.Close()

	logger.Info("batch started", "runs", 100)
	if !strings.Contains(buf.String(), "runs=100") {
		t.Errorf("console output = %q", buf.String())
	}
}

func TestNew_FileSink(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "rabbitsim.log")

	logger, closer := New("debug", &console, FileOptions{Path: path, MaxSizeMB: 1, MaxBackups: 2, MaxAgeDays: 7})
	logger.With("batch", "b1").Debug("run failed", "run", 7)
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if !strings.Contains(console.String(), "run failed") {
		t.Errorf("console output missing record: %q", console.String())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("file line is not JSON: %v (%q)", err, data)
	}
	if entry["msg"] != "run failed" || entry["batch"] != "b1" || entry["run"] != float64(7) {
		t.Errorf("file entry = %v", entry)
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(t.Context(), slog.LevelError) {
		t.Error("Discard() logger should not be enabled at error level")
	}
}
