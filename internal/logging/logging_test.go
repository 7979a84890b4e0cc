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
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q): expected %v, got %v", in, want, got)
		}
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l, c := New(Options{Level: "info", Format: "json", Writer: &buf})
	defer c.Close()

	WithComponent(l, "web").Info("hello", "k", 1)
	l.Debug("hidden")

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("Expected one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["component"] != "web" || rec["msg"] != "hello" {
		t.Errorf("Unexpected record: %v", rec)
	}
}

func TestNew_TextWithFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "app.log")
	l, c := New(Options{Level: "debug", Writer: &buf, File: path})

	l.Debug("to both", "n", 2)
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if !strings.Contains(buf.String(), "msg=\"to both\"") {
		t.Errorf("Expected text output on console, got %q", buf.String())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected log file: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"to both"`) {
		t.Errorf("Expected JSON record in file, got %q", string(b))
	}
}
