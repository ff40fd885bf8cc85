package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func newTestManager(t *testing.T, level string) (*Manager, string) {
	t.Helper()
	logFile := filepath.Join(t.TempDir(), "data", "syncwatch.log")
	mgr, err := NewManager(Config{FilePath: logFile, Level: level, ChannelBufSize: 100})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return mgr, logFile
}

func TestNewManager_CreatesLogDirectory(t *testing.T) {
	mgr, logFile := newTestManager(t, "debug")
	defer func() { _ = mgr.Close() }()

	if _, err := os.Stat(filepath.Dir(logFile)); err != nil {
		t.Errorf("log directory not created: %v", err)
	}
}

func TestNewManager_RequiresFilePath(t *testing.T) {
	if _, err := NewManager(Config{}); err == nil {
		t.Fatal("NewManager() with empty FilePath should fail")
	}
}

func TestManager_ForCachesPerScope(t *testing.T) {
	mgr, _ := newTestManager(t, "debug")
	defer func() { _ = mgr.Close() }()

	w1, w2, f := mgr.For("watcher"), mgr.For("watcher"), mgr.For("fetch")
	if w1 != w2 {
		t.Error("For() should return the cached logger for the same scope")
	}
	if w1 == f {
		t.Error("For() should return distinct loggers for distinct scopes")
	}
	if f.Scope() != "fetch" {
		t.Errorf("Scope() = %q, want fetch", f.Scope())
	}
}

func TestManager_TeesChannelAndFile(t *testing.T) {
	mgr, logFile := newTestManager(t, "debug")

	mgr.For("index.s3").Info("index refresh failed, keeping previous results",
		"source", "s3", "error", "connection reset")
	_ = mgr.Sync()

	select {
	case entry := <-mgr.Entries():
		if entry.Scope != "index.s3" || entry.Level != "INFO" {
			t.Errorf("entry = %s/%s, want INFO/index.s3", entry.Level, entry.Scope)
		}
		if entry.Fields["source"] != "s3" || entry.Fields["error"] != "connection reset" {
			t.Errorf("Fields = %v", entry.Fields)
		}
	default:
		t.Fatal("entry not received on channel after Sync()")
	}

	_ = mgr.Close()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	line := strings.TrimSpace(string(data))
	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("log file line is not JSON: %q", line)
	}
	if rec["logger"] != "index.s3" || rec["msg"] != "index refresh failed, keeping previous results" {
		t.Errorf("file record = %v", rec)
	}
}

func TestManager_WithAddsFields(t *testing.T) {
	mgr, _ := newTestManager(t, "debug")
	defer func() { _ = mgr.Close() }()

	logger := mgr.For("fetch").With("url", "file:///cloud/Documents/a.txt")
	logger.Warn("download failed", "error", "disk full")
	_ = mgr.Sync()

	entry := <-mgr.Entries()
	if entry.Fields["url"] != "file:///cloud/Documents/a.txt" || entry.Fields["error"] != "disk full" {
		t.Errorf("Fields = %v, want url and error", entry.Fields)
	}
	if entry.Level != "WARN" {
		t.Errorf("Level = %q, want WARN", entry.Level)
	}
}

func TestManager_LevelFiltersBothOutputs(t *testing.T) {
	mgr, logFile := newTestManager(t, "warn")

	logger := mgr.For("reconcile")
	logger.Debug("deriving status")
	logger.Info("pass complete", "rows", 2)
	logger.Warn("fetch request failed", "url", "file:///docs/b.txt")
	_ = mgr.Sync()

	entry := <-mgr.Entries()
	if entry.Message != "fetch request failed" {
		t.Errorf("first entry = %q, want the warning", entry.Message)
	}
	_ = mgr.Close()

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "pass complete") {
		t.Error("info record reached the file at warn level")
	}
}

func TestManager_ChannelSinkInjection(t *testing.T) {
	mgr, _ := newTestManager(t, "debug")
	defer func() { _ = mgr.Close() }()

	mgr.GetChannelSink().Send(LogEntry{Level: "INFO", Scope: "web", Message: "listening"})

	select {
	case got := <-mgr.Entries():
		if got.Scope != "web" || got.Message != "listening" {
			t.Errorf("entry = %+v", got)
		}
	default:
		t.Fatal("injected entry not received")
	}
}

func TestParseZapLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"chatty", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseZapLevel(tt.input); got != tt.want {
				t.Errorf("ParseZapLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
