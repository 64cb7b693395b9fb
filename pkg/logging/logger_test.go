// Copyright (C) 2025 Rutopia (dev@rutopia.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
		{Level(-1), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"Error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.name); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestLevel_ToSlogLevel(t *testing.T) {
	tests := []struct {
		level Level
		want  slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{Level(99), slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := tt.level.toSlogLevel(); got != tt.want {
			t.Errorf("Level(%d).toSlogLevel() = %v, want %v", tt.level, got, tt.want)
		}
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestNew_DefaultConfig(t *testing.T) {
	logger := New(Config{})
	defer logger.Close()

	if logger.slog == nil {
		t.Fatal("Expected non-nil slog logger")
	}
	if logger.file != nil {
		t.Error("Expected no log file without LogDir")
	}
}

func TestNew_FileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "chat-orchestrator",
		Quiet:   true,
	})

	logger.Info("session created", "session_id", "sess-1")

	if err := logger.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	want := "chat-orchestrator_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, want))
	if err != nil {
		t.Fatalf("Expected log file %s: %v", want, err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("Expected JSON log entry: %v", err)
	}
	if entry["msg"] != "session created" {
		t.Errorf("Unexpected message: %v", entry["msg"])
	}
	if entry["service"] != "chat-orchestrator" {
		t.Errorf("Expected service attribute, got %v", entry["service"])
	}
	if entry["session_id"] != "sess-1" {
		t.Errorf("Expected session_id attribute, got %v", entry["session_id"])
	}
}

func TestNew_FileLoggingCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	logger := New(Config{LogDir: dir, Service: "test", Quiet: true})
	defer logger.Close()

	if logger.file == nil {
		t.Fatal("Expected log file in created directory")
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Expected directory created: %v", err)
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelWarn,
		LogDir:  dir,
		Service: "test",
		Quiet:   true,
	})

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")
	logger.Error("kept too")

	if err := logger.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir,
		"test_"+time.Now().Format("2006-01-02")+".log"))
	if err != nil {
		t.Fatalf("Expected log file: %v", err)
	}

	content := string(data)
	if strings.Contains(content, "dropped") {
		t.Error("Expected Debug/Info filtered at Warn level")
	}
	if !strings.Contains(content, "kept") {
		t.Error("Expected Warn/Error entries present")
	}
}

func TestLogger_With(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{LogDir: dir, Service: "test", Quiet: true})

	child := logger.With("session_id", "sess-1")
	child.Info("turn started")
	logger.Info("no session attr")

	if err := logger.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir,
		"test_"+time.Now().Format("2006-01-02")+".log"))
	if err != nil {
		t.Fatalf("Expected log file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "sess-1") {
		t.Error("Expected child attributes on child entry")
	}
	if strings.Contains(lines[1], "sess-1") {
		t.Error("Child attributes leaked into parent logger")
	}
}

func TestLogger_CloseIdempotent(t *testing.T) {
	logger := New(Config{LogDir: t.TempDir(), Service: "test", Quiet: true})

	if err := logger.Close(); err != nil {
		t.Fatalf("First Close() failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Second Close() failed: %v", err)
	}
}

func TestLogger_ConcurrentUse(t *testing.T) {
	logger := New(Config{LogDir: t.TempDir(), Service: "test", Quiet: true})
	defer logger.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				logger.Info("concurrent write", "goroutine", n, "iteration", j)
			}
		}(i)
	}
	wg.Wait()
}

func TestDefault(t *testing.T) {
	logger := Default()
	defer logger.Close()

	if logger.config.Service != "rutopia" {
		t.Errorf("Expected service 'rutopia', got %q", logger.config.Service)
	}
	if logger.config.Level != LevelInfo {
		t.Errorf("Expected Info level, got %v", logger.config.Level)
	}
}

// =============================================================================
// Multi-Handler Tests
// =============================================================================

type countingHandler struct {
	level   slog.Level
	records int
}

func (h *countingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *countingHandler) Handle(context.Context, slog.Record) error {
	h.records++
	return nil
}

func (h *countingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *countingHandler) WithGroup(string) slog.Handler      { return h }

func TestMultiHandler_FansOut(t *testing.T) {
	a := &countingHandler{level: slog.LevelDebug}
	b := &countingHandler{level: slog.LevelWarn}
	logger := slog.New(&multiHandler{handlers: []slog.Handler{a, b}})

	logger.Info("info message")
	logger.Warn("warn message")

	if a.records != 2 {
		t.Errorf("Expected permissive handler to see 2 records, got %d", a.records)
	}
	if b.records != 1 {
		t.Errorf("Expected strict handler to see 1 record, got %d", b.records)
	}
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory available")
	}

	tests := []struct {
		path string
		want string
	}{
		{"~/logs", filepath.Join(home, "logs")},
		{"/var/log/rutopia", "/var/log/rutopia"},
		{"relative/path", "relative/path"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := expandPath(tt.path); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
