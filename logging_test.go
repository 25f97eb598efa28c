package main

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"flickrgallery/config"
)

func TestLogFileNameRoundTrip(t *testing.T) {
	when := time.Date(2026, time.January, 22, 23, 59, 0, 0, time.UTC)
	name := logFileNameForDate(when)
	if name != "gallery-2026-01-22.log" {
		t.Fatalf("expected gallery-2026-01-22.log, got %q", name)
	}
	parsed, ok := parseLogFileDate(name)
	if !ok || parsed.Day() != 22 || parsed.Month() != time.January {
		t.Fatalf("unexpected parse of %s: %v %v", name, parsed, ok)
	}
	for _, other := range []string{"notes.txt", "2026-01-22.log", "gallery-today.log"} {
		if _, ok := parseLogFileDate(other); ok {
			t.Fatalf("expected %s to be rejected", other)
		}
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"gallery-2026-01-20.log", "gallery-2026-01-21.log", "gallery-2026-01-22.log", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	now := time.Date(2026, time.January, 22, 12, 0, 0, 0, time.UTC)
	if err := cleanupOldLogs(dir, now, 2); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "gallery-2026-01-20.log")); !os.IsNotExist(err) {
		t.Fatalf("expected oldest log to be removed, stat err=%v", err)
	}
	for _, name := range []string{"gallery-2026-01-21.log", "gallery-2026-01-22.log", "notes.txt"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to remain: %v", name, err)
		}
	}
}

func TestDailyFileSinkRotatesByDate(t *testing.T) {
	dir := t.TempDir()
	sink, err := newDailyFileSink(dir, 30)
	if err != nil {
		t.Fatalf("newDailyFileSink: %v", err)
	}
	defer sink.Close()

	day1 := time.Date(2026, time.January, 22, 12, 0, 0, 0, time.UTC)
	sink.WriteLine("first", day1)
	sink.WriteLine("second", day1.Add(24*time.Hour))

	for name, want := range map[string]string{
		"gallery-2026-01-22.log": "first",
		"gallery-2026-01-23.log": "second",
	} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if !strings.Contains(string(data), want) {
			t.Fatalf("%s: expected %q, got %q", name, want, data)
		}
	}
}

func TestFanoutSplitsLines(t *testing.T) {
	var console bytes.Buffer
	fanout, err := setupLogging(config.LoggingConfig{Enabled: true, Dir: t.TempDir(), RetentionDays: 1}, &console)
	if err != nil {
		t.Fatalf("setupLogging: %v", err)
	}
	defer fanout.Close()

	logger := log.New(fanout, "", 0)
	logger.Print("gallery: one")
	_, _ = fanout.Write([]byte("gallery: two\r\ngallery: par"))
	_, _ = fanout.Write([]byte("tial\n"))

	out := console.String()
	for _, want := range []string{"gallery: one\n", "gallery: two\n", "gallery: partial\n"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in console output %q", want, out)
		}
	}
	if strings.Contains(out, "\r") {
		t.Fatalf("carriage return leaked: %q", out)
	}
}

func TestSetupLoggingDisabledFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	fanout, err := setupLogging(config.LoggingConfig{Enabled: false, Dir: dir}, &bytes.Buffer{})
	if err != nil {
		t.Fatalf("setupLogging: %v", err)
	}
	_, _ = fanout.Write([]byte("hello\n"))
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected no log directory when file logging is disabled")
	}
}
