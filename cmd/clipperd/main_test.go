package main

import (
	"path/filepath"
	"testing"

	"clipforge/internal/config"
)

func TestJournalPath(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")

	expected := filepath.Join(cfg.Paths.LogDir, "clipforge.db")
	if got := journalPath(&cfg); got != expected {
		t.Fatalf("expected journal path %q, got %q", expected, got)
	}

	if got := journalPath(nil); got != filepath.Join("", "clipforge.db") {
		t.Fatalf("expected default journal path, got %q", got)
	}
}

func TestLockPath(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")

	expected := filepath.Join(cfg.Paths.LogDir, "clipperd.lock")
	if got := lockPath(&cfg); got != expected {
		t.Fatalf("expected lock path %q, got %q", expected, got)
	}

	if got := lockPath(nil); got != filepath.Join("", "clipperd.lock") {
		t.Fatalf("expected default lock path, got %q", got)
	}
}

func TestExitCodesMatchSpec(t *testing.T) {
	if exitOK != 0 || exitConfigError != 1 || exitRuntimeError != 2 || exitCancelledBySignal != 130 {
		t.Fatalf("exit codes drifted from spec.md §6: ok=%d config=%d runtime=%d signal=%d",
			exitOK, exitConfigError, exitRuntimeError, exitCancelledBySignal)
	}
}
