package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

func TestLoadFillsDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug_dir: /tmp/debug\n"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DebugDir != "/tmp/debug" {
		t.Errorf("expected DebugDir to be set from file, got %q", cfg.DebugDir)
	}
	if len(cfg.AllocationSymbols) == 0 {
		t.Error("expected AllocationSymbols to keep its default when omitted from the file")
	}
	if cfg.InterestingVarPattern != `^sub_(\d+)$` {
		t.Errorf("expected default interesting var pattern, got %q", cfg.InterestingVarPattern)
	}
}

func TestValidateRejectsBadPattern(t *testing.T) {
	cfg := Default()
	cfg.InterestingVarPattern = "(unterminated"
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for an unparseable regex")
	}
}

func TestValidateRejectsOverlappingSymbolSets(t *testing.T) {
	cfg := Default()
	cfg.DeallocationSymbols = append(cfg.DeallocationSymbols, "malloc")
	if err := cfg.Validate(); err == nil {
		t.Error("expected an error when a symbol is both an allocator and a deallocator")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error loading a nonexistent file")
	}
}
