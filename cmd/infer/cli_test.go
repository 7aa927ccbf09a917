package main

import "testing"

func TestParseArgsSplitsPositionalAndFlags(t *testing.T) {
	positional, flags := parseArgs([]string{
		"a.bin", "a.json", "sub_401000",
		"-config", "cfg.yaml",
		"-debug-dir", "/tmp/dbg",
		"-out", "out.bin",
	})

	want := []string{"a.bin", "a.json", "sub_401000"}
	if len(positional) != len(want) {
		t.Fatalf("expected %d positional args, got %d (%v)", len(want), len(positional), positional)
	}
	for i, v := range want {
		if positional[i] != v {
			t.Errorf("positional[%d] = %q, want %q", i, positional[i], v)
		}
	}

	if flags.configPath != "cfg.yaml" {
		t.Errorf("configPath = %q, want cfg.yaml", flags.configPath)
	}
	if flags.debugDir != "/tmp/dbg" {
		t.Errorf("debugDir = %q, want /tmp/dbg", flags.debugDir)
	}
	if flags.outPath != "out.bin" {
		t.Errorf("outPath = %q, want out.bin", flags.outPath)
	}
}

func TestParseArgsWithNoFlags(t *testing.T) {
	positional, flags := parseArgs([]string{"a.bin", "a.json"})
	if len(positional) != 2 {
		t.Fatalf("expected 2 positional args, got %d", len(positional))
	}
	if flags.configPath != "" || flags.debugDir != "" || flags.outPath != "" {
		t.Errorf("expected zero-value flags, got %+v", flags)
	}
}

func TestSanitizeGraphNameReplacesInvalidCharacters(t *testing.T) {
	got := sanitizeGraphName("sub.401000@plt")
	want := "sub_401000_plt"
	if got != want {
		t.Errorf("sanitizeGraphName() = %q, want %q", got, want)
	}
}

func TestSanitizeGraphNameEmptyInputFallsBackToDefault(t *testing.T) {
	if got := sanitizeGraphName(""); got != "sketch" {
		t.Errorf("sanitizeGraphName(\"\") = %q, want \"sketch\"", got)
	}
}
