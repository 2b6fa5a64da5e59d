package config

import (
	"os"
	"path/filepath"
	"testing"

	"subpilot/internal/shared/types"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadIni_MapsSectionsAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "subpilot.ini", `
[log]
level = debug

[probe]
concurrency = 5

[select]
max_per_type = 2
`)

	cfg := new(types.Config)
	if err := LoadIni(cfg, path); err != nil {
		t.Fatalf("LoadIni failed: %v", err)
	}

	if cfg.LogConf.Level != "debug" {
		t.Errorf("expected level debug, got %q", cfg.LogConf.Level)
	}
	if cfg.ProbeConf.Concurrency != 5 {
		t.Errorf("expected concurrency 5, got %d", cfg.ProbeConf.Concurrency)
	}
	if cfg.SelectConf.MaxPerType != 2 {
		t.Errorf("expected max_per_type 2, got %d", cfg.SelectConf.MaxPerType)
	}

	// Unset values must pick up defaults.
	if cfg.FetchConf.TimeoutSeconds != 8 {
		t.Errorf("expected default fetch timeout 8, got %d", cfg.FetchConf.TimeoutSeconds)
	}
	if cfg.ProbeConf.Estimator != "reconnect" {
		t.Errorf("expected default estimator reconnect, got %q", cfg.ProbeConf.Estimator)
	}
	if cfg.OutputConf.Path != "sing-box-config.json" {
		t.Errorf("expected default output path, got %q", cfg.OutputConf.Path)
	}
}

func TestLoadIni_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "subpilot.ini", "[log]\nlevel = info\n")

	t.Setenv("SUBPILOT_LOG_LEVEL", "warn")
	t.Setenv("SUBPILOT_OUTPUT_PATH", "/tmp/alt.json")

	cfg := new(types.Config)
	if err := LoadIni(cfg, path); err != nil {
		t.Fatalf("LoadIni failed: %v", err)
	}

	if cfg.LogConf.Level != "warn" {
		t.Errorf("env override lost: level %q", cfg.LogConf.Level)
	}
	if cfg.OutputConf.Path != "/tmp/alt.json" {
		t.Errorf("env override lost: path %q", cfg.OutputConf.Path)
	}
}

func TestLoadIni_MissingFile(t *testing.T) {
	cfg := new(types.Config)
	if err := LoadIni(cfg, filepath.Join(t.TempDir(), "absent.ini")); err == nil {
		t.Fatal("expected an error for a missing behavior config")
	}
}

func TestLoadSources(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "sources.json", `[
		{"url": "http://example.com/a.json"},
		{"url": "http://example.com/b.txt", "format": "text"}
	]`)

	sources, err := LoadSources(path)
	if err != nil {
		t.Fatalf("LoadSources failed: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[1].Format != "text" {
		t.Errorf("expected format hint to survive, got %q", sources[1].Format)
	}
}

func TestLoadSources_MissingFileYieldsEmptyList(t *testing.T) {
	sources, err := LoadSources(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("missing sources file must not error, got %v", err)
	}
	if len(sources) != 0 {
		t.Fatalf("expected empty list, got %d", len(sources))
	}
}

func TestModernProtocolList(t *testing.T) {
	cfg := types.SelectConf{ModernProtocols: " hysteria2, vmess ,,trojan "}
	got := cfg.ModernProtocolList()
	want := []string{"hysteria2", "vmess", "trojan"}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, got[i], want[i])
		}
	}
}
