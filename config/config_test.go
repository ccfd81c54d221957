package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAMLWithDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
dispatch:
  workers: 8
match:
  max_doublings: 3
audit:
  backend: jsonl
  path: /tmp/audit.jsonl
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dispatch.Workers != 8 {
		t.Fatalf("workers: %d", cfg.Dispatch.Workers)
	}
	if cfg.Match.MaxDoublings != 3 {
		t.Fatalf("max doublings: %d", cfg.Match.MaxDoublings)
	}
	// Untouched sections fall back to defaults.
	if cfg.Dispatch.MaxMatchFailures != 3 {
		t.Fatalf("default max match failures: %d", cfg.Dispatch.MaxMatchFailures)
	}
	if cfg.Match.DistanceWeight != 0.5 {
		t.Fatalf("default distance weight: %v", cfg.Match.DistanceWeight)
	}
	if cfg.Audit.Backend != "jsonl" {
		t.Fatalf("audit backend: %s", cfg.Audit.Backend)
	}
	if cfg.Alert.QueueSize != 256 {
		t.Fatalf("default alert queue size: %d", cfg.Alert.QueueSize)
	}
}

func TestLoadJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{"dispatch": {"workers": 2}}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dispatch.Workers != 2 {
		t.Fatalf("workers: %d", cfg.Dispatch.Workers)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("HA_DISPATCH__WORKERS", "16")
	t.Setenv("HA_AUDIT__BACKEND", "jsonl")

	path := writeConfig(t, "config.yaml", `
dispatch:
  workers: 4
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dispatch.Workers != 16 {
		t.Fatalf("env override lost: %d", cfg.Dispatch.Workers)
	}
	if cfg.Audit.Backend != "jsonl" {
		t.Fatalf("env override lost: %s", cfg.Audit.Backend)
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := writeConfig(t, "config.toml", "workers = 4")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
dispatch:
  workers: -1
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadRejectsUnknownAuditBackend(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
audit:
  backend: postgres
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected audit backend error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
