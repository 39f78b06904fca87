package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsUsable(t *testing.T) {
	cfg := Default()
	if cfg.Workers <= 0 {
		t.Fatal("default workers must be positive")
	}
	if cfg.LeaseTimeout() != 5*time.Second {
		t.Fatalf("got %v, want 5s", cfg.LeaseTimeout())
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hark.yaml")
	content := `
workers: 8
step_budget: 500
lease_timeout_ms: 1000
remote:
  workers: 2
  latency_ms: 50
  drop_rate: 0.1
  seed: 42
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 8 {
		t.Fatalf("workers: got %d, want 8", cfg.Workers)
	}
	if cfg.StepBudget != 500 {
		t.Fatalf("step_budget: got %d, want 500", cfg.StepBudget)
	}
	if cfg.LeaseTimeout() != time.Second {
		t.Fatalf("lease_timeout: got %v, want 1s", cfg.LeaseTimeout())
	}
	if cfg.Remote == nil || cfg.Remote.Workers != 2 || cfg.Remote.DropRate != 0.1 {
		t.Fatalf("remote config not parsed correctly: %+v", cfg.Remote)
	}
	if cfg.Remote.Latency() != 50*time.Millisecond {
		t.Fatalf("remote latency: got %v, want 50ms", cfg.Remote.Latency())
	}
	// poll_interval_ms was not overridden: default should survive.
	if cfg.PollInterval() != 10*time.Millisecond {
		t.Fatalf("poll_interval should retain default, got %v", cfg.PollInterval())
	}
}

func TestLoadRejectsNonPositiveWorkers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hark.yaml")
	if err := os.WriteFile(path, []byte("workers: 0\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for workers: 0")
	}
}
