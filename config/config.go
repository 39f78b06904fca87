// Package config loads the tuning knobs for a runtime instance — worker
// pool size, step budget, lease timeout, and simulated-remote dispatch
// parameters — from a YAML file. Grounded on the teacher's options/config
// loading convention (server options stored and loaded as structured data
// rather than flags alone) and the corpus's general use of
// gopkg.in/yaml.v3 for fixture and configuration data.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything scheduler and controller construction needs.
// Duration fields are expressed in YAML as milliseconds (plain integers)
// rather than Go duration strings, since yaml.v3 has no built-in
// time.Duration codec and the teacher's own config-like data is always
// plain scalars, never a type implementing a custom (un)marshaler.
type Config struct {
	Workers         int     `yaml:"workers"`
	StepBudget      int     `yaml:"step_budget"`
	LeaseTimeoutMS  int     `yaml:"lease_timeout_ms"`
	PollIntervalMS  int     `yaml:"poll_interval_ms"`

	// Remote simulates a distributed deployment for a subset of workers,
	// exercising lease loss and commit_step idempotence (spec.md P5).
	Remote *RemoteConfig `yaml:"remote,omitempty"`
}

// RemoteConfig tunes SimulatedRemoteInvoker.
type RemoteConfig struct {
	Workers    int     `yaml:"workers"`
	LatencyMS  int     `yaml:"latency_ms"`
	DropRate   float64 `yaml:"drop_rate"`
	Seed       int64   `yaml:"seed"`
}

func (c *Config) LeaseTimeout() time.Duration { return time.Duration(c.LeaseTimeoutMS) * time.Millisecond }
func (c *Config) PollInterval() time.Duration { return time.Duration(c.PollIntervalMS) * time.Millisecond }

func (r *RemoteConfig) Latency() time.Duration { return time.Duration(r.LatencyMS) * time.Millisecond }

// Default returns a single-process, no-drop configuration suitable for
// tests and small local runs.
func Default() *Config {
	return &Config{
		Workers:        4,
		StepBudget:     10000,
		LeaseTimeoutMS: 5000,
		PollIntervalMS: 10,
	}
}

// Load reads and parses a YAML config file, filling any field the file
// omits from Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("config: workers must be positive, got %d", cfg.Workers)
	}
	return cfg, nil
}
