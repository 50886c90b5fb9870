// Package runconfig implements the orchestrator's YAML-backed configuration,
// grounded on the teacher's internal/config/config.go: a DefaultConfig,
// file-plus-environment-variable loading where env vars win, and a
// Validate pass that rejects structurally invalid values before a run
// starts.
package runconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// BudgetConfig bounds a run's steps/time/calls, mirroring
// orchestrator.RuntimeBudget's three limits. Zero means "not advertised".
type BudgetConfig struct {
	MaxSteps      int64 `yaml:"max_steps"`
	MaxDurationMs int64 `yaml:"max_duration_ms"`
	MaxCalls      int64 `yaml:"max_calls"`
}

// RepairConfig controls the self-repair loop.
type RepairConfig struct {
	Enabled     bool   `yaml:"enabled"`
	MaxAttempts int    `yaml:"max_attempts"`
	SmokeURL    string `yaml:"smoke_url"` // L2 Playwright smoke target; empty skips L2
}

// StoreConfig selects and configures the file store backend.
type StoreConfig struct {
	Backend    string `yaml:"backend"` // "memory" or "sqlite"
	SQLitePath string `yaml:"sqlite_path"`
}

// AgentConfig configures the CLI-driven LLM client.
type AgentConfig struct {
	BinaryPath   string        `yaml:"binary_path"`
	Timeout      time.Duration `yaml:"timeout"`
	SystemPrompt string        `yaml:"system_prompt"`
}

// Config is the orchestrator's top-level runtime configuration.
type Config struct {
	MaxConcurrency int           `yaml:"max_concurrency"`
	Timeout        time.Duration `yaml:"timeout"`
	LogLevel       string        `yaml:"log_level"`
	LogDir         string        `yaml:"log_dir"`
	DryRun         bool          `yaml:"dry_run"`

	Budget BudgetConfig `yaml:"budget"`
	Repair RepairConfig `yaml:"repair"`
	Store  StoreConfig  `yaml:"store"`
	Agent  AgentConfig  `yaml:"agent"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrency: 4,
		Timeout:        10 * time.Hour,
		LogLevel:       "info",
		LogDir:         ".conductor-run/logs",
		DryRun:         false,
		Budget: BudgetConfig{
			MaxSteps:      200,
			MaxDurationMs: int64((30 * time.Minute).Milliseconds()),
			MaxCalls:      500,
		},
		Repair: RepairConfig{Enabled: true, MaxAttempts: 3},
		Store:  StoreConfig{Backend: "memory"},
		Agent: AgentConfig{
			Timeout: 5 * time.Minute,
		},
	}
}

// envOverrides are applied after file load, highest priority, mirroring
// the teacher's applyConsoleEnvOverrides convention.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CONDUCTOR_RUN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CONDUCTOR_RUN_LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("CONDUCTOR_RUN_DRY_RUN"); v != "" {
		cfg.DryRun = v == "true" || v == "1"
	}
	if v := os.Getenv("CONDUCTOR_RUN_AGENT_BINARY"); v != "" {
		cfg.Agent.BinaryPath = v
	}
}

// LoadConfig loads cfg from path, starting from DefaultConfig and
// overlaying whatever the file sets; a missing file is not an error. Any
// field the YAML document sets replaces its default, even when the value
// set is a zero value; omit a field from the YAML document to keep its
// default.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		applyEnvOverrides(cfg)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("runconfig: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("runconfig: parse %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// Validate rejects structurally invalid configuration before a run starts.
func (c *Config) Validate() error {
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("runconfig: max_concurrency must be >= 0, got %d", c.MaxConcurrency)
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("runconfig: invalid log_level %q", c.LogLevel)
	}

	if c.Timeout < 0 {
		return fmt.Errorf("runconfig: timeout must be >= 0, got %v", c.Timeout)
	}

	if c.Repair.Enabled && c.Repair.MaxAttempts <= 0 {
		return fmt.Errorf("runconfig: repair.max_attempts must be > 0 when repair is enabled, got %d", c.Repair.MaxAttempts)
	}

	switch c.Store.Backend {
	case "memory":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("runconfig: store.sqlite_path is required when store.backend is 'sqlite'")
		}
	default:
		return fmt.Errorf("runconfig: store.backend must be 'memory' or 'sqlite', got %q", c.Store.Backend)
	}

	return nil
}
