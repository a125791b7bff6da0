// Package config handles agentrun configuration parsing and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"gopkg.in/yaml.v3"

	"github.com/quarry-dev/agentrun/internal/command"
	"github.com/quarry-dev/agentrun/internal/executor"
)

// Config represents the agentrun.yaml configuration file. Flag values
// override it at the call site; per-task options override both.
type Config struct {
	Version   string                  `yaml:"version"`
	Executor  ExecutorConfig          `yaml:"executor"`
	Retry     RetryConfig             `yaml:"retry"`
	Scheduler SchedulerConfig         `yaml:"scheduler"`
	Preflight PreflightConfig         `yaml:"preflight"`
	Validator command.ValidatorConfig `yaml:"validator,omitempty"`
	History   HistoryConfig           `yaml:"history"`
}

// ExecutorConfig sets the global execution defaults.
type ExecutorConfig struct {
	SafeOnly      bool   `yaml:"safe_only"`
	Timeout       string `yaml:"timeout,omitempty"`
	MaxOutputSize int64  `yaml:"max_output_size,omitempty"`
	Shell         string `yaml:"shell,omitempty"`
	Dir           string `yaml:"cwd,omitempty"`
}

// RetryConfig controls the retry wrapper.
type RetryConfig struct {
	Enabled         bool     `yaml:"enabled"`
	MaxRetries      int      `yaml:"max_retries,omitempty"`
	Delay           string   `yaml:"delay,omitempty"`
	RetryableErrors []string `yaml:"retryable_errors,omitempty"`
	Backoff         string   `yaml:"backoff,omitempty"` // fixed, exponential
}

// SchedulerConfig controls how a batch is run.
type SchedulerConfig struct {
	Mode          string `yaml:"mode"` // sequential, levels
	StopOnFailure bool   `yaml:"stop_on_failure"`
	MaxParallel   int    `yaml:"max_parallel,omitempty"`
}

// PreflightConfig selects the review gate.
type PreflightConfig struct {
	Mode string `yaml:"mode"` // auto, policy, deny, none
}

// HistoryConfig controls run-history persistence.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Executor: ExecutorConfig{
			SafeOnly: false,
		},
		Retry: RetryConfig{
			Enabled: false,
			Backoff: "fixed",
		},
		Scheduler: SchedulerConfig{
			Mode:          "levels",
			StopOnFailure: true,
			MaxParallel:   4,
		},
		Preflight: PreflightConfig{
			Mode: "policy",
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    filepath.Join(".agentrun", "history.db"),
		},
	}
}

// Load reads and parses the agentrun.yaml config file. A missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "agentrun.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Scheduler.Mode {
	case "sequential", "levels":
	default:
		return fmt.Errorf("invalid scheduler mode: %s (must be sequential or levels)", c.Scheduler.Mode)
	}

	switch c.Preflight.Mode {
	case "auto", "policy", "deny", "none":
	default:
		return fmt.Errorf("invalid preflight mode: %s (must be auto, policy, deny, or none)", c.Preflight.Mode)
	}

	switch c.Retry.Backoff {
	case "", "fixed", "exponential":
	default:
		return fmt.Errorf("invalid backoff: %s (must be fixed or exponential)", c.Retry.Backoff)
	}

	if c.Scheduler.MaxParallel < 0 {
		return fmt.Errorf("max_parallel must not be negative")
	}

	if _, err := c.ExecutorDefaults(); err != nil {
		return err
	}
	if _, err := c.RetryPolicy(); err != nil {
		return err
	}
	return nil
}

// ExecutorDefaults materializes the global options layer.
func (c *Config) ExecutorDefaults() (command.Options, error) {
	opts := command.Options{
		Dir:           c.Executor.Dir,
		MaxOutputSize: c.Executor.MaxOutputSize,
		Shell:         c.Executor.Shell,
	}
	if c.Executor.Timeout != "" {
		d, err := time.ParseDuration(c.Executor.Timeout)
		if err != nil {
			return opts, fmt.Errorf("parsing executor timeout %q: %w", c.Executor.Timeout, err)
		}
		opts.Timeout = d
	}
	return opts, nil
}

// RetryPolicy materializes the retry policy.
func (c *Config) RetryPolicy() (executor.Policy, error) {
	policy := executor.Policy{
		MaxRetries:      c.Retry.MaxRetries,
		RetryableErrors: c.Retry.RetryableErrors,
	}
	if c.Retry.Delay != "" {
		d, err := time.ParseDuration(c.Retry.Delay)
		if err != nil {
			return policy, fmt.Errorf("parsing retry delay %q: %w", c.Retry.Delay, err)
		}
		policy.Delay = d
	}
	if c.Retry.Backoff == "exponential" {
		policy.NewBackoff = func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		}
	}
	return policy, nil
}
