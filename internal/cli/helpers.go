package cli

import (
	"fmt"

	"github.com/quarry-dev/agentrun/internal/command"
	"github.com/quarry-dev/agentrun/internal/config"
	"github.com/quarry-dev/agentrun/internal/executor"
	"github.com/quarry-dev/agentrun/internal/preflight"
)

// buildRunner assembles the validator, executor, and optional retry wrapper
// from configuration.
func buildRunner(cfg *config.Config) (executor.Runner, *command.Validator, error) {
	defaults, err := cfg.ExecutorDefaults()
	if err != nil {
		return nil, nil, err
	}

	validator := command.NewValidator(cfg.Validator)
	exe := executor.New(validator, executor.Config{
		SafeOnly: cfg.Executor.SafeOnly,
		Defaults: defaults,
	}, logger)

	var runner executor.Runner = exe
	if cfg.Retry.Enabled {
		policy, err := cfg.RetryPolicy()
		if err != nil {
			return nil, nil, err
		}
		runner = executor.NewRetry(exe, policy, logger)
	}
	return runner, validator, nil
}

// buildGate maps the configured preflight mode to a gate. The second return
// is true when running without review was explicitly requested.
func buildGate(cfg *config.Config, validator *command.Validator) (preflight.Gate, bool, error) {
	switch cfg.Preflight.Mode {
	case "auto":
		return preflight.AutoApprove{}, false, nil
	case "policy":
		return preflight.PolicyGate{Validator: validator}, false, nil
	case "deny":
		return preflight.Deny{}, false, nil
	case "none":
		return nil, true, nil
	default:
		return nil, false, fmt.Errorf("unknown preflight mode: %s", cfg.Preflight.Mode)
	}
}
