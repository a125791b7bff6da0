package cli

import (
	"testing"

	"github.com/quarry-dev/agentrun/internal/command"
	"github.com/quarry-dev/agentrun/internal/config"
	"github.com/quarry-dev/agentrun/internal/executor"
	"github.com/quarry-dev/agentrun/internal/preflight"
)

func TestBuildRunner(t *testing.T) {
	cfg := config.DefaultConfig()

	runner, validator, err := buildRunner(cfg)
	if err != nil {
		t.Fatalf("buildRunner: %v", err)
	}
	if validator == nil {
		t.Fatal("no validator returned")
	}
	if _, ok := runner.(*executor.Executor); !ok {
		t.Errorf("runner = %T, want bare executor when retry is disabled", runner)
	}

	cfg.Retry.Enabled = true
	runner, _, err = buildRunner(cfg)
	if err != nil {
		t.Fatalf("buildRunner with retry: %v", err)
	}
	if _, ok := runner.(*executor.Retry); !ok {
		t.Errorf("runner = %T, want retry wrapper when retry is enabled", runner)
	}
}

func TestBuildGate(t *testing.T) {
	validator := command.NewValidator(command.ValidatorConfig{})

	tests := []struct {
		mode            string
		want            any
		allowUnreviewed bool
	}{
		{"auto", preflight.AutoApprove{}, false},
		{"policy", preflight.PolicyGate{Validator: validator}, false},
		{"deny", preflight.Deny{}, false},
		{"none", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Preflight.Mode = tt.mode

			gate, allowUnreviewed, err := buildGate(cfg, validator)
			if err != nil {
				t.Fatalf("buildGate: %v", err)
			}
			if allowUnreviewed != tt.allowUnreviewed {
				t.Errorf("allowUnreviewed = %v, want %v", allowUnreviewed, tt.allowUnreviewed)
			}
			if tt.want == nil {
				if gate != nil {
					t.Errorf("gate = %T, want nil", gate)
				}
				return
			}
			if gate == nil {
				t.Fatal("gate = nil")
			}
		})
	}

	cfg := config.DefaultConfig()
	cfg.Preflight.Mode = "manual"
	if _, _, err := buildGate(cfg, validator); err == nil {
		t.Error("buildGate accepted an unknown mode")
	}
}
