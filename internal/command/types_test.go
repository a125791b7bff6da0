package command

import (
	"testing"
	"time"
)

func TestOptionsNormalize(t *testing.T) {
	o := Options{}.Normalize()
	if o.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", o.Timeout, DefaultTimeout)
	}
	if o.MaxOutputSize != DefaultMaxOutputSize {
		t.Errorf("MaxOutputSize = %d, want %d", o.MaxOutputSize, DefaultMaxOutputSize)
	}

	set := Options{Timeout: time.Minute, MaxOutputSize: 1024}.Normalize()
	if set.Timeout != time.Minute || set.MaxOutputSize != 1024 {
		t.Errorf("Normalize overwrote set fields: %+v", set)
	}

	// Negative timeout means no timeout; Normalize must leave it alone.
	if got := (Options{Timeout: -1}).Normalize(); got.Timeout != -1 {
		t.Errorf("Normalize replaced negative timeout with %v", got.Timeout)
	}
}

func TestOptionsMerge(t *testing.T) {
	base := Options{
		Dir:           "/base",
		Timeout:       time.Minute,
		Env:           map[string]string{"A": "base", "B": "base"},
		CaptureStdout: Bool(false),
		MaxOutputSize: 1024,
		Shell:         "/bin/sh",
	}
	over := Options{
		Timeout: 5 * time.Second,
		Env:     map[string]string{"B": "over", "C": "over"},
	}

	got := over.Merge(base)

	if got.Dir != "/base" {
		t.Errorf("Dir = %q, want inherited /base", got.Dir)
	}
	if got.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want call-site 5s", got.Timeout)
	}
	if got.Shell != "/bin/sh" {
		t.Errorf("Shell = %q, want inherited /bin/sh", got.Shell)
	}
	if got.MaxOutputSize != 1024 {
		t.Errorf("MaxOutputSize = %d, want inherited 1024", got.MaxOutputSize)
	}
	if got.CaptureStdout == nil || *got.CaptureStdout {
		t.Error("CaptureStdout not inherited from base")
	}
	want := map[string]string{"A": "base", "B": "over", "C": "over"}
	for k, v := range want {
		if got.Env[k] != v {
			t.Errorf("Env[%q] = %q, want %q", k, got.Env[k], v)
		}
	}

	// Merge must not mutate either input.
	if base.Env["B"] != "base" || over.Env["A"] != "" {
		t.Error("Merge mutated an input env map")
	}
}

func TestOptionsCapturing(t *testing.T) {
	out, errS := Options{}.Capturing()
	if !out || !errS {
		t.Errorf("zero Options capturing = %v, %v, want true, true", out, errS)
	}

	out, errS = Options{CaptureStdout: Bool(false), CaptureStderr: Bool(true)}.Capturing()
	if out || !errS {
		t.Errorf("capturing = %v, %v, want false, true", out, errS)
	}
}

func TestResultFailed(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want bool
	}{
		{"clean exit", Result{ExitCode: 0}, false},
		{"nonzero exit", Result{ExitCode: 1}, true},
		{"spawn failure", Result{ExitCode: -1, Err: "executable not found"}, true},
		{"error with zero exit", Result{Err: "timed out after 30s"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Failed(); got != tt.want {
				t.Errorf("Failed() = %v, want %v", got, tt.want)
			}
		})
	}
}
