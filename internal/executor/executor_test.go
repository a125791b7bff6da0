package executor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/quarry-dev/agentrun/internal/command"
)

func newTestExecutor(t *testing.T, cfg Config) *Executor {
	t.Helper()
	return New(command.NewValidator(command.ValidatorConfig{}), cfg, nil)
}

func TestExecuteCapturesOutput(t *testing.T) {
	e := newTestExecutor(t, Config{})

	res := e.Execute(context.Background(), command.Command{Text: "echo hello world"})

	if res.Failed() {
		t.Fatalf("echo failed: exit=%d err=%q", res.ExitCode, res.Err)
	}
	if got := strings.TrimSpace(res.Stdout); got != "hello world" {
		t.Errorf("Stdout = %q, want %q", got, "hello world")
	}
	if res.Stderr != "" {
		t.Errorf("Stderr = %q, want empty", res.Stderr)
	}
	if res.Duration <= 0 {
		t.Error("Duration not recorded")
	}
	if res.Command != "echo hello world" {
		t.Errorf("Command = %q, want original text", res.Command)
	}
}

func TestExecuteQuotedArguments(t *testing.T) {
	e := newTestExecutor(t, Config{})

	res := e.Execute(context.Background(), command.Command{Text: `echo "one two" three`})
	if res.Failed() {
		t.Fatalf("echo failed: %q", res.Err)
	}
	if got := strings.TrimSpace(res.Stdout); got != "one two three" {
		t.Errorf("Stdout = %q, want quoted arg preserved", got)
	}
}

func TestExecuteNonzeroExit(t *testing.T) {
	e := newTestExecutor(t, Config{})

	res := e.Execute(context.Background(), command.Command{
		Text:    "false",
		Options: command.Options{Shell: "/bin/sh"},
	})

	if res.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", res.ExitCode)
	}
	// A plain nonzero exit is not an execution error.
	if res.Err != "" {
		t.Errorf("Err = %q, want empty for nonzero exit", res.Err)
	}
	if !res.Failed() {
		t.Error("Failed() = false for nonzero exit")
	}
}

func TestExecuteTimeout(t *testing.T) {
	e := newTestExecutor(t, Config{KillGrace: 500 * time.Millisecond})

	start := time.Now()
	res := e.Execute(context.Background(), command.Command{
		Text:    "sleep 10",
		Options: command.Options{Timeout: 100 * time.Millisecond},
	})
	elapsed := time.Since(start)

	if !res.TimedOut {
		t.Fatal("TimedOut = false, want true")
	}
	if res.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", res.ExitCode)
	}
	if !strings.Contains(res.Err, "timed out") {
		t.Errorf("Err = %q, want timeout message", res.Err)
	}
	if elapsed > 3*time.Second {
		t.Errorf("timeout took %v, escalation did not fire", elapsed)
	}
}

func TestExecuteOutputCap(t *testing.T) {
	e := newTestExecutor(t, Config{})

	res := e.Execute(context.Background(), command.Command{
		Text:    "yes x | head -c 65536",
		Options: command.Options{Shell: "/bin/sh", MaxOutputSize: 1024},
	})

	if res.Failed() {
		t.Fatalf("command failed: exit=%d err=%q", res.ExitCode, res.Err)
	}
	if len(res.Stdout) != 1024 {
		t.Errorf("len(Stdout) = %d, want capped at 1024", len(res.Stdout))
	}
}

func TestExecuteCaptureDisabled(t *testing.T) {
	e := newTestExecutor(t, Config{})

	res := e.Execute(context.Background(), command.Command{
		Text:    "echo hello",
		Options: command.Options{CaptureStdout: command.Bool(false)},
	})

	if res.Failed() {
		t.Fatalf("echo failed: %q", res.Err)
	}
	if res.Stdout != "" {
		t.Errorf("Stdout = %q, want empty with capture disabled", res.Stdout)
	}
}

func TestExecuteEnvMerge(t *testing.T) {
	t.Setenv("AGENTRUN_TEST_BASE", "parent")
	e := newTestExecutor(t, Config{})

	res := e.Execute(context.Background(), command.Command{
		Text: "echo $AGENTRUN_TEST_BASE $AGENTRUN_TEST_EXTRA",
		Options: command.Options{
			Shell: "/bin/sh",
			Env:   map[string]string{"AGENTRUN_TEST_EXTRA": "child"},
		},
	})

	if res.Failed() {
		t.Fatalf("command failed: %q", res.Err)
	}
	if got := strings.TrimSpace(res.Stdout); got != "parent child" {
		t.Errorf("Stdout = %q, want parent env inherited and extra appended", got)
	}
}

func TestExecuteEnvOverride(t *testing.T) {
	t.Setenv("AGENTRUN_TEST_VAR", "parent")
	e := newTestExecutor(t, Config{})

	res := e.Execute(context.Background(), command.Command{
		Text: "echo $AGENTRUN_TEST_VAR",
		Options: command.Options{
			Shell: "/bin/sh",
			Env:   map[string]string{"AGENTRUN_TEST_VAR": "child"},
		},
	})

	if res.Failed() {
		t.Fatalf("command failed: %q", res.Err)
	}
	if got := strings.TrimSpace(res.Stdout); got != "child" {
		t.Errorf("Stdout = %q, want option env to win on collision", got)
	}
}

func TestExecuteSpawnFailure(t *testing.T) {
	e := newTestExecutor(t, Config{})

	res := e.Execute(context.Background(), command.Command{
		Text: "definitely-not-a-real-binary-3141",
	})

	if res.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1 for spawn failure", res.ExitCode)
	}
	if res.Err == "" {
		t.Error("Err empty, want spawn failure recorded")
	}
}

func TestExecuteBadWorkingDirectory(t *testing.T) {
	e := newTestExecutor(t, Config{})

	res := e.Execute(context.Background(), command.Command{
		Text:    "echo hi",
		Options: command.Options{Dir: "/does/not/exist-3141"},
	})

	if res.ExitCode != -1 || res.Err == "" {
		t.Errorf("got exit=%d err=%q, want spawn failure", res.ExitCode, res.Err)
	}
}

func TestExecuteRejectedCommand(t *testing.T) {
	e := newTestExecutor(t, Config{})

	res := e.Execute(context.Background(), command.Command{Text: "rm -rf /"})

	if res.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", res.ExitCode)
	}
	if !strings.Contains(res.Err, "command rejected") {
		t.Errorf("Err = %q, want rejection encoded in result", res.Err)
	}
}

func TestExecuteSafeOnly(t *testing.T) {
	e := newTestExecutor(t, Config{SafeOnly: true})

	res := e.Execute(context.Background(), command.Command{Text: "shutdown -h now"})
	if !strings.Contains(res.Err, "command rejected") {
		t.Errorf("Err = %q, want safe-list rejection", res.Err)
	}

	res = e.Execute(context.Background(), command.Command{Text: "echo ok"})
	if res.Failed() {
		t.Errorf("allow-listed command failed: %q", res.Err)
	}
}

func TestExecuteStripsChaining(t *testing.T) {
	e := newTestExecutor(t, Config{})

	// In argv mode "echo a && echo b" must not chain; the metacharacters are
	// stripped and everything lands in echo's argv.
	res := e.Execute(context.Background(), command.Command{Text: "echo a && echo b"})
	if res.Failed() {
		t.Fatalf("command failed: %q", res.Err)
	}
	if got := strings.TrimSpace(res.Stdout); got != "a echo b" {
		t.Errorf("Stdout = %q, want chaining neutralized", got)
	}
}

func TestExecuteDefaultsLayer(t *testing.T) {
	e := newTestExecutor(t, Config{
		Defaults: command.Options{Timeout: 50 * time.Millisecond},
	})

	res := e.Execute(context.Background(), command.Command{
		Text:    "sleep 5",
		Options: command.Options{Shell: "/bin/sh"},
	})
	if !res.TimedOut {
		t.Error("global default timeout not applied")
	}

	// Call-site timeout wins over the global default.
	res = e.Execute(context.Background(), command.Command{
		Text:    "sleep 0.01",
		Options: command.Options{Shell: "/bin/sh", Timeout: 5 * time.Second},
	})
	if res.TimedOut {
		t.Error("call-site timeout did not override the default")
	}
}

func TestCapWriter(t *testing.T) {
	w := newCapWriter(5)

	n, err := w.Write([]byte("abc"))
	if n != 3 || err != nil {
		t.Fatalf("Write = %d, %v", n, err)
	}
	n, err = w.Write([]byte("defgh"))
	if n != 5 || err != nil {
		t.Fatalf("Write past cap = %d, %v; must report full length", n, err)
	}

	if got := w.String(); got != "abcde" {
		t.Errorf("String() = %q, want first 5 bytes kept", got)
	}
	if !w.Truncated() {
		t.Error("Truncated() = false after overflow")
	}
}
