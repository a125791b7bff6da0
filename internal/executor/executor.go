// Package executor spawns OS processes for validated commands, enforcing
// timeouts with graceful-then-forced termination and bounding captured output.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"syscall"
	"time"

	"github.com/quarry-dev/agentrun/internal/command"
)

// KillGracePeriod is how long a timed-out process gets between SIGTERM and
// SIGKILL.
const KillGracePeriod = 2 * time.Second

// Runner executes one command and reports its outcome. Both Executor and
// Retry satisfy it, so callers can be handed either.
type Runner interface {
	Execute(ctx context.Context, cmd command.Command) command.Result
}

// Config controls an Executor.
type Config struct {
	// SafeOnly restricts commands to the validator's allow-list.
	SafeOnly bool

	// Defaults is the global options layer, applied under each command's own
	// options.
	Defaults command.Options

	// KillGrace overrides KillGracePeriod when positive.
	KillGrace time.Duration
}

// Executor runs commands as local child processes. Failures of any kind are
// encoded into the returned Result, never raised: callers inspect ExitCode
// and Err.
type Executor struct {
	validator *command.Validator
	cfg       Config
	logger    *slog.Logger
}

// New creates an Executor. The validator must not be nil.
func New(validator *command.Validator, cfg Config, logger *slog.Logger) *Executor {
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = KillGracePeriod
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{validator: validator, cfg: cfg, logger: logger}
}

// Execute validates, spawns, and collects output from one command. The call
// blocks until the process settles; run it in a goroutine for concurrency.
func (e *Executor) Execute(ctx context.Context, cmd command.Command) command.Result {
	start := time.Now()
	opts := cmd.Options.Merge(e.cfg.Defaults).Normalize()
	res := command.Result{ExitCode: -1, Command: cmd.Text}

	if err := e.validator.Validate(cmd.Text, e.cfg.SafeOnly); err != nil {
		res.Err = fmt.Sprintf("command rejected: %v", err)
		res.Duration = time.Since(start)
		e.logger.Warn("command rejected", "command", cmd.Text, "reason", err)
		return res
	}

	var name string
	var args []string
	if opts.Shell != "" {
		// Shell mode: the text is a shell program, passed through verbatim.
		name = opts.Shell
		args = []string{"-c", cmd.Text}
	} else {
		argv, err := command.Tokenize(command.Sanitize(cmd.Text))
		if err != nil {
			res.Err = fmt.Sprintf("tokenizing command: %v", err)
			res.Duration = time.Since(start)
			return res
		}
		if len(argv) == 0 {
			res.Err = "empty command after sanitizing"
			res.Duration = time.Since(start)
			return res
		}
		name, args = argv[0], argv[1:]
	}

	execCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	proc := exec.CommandContext(execCtx, name, args...)
	proc.Dir = opts.Dir
	proc.Env = mergeEnv(opts.Env)

	// Timeout escalation: SIGTERM on deadline, SIGKILL after the grace window.
	proc.Cancel = func() error {
		return proc.Process.Signal(syscall.SIGTERM)
	}
	proc.WaitDelay = e.cfg.KillGrace

	captureOut, captureErr := opts.Capturing()
	var stdout, stderr *capWriter
	if captureOut {
		stdout = newCapWriter(opts.MaxOutputSize)
		proc.Stdout = stdout
	}
	if captureErr {
		stderr = newCapWriter(opts.MaxOutputSize)
		proc.Stderr = stderr
	}

	e.logger.Debug("spawning command", "program", name, "dir", opts.Dir, "timeout", opts.Timeout)
	runErr := proc.Run()

	res.Duration = time.Since(start)
	if stdout != nil {
		res.Stdout = stdout.String()
	}
	if stderr != nil {
		res.Stderr = stderr.String()
	}

	timedOut := opts.Timeout > 0 && errors.Is(execCtx.Err(), context.DeadlineExceeded)

	switch {
	case runErr == nil:
		res.ExitCode = 0
	case timedOut:
		res.TimedOut = true
		res.ExitCode = -1
		res.Err = fmt.Sprintf("timed out after %s", opts.Timeout)
	default:
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			if res.ExitCode < 0 {
				// Killed by a signal.
				res.Err = runErr.Error()
			}
		} else {
			// Spawn failure: executable missing, permission denied, bad dir.
			res.ExitCode = -1
			res.Err = runErr.Error()
		}
	}

	if stdout != nil && stdout.Truncated() {
		e.logger.Debug("stdout truncated", "command", cmd.Text, "cap", opts.MaxOutputSize)
	}

	e.logger.Debug("command finished",
		"program", name,
		"exit_code", res.ExitCode,
		"timed_out", res.TimedOut,
		"duration", res.Duration,
	)
	return res
}

// mergeEnv layers extra entries over the parent environment; extras win on
// key collision. Keys are appended in sorted order so two runs with the same
// options see the same environment.
func mergeEnv(extra map[string]string) []string {
	if len(extra) == 0 {
		return nil // inherit parent environment
	}
	env := os.Environ()
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
