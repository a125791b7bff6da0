package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/quarry-dev/agentrun/internal/command"
)

// Policy configures retry-on-transient-failure behavior.
type Policy struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int

	// Delay is the pause between attempts when NewBackoff is nil.
	Delay time.Duration

	// RetryableErrors are matched case-insensitively against Result.Err. A
	// result whose Err matches none of them is returned immediately. Timeouts
	// surface as "timed out" and are retried only when listed here.
	RetryableErrors []string

	// NewBackoff, when set, supplies a fresh backoff schedule per command,
	// replacing the fixed Delay. Any backoff.BackOff works; a negative
	// NextBackOff stops early.
	NewBackoff func() backoff.BackOff
}

// DefaultPolicy retries network hiccups with a fixed one-second delay.
// Timeouts are deliberately not retryable by default.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		Delay:      time.Second,
		RetryableErrors: []string{
			"connection reset",
			"connection refused",
			"connection timed out",
			"temporarily unavailable",
		},
	}
}

// normalize fills unset policy fields from DefaultPolicy.
func (p Policy) normalize() Policy {
	def := DefaultPolicy()
	if p.MaxRetries <= 0 {
		p.MaxRetries = def.MaxRetries
	}
	if p.Delay <= 0 {
		p.Delay = def.Delay
	}
	if len(p.RetryableErrors) == 0 {
		p.RetryableErrors = def.RetryableErrors
	}
	return p
}

// retryable reports whether the result's failure class is worth another
// attempt.
func (p Policy) retryable(res command.Result) bool {
	if !res.Failed() || res.Err == "" {
		return false
	}
	err := strings.ToLower(res.Err)
	for _, code := range p.RetryableErrors {
		if strings.Contains(err, strings.ToLower(code)) {
			return true
		}
	}
	return false
}

// Retry wraps a Runner with bounded retry. Non-retryable outcomes, success
// included, pass straight through.
type Retry struct {
	inner  Runner
	policy Policy
	logger *slog.Logger
}

// NewRetry wraps inner with the given policy.
func NewRetry(inner Runner, policy Policy, logger *slog.Logger) *Retry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retry{inner: inner, policy: policy.normalize(), logger: logger}
}

// Execute delegates to the inner runner, retrying transient failures up to
// MaxRetries extra times. After exhaustion the last result is returned with
// its Err marked accordingly.
func (r *Retry) Execute(ctx context.Context, cmd command.Command) command.Result {
	var schedule backoff.BackOff
	if r.policy.NewBackoff != nil {
		schedule = r.policy.NewBackoff()
	} else {
		schedule = backoff.NewConstantBackOff(r.policy.Delay)
	}

	var res command.Result
	for attempt := 0; ; attempt++ {
		res = r.inner.Execute(ctx, cmd)
		if !r.policy.retryable(res) {
			return res
		}
		if attempt >= r.policy.MaxRetries {
			res.Err = fmt.Sprintf("retries exhausted after %d attempts: %s", attempt+1, res.Err)
			return res
		}

		delay := schedule.NextBackOff()
		if delay < 0 {
			res.Err = fmt.Sprintf("backoff stopped after %d attempts: %s", attempt+1, res.Err)
			return res
		}
		r.logger.Debug("retrying command",
			"command", cmd.Text,
			"attempt", attempt+1,
			"delay", delay,
			"error", res.Err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			res.Err = fmt.Sprintf("retry interrupted: %v (last error: %s)", ctx.Err(), res.Err)
			return res
		}
	}
}

var _ Runner = (*Retry)(nil)
var _ Runner = (*Executor)(nil)
