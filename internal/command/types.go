// Package command defines the execution data model and command validation
// for agentrun: what a command is, how it is configured, what running it
// produced, and whether it may run at all.
package command

import "time"

// Defaults applied by Options.Normalize when a field is unset.
const (
	DefaultTimeout       = 30 * time.Second
	DefaultMaxOutputSize = 5 * 1024 * 1024
)

// Command is a single executable invocation. It is transient: built per
// dispatch, never persisted.
type Command struct {
	Text    string
	Options Options
}

// Options configures how a command is spawned. The zero value is usable
// after Normalize.
type Options struct {
	// Dir is the working directory. Empty means the process working directory.
	Dir string `json:"cwd,omitempty"`

	// Timeout bounds the child's wall-clock runtime. Zero means DefaultTimeout;
	// negative disables the timeout.
	Timeout time.Duration `json:"timeout,omitempty"`

	// Env is merged over the parent environment; entries here win on collision.
	Env map[string]string `json:"env,omitempty"`

	// CaptureStdout and CaptureStderr control whether each stream is collected
	// into the Result. Both default to true.
	CaptureStdout *bool `json:"capture_stdout,omitempty"`
	CaptureStderr *bool `json:"capture_stderr,omitempty"`

	// MaxOutputSize caps the bytes kept per stream. Bytes past the cap are
	// discarded, not buffered. Zero means DefaultMaxOutputSize.
	MaxOutputSize int64 `json:"max_output_size,omitempty"`

	// Shell, when non-empty, is the shell binary the command text is passed to
	// verbatim via -c. Empty means the text is tokenized into an argv vector
	// and spawned directly.
	Shell string `json:"shell,omitempty"`
}

// Normalize fills unset fields with their defaults.
func (o Options) Normalize() Options {
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxOutputSize == 0 {
		o.MaxOutputSize = DefaultMaxOutputSize
	}
	return o
}

// Merge resolves this options value over a fallback layer: any field set on o
// wins, anything unset is taken from base. Precedence across layers
// (call-site over per-type default over global default) is resolved by
// chaining Merge once before execution, never re-merged ad hoc.
func (o Options) Merge(base Options) Options {
	if o.Dir == "" {
		o.Dir = base.Dir
	}
	if o.Timeout == 0 {
		o.Timeout = base.Timeout
	}
	if o.MaxOutputSize == 0 {
		o.MaxOutputSize = base.MaxOutputSize
	}
	if o.Shell == "" {
		o.Shell = base.Shell
	}
	if o.CaptureStdout == nil {
		o.CaptureStdout = base.CaptureStdout
	}
	if o.CaptureStderr == nil {
		o.CaptureStderr = base.CaptureStderr
	}
	if len(base.Env) > 0 {
		merged := make(map[string]string, len(base.Env)+len(o.Env))
		for k, v := range base.Env {
			merged[k] = v
		}
		for k, v := range o.Env {
			merged[k] = v
		}
		o.Env = merged
	}
	return o
}

// Capturing reports whether each stream should be collected.
func (o Options) Capturing() (stdout, stderr bool) {
	stdout = o.CaptureStdout == nil || *o.CaptureStdout
	stderr = o.CaptureStderr == nil || *o.CaptureStderr
	return stdout, stderr
}

// Bool is a convenience for populating the capture fields.
func Bool(v bool) *bool { return &v }

// Result is the outcome of one command execution. It is immutable once
// produced: executors build it, nothing mutates it afterwards.
type Result struct {
	ExitCode int           `json:"exit_code"`
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out,omitempty"`

	// Err describes spawn failures, validation rejections, timeouts and
	// signals. Empty on clean runs, including runs that merely exited nonzero.
	Err string `json:"error,omitempty"`

	// Command echoes the text that was executed.
	Command string `json:"command"`
}

// Failed reports whether the execution should count as a failure.
func (r Result) Failed() bool {
	return r.ExitCode != 0 || r.Err != ""
}
