// Package builders supplies per-task-type execution defaults and small
// command-string constructors for the common git, test, deploy, and monitor
// shapes. Builders only produce command text and options; everything they
// emit flows through the same validator and executor as hand-written
// commands.
package builders

import (
	"fmt"
	"strings"
	"time"

	"github.com/quarry-dev/agentrun/internal/command"
	"github.com/quarry-dev/agentrun/internal/scheduler"
)

// TypeDefaults returns the options layer applied under a task's own options,
// keyed by task type. Git operations get room for slow clones, deploys run
// under a shell with a generous budget, monitor probes stay short and small.
func TypeDefaults(t scheduler.TaskType) command.Options {
	switch t {
	case scheduler.TypeGit:
		return command.Options{Timeout: 2 * time.Minute}
	case scheduler.TypeTest:
		return command.Options{Timeout: 10 * time.Minute}
	case scheduler.TypeDeploy:
		return command.Options{Timeout: 15 * time.Minute, Shell: "/bin/sh"}
	case scheduler.TypeMonitor:
		return command.Options{Timeout: 15 * time.Second, MaxOutputSize: 64 * 1024}
	default:
		return command.Options{}
	}
}

// GitClone builds a clone command.
func GitClone(url, dir string) string {
	if dir == "" {
		return fmt.Sprintf("git clone %s", Quote(url))
	}
	return fmt.Sprintf("git clone %s %s", Quote(url), Quote(dir))
}

// GitCheckout builds a branch checkout, creating the branch when create is
// set.
func GitCheckout(branch string, create bool) string {
	if create {
		return fmt.Sprintf("git checkout -b %s", Quote(branch))
	}
	return fmt.Sprintf("git checkout %s", Quote(branch))
}

// GitCommit builds a commit of all tracked changes. The message is quoted so
// punctuation survives sanitization and tokenization intact.
func GitCommit(message string) string {
	return fmt.Sprintf("git commit -a -m %s", Quote(message))
}

// GitStatus builds a porcelain status query.
func GitStatus() string {
	return "git status --porcelain"
}

// GoTest builds a test run for the given package pattern.
func GoTest(pkg string) string {
	if pkg == "" {
		pkg = "./..."
	}
	return fmt.Sprintf("go test %s", Quote(pkg))
}

// NpmTest builds an npm test run.
func NpmTest() string {
	return "npm test"
}

// HealthCheck builds an HTTP probe suitable for monitor tasks: fails on
// non-2xx, bounded by its own connection timeout under the type timeout.
func HealthCheck(url string) string {
	return fmt.Sprintf("curl -fsS --max-time 10 %s", Quote(url))
}

// Quote wraps an argument in single quotes, escaping embedded single quotes
// the POSIX way, so builder output is safe for the quote-aware tokenizer and
// for shell mode alike.
func Quote(arg string) string {
	if arg == "" {
		return "''"
	}
	if !strings.ContainsAny(arg, " \t\n'\"\\$`;&|(){}<>*?#~") {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
