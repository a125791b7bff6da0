package command

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// denyPatterns are case-insensitive substrings that fail validation
// unconditionally, safe-only or not.
var denyPatterns = []string{
	":(){",       // fork bomb
	":|:&",       // fork bomb body
	"mkfs",       // disk format
	"fdisk",      // partition table
	"of=/dev/sd", // raw-device write via dd
	"of=/dev/hd",
	"of=/dev/nvme",
	"> /dev/sd",
	"> /dev/hd",
	"> /dev/nvme",
}

// denyRegexps catch the destructive shapes a substring can't pin down
// without false positives.
var denyRegexps = []*regexp.Regexp{
	// recursive delete of root or home
	regexp.MustCompile(`(?i)\brm\s+(-[a-z]+\s+)*-[a-z]*[rf][a-z]*\s+("?/"?|/\*|~|~/|~/\*|\$home\b)\s*$`),
	regexp.MustCompile(`(?i)\brm\s+(-[a-z]+\s+)*-[a-z]*[rf][a-z]*\s+("?/"?|~|\$home)\s`),
	// permission-mask blowout on root
	regexp.MustCompile(`(?i)\bchmod\s+(-[a-z]+\s+)*0?777\s+/\s*$`),
	// piping a download straight into an interpreter
	regexp.MustCompile(`(?i)\b(curl|wget)\b[^|;]*\|\s*(sudo\s+)?(ba|z|da)?sh\b`),
}

// defaultAllowed is the safe-only allow-list: executables a planner may run
// without review. Matched against the leading token's final path component,
// never as a substring.
var defaultAllowed = []string{
	// version control
	"git", "gh",
	// package managers and runtimes
	"npm", "npx", "yarn", "pnpm", "node", "deno",
	"python", "python3", "pip", "pip3", "uv",
	"go", "gofmt", "cargo", "rustc", "ruby", "bundle",
	// build and test
	"make", "cmake", "mvn", "gradle", "tsc", "jest", "vitest", "pytest",
	// linters and formatters
	"eslint", "prettier", "golangci-lint", "ruff", "black",
	// container and cloud CLIs
	"docker", "docker-compose", "kubectl", "helm", "aws", "gcloud", "terraform",
	// filesystem and text utilities
	"ls", "cat", "grep", "find", "echo", "pwd", "mkdir", "touch", "cp", "mv",
	"head", "tail", "wc", "sort", "uniq", "diff", "sed", "awk", "which", "env",
	"curl", "ping",
}

// ValidatorConfig extends the built-in pattern sets. Extra entries are
// additive; the built-ins cannot be switched off.
type ValidatorConfig struct {
	ExtraDeny  []string `yaml:"extra_deny,omitempty"`
	ExtraAllow []string `yaml:"extra_allow,omitempty"`
}

// Validator decides whether a command string may run at all. It is a pure
// function over its input: construct one at startup and pass it by reference
// wherever commands are dispatched.
type Validator struct {
	deny    []string
	denyRe  []*regexp.Regexp
	allowed map[string]bool
}

// NewValidator builds a Validator from the built-in pattern sets plus any
// configured extras.
func NewValidator(cfg ValidatorConfig) *Validator {
	v := &Validator{
		deny:    denyPatterns,
		denyRe:  denyRegexps,
		allowed: make(map[string]bool, len(defaultAllowed)+len(cfg.ExtraAllow)),
	}
	for _, p := range cfg.ExtraDeny {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			v.deny = append(v.deny, p)
		}
	}
	for _, name := range defaultAllowed {
		v.allowed[name] = true
	}
	for _, name := range cfg.ExtraAllow {
		if name = strings.TrimSpace(name); name != "" {
			v.allowed[name] = true
		}
	}
	return v
}

// Validate returns nil if the command may run. The deny-list applies
// regardless of safeOnly; the allow-list applies only when safeOnly is true.
func (v *Validator) Validate(text string, safeOnly bool) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("empty command")
	}

	lower := strings.ToLower(trimmed)
	for _, p := range v.deny {
		if strings.Contains(lower, p) {
			return fmt.Errorf("command contains blocked pattern %q", p)
		}
	}
	for _, re := range v.denyRe {
		if re.MatchString(trimmed) {
			return fmt.Errorf("command matches blocked pattern %q", re.String())
		}
	}

	if !safeOnly {
		return nil
	}

	prog := v.leadingProgram(trimmed)
	if prog == "" {
		return fmt.Errorf("cannot determine program from command")
	}
	if !v.allowed[prog] {
		return fmt.Errorf("program %q is not on the safe-command list", prog)
	}
	return nil
}

// leadingProgram extracts the executable name the command starts with.
// "/usr/bin/git" matches "git" as a whole path component; "gitx" does not.
func (v *Validator) leadingProgram(text string) string {
	args, err := Tokenize(Sanitize(text))
	if err != nil || len(args) == 0 {
		return ""
	}

	first := args[0]
	// Skip leading VAR=value assignments.
	for len(args) > 0 && strings.Contains(args[0], "=") && !strings.ContainsAny(args[0], "/\\") {
		args = args[1:]
		if len(args) == 0 {
			return ""
		}
		first = args[0]
	}

	return path.Base(first)
}
