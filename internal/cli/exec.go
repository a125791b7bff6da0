package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quarry-dev/agentrun/internal/command"
	"github.com/quarry-dev/agentrun/internal/config"
)

var (
	execTimeout string
	execDir     string
	execShell   bool
	execSafe    bool
	execJSON    bool
)

var execCmd = &cobra.Command{
	Use:   "exec -- <command>",
	Short: "Validate and run a single command",
	Long: `Exec runs one command through the validator and executor and prints
the captured output.

Examples:
  agentrun exec -- git status
  agentrun exec --timeout 10s -- go test ./...
  agentrun exec --shell -- "ls *.go | wc -l"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func init() {
	execCmd.Flags().StringVar(&execTimeout, "timeout", "", "execution timeout (e.g. 30s, 5m)")
	execCmd.Flags().StringVar(&execDir, "dir", "", "working directory")
	execCmd.Flags().BoolVar(&execShell, "shell", false, "run through /bin/sh -c instead of direct exec")
	execCmd.Flags().BoolVar(&execSafe, "safe", false, "restrict to the safe command allow-list")
	execCmd.Flags().BoolVar(&execJSON, "json", false, "print the result as JSON")
}

func runExec(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if execSafe {
		cfg.Executor.SafeOnly = true
	}

	runner, _, err := buildRunner(cfg)
	if err != nil {
		return err
	}

	text := strings.Join(args, " ")

	opts := command.Options{Dir: execDir}
	if execTimeout != "" {
		d, err := time.ParseDuration(execTimeout)
		if err != nil {
			return fmt.Errorf("parsing timeout: %w", err)
		}
		opts.Timeout = d
	}
	if execShell {
		opts.Shell = "/bin/sh"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received interrupt signal, stopping command...")
		cancel()
	}()

	res := runner.Execute(ctx, command.Command{Text: text, Options: opts})

	if execJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
	} else {
		if res.Stdout != "" {
			fmt.Print(res.Stdout)
		}
		if res.Stderr != "" {
			fmt.Fprint(os.Stderr, res.Stderr)
		}
	}

	if res.Failed() {
		if res.Err != "" {
			return fmt.Errorf("command failed: %s", res.Err)
		}
		return fmt.Errorf("command exited with code %d", res.ExitCode)
	}
	return nil
}
