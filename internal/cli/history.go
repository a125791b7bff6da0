package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quarry-dev/agentrun/internal/config"
	"github.com/quarry-dev/agentrun/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show past runs and their task results",
	Long: `History lists recorded runs from the history database. With a run id
it shows the task results of that run.

Examples:
  agentrun history
  agentrun history --limit 5
  agentrun history 2f1c9a6e-8b44-4f0d-9c3a-1d2e3f4a5b6c`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, err := store.Open(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer st.Close()

	if len(args) == 1 {
		return showRun(st, args[0])
	}
	return listRuns(st)
}

func listRuns(st *store.Store) error {
	runs, err := st.ListRuns(historyLimit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	fmt.Printf("%-38s %-20s %-12s %-10s %s\n", "RUN", "PLAN", "MODE", "STATUS", "STARTED")
	for _, r := range runs {
		fmt.Printf("%-38s %-20s %-12s %-10s %s\n",
			r.ID, r.PlanName, r.Mode, r.Status,
			r.StartedAt.Local().Format(time.RFC3339))
	}
	return nil
}

func showRun(st *store.Store, runID string) error {
	tasks, err := st.TasksForRun(runID)
	if err != nil {
		return fmt.Errorf("loading tasks for run %s: %w", runID, err)
	}
	if len(tasks) == 0 {
		fmt.Printf("No task results recorded for run %s.\n", runID)
		return nil
	}

	fmt.Printf("%-16s %-10s %-10s %6s %10s  %s\n", "TASK", "TYPE", "STATUS", "EXIT", "DURATION", "COMMAND")
	for _, t := range tasks {
		dur := time.Duration(t.DurationMs) * time.Millisecond
		fmt.Printf("%-16s %-10s %-10s %6d %10s  %s\n",
			t.TaskID, t.Type, t.Status, t.ExitCode, dur, t.Command)
		if t.Error != "" {
			fmt.Printf("  error: %s\n", t.Error)
		}
	}
	return nil
}
