package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/quarry-dev/agentrun/internal/config"
	"github.com/quarry-dev/agentrun/internal/metrics"
	"github.com/quarry-dev/agentrun/internal/plan"
	"github.com/quarry-dev/agentrun/internal/recorder"
	"github.com/quarry-dev/agentrun/internal/scheduler"
	"github.com/quarry-dev/agentrun/internal/store"
)

var (
	runPlanFile    string
	runMode        string
	runMaxParallel int
	runKeepGoing   bool
	runNoHistory   bool
	runReport      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a task plan",
	Long: `Run loads a task plan, schedules its tasks by dependency order, and
executes them. Results are recorded to the run history database unless
history is disabled.

Examples:
  agentrun run --plan plan.yaml
  agentrun run --plan plan.yaml --mode sequential
  agentrun run --plan plan.yaml --max-parallel 8 --report`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runPlanFile, "plan", "p", "plan.yaml", "task plan file")
	runCmd.Flags().StringVar(&runMode, "mode", "", "execution mode (sequential, levels)")
	runCmd.Flags().IntVar(&runMaxParallel, "max-parallel", 0, "max concurrent tasks within a level")
	runCmd.Flags().BoolVar(&runKeepGoing, "keep-going", false, "continue remaining levels after a task fails")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "skip recording the run to the history database")
	runCmd.Flags().BoolVar(&runReport, "report", false, "print a summary report after the run")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if runMode != "" {
		cfg.Scheduler.Mode = runMode
	}
	if runMaxParallel > 0 {
		cfg.Scheduler.MaxParallel = runMaxParallel
	}
	if runKeepGoing {
		cfg.Scheduler.StopOnFailure = false
	}
	if runNoHistory {
		cfg.History.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	p, err := plan.Load(runPlanFile)
	if err != nil {
		return fmt.Errorf("loading plan: %w", err)
	}
	tasks, err := p.BuildTasks()
	if err != nil {
		return fmt.Errorf("building tasks: %w", err)
	}

	runner, validator, err := buildRunner(cfg)
	if err != nil {
		return err
	}
	gate, allowUnreviewed, err := buildGate(cfg, validator)
	if err != nil {
		return err
	}

	sched, err := scheduler.New(scheduler.Config{
		Runner:          runner,
		Gate:            gate,
		AllowUnreviewed: allowUnreviewed,
		MaxParallel:     cfg.Scheduler.MaxParallel,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	collector.Attach(sched)

	var rec *recorder.Recorder
	runID := uuid.NewString()
	if cfg.History.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.History.Path), 0o755); err != nil {
			return fmt.Errorf("creating history directory: %w", err)
		}
		st, err := store.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("opening history store: %w", err)
		}
		defer st.Close()

		if err := st.CreateRun(runID, p.Name, cfg.Scheduler.Mode); err != nil {
			return fmt.Errorf("recording run: %w", err)
		}
		rec = recorder.New(st, runID, logger)
		rec.Attach(sched)
	}

	for _, t := range tasks {
		if err := sched.Add(t); err != nil {
			return fmt.Errorf("adding task %s: %w", t.ID, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received interrupt signal, stopping run...")
		cancel()
	}()

	logger.Info("starting run",
		"run_id", runID,
		"plan", p.Name,
		"tasks", len(tasks),
		"mode", cfg.Scheduler.Mode,
	)

	var runErr error
	switch cfg.Scheduler.Mode {
	case "sequential":
		runErr = sched.RunSequential(ctx, cfg.Scheduler.StopOnFailure)
	default:
		runErr = sched.RunLevels(ctx, cfg.Scheduler.StopOnFailure)
	}

	stats := sched.Stats()
	status := "completed"
	if runErr != nil || stats.Failed > 0 {
		status = "failed"
	}
	if rec != nil {
		if err := rec.Finish(status); err != nil {
			logger.Error("finishing run record", "error", err)
		}
	}

	logger.Info("run finished",
		"status", status,
		"completed", stats.Completed,
		"failed", stats.Failed,
		"cancelled", stats.Cancelled,
		"pending", stats.Pending,
	)
	fmt.Println(collector.Summary())

	if runReport && rec != nil {
		report, err := rec.Report()
		if err != nil {
			return fmt.Errorf("building report: %w", err)
		}
		fmt.Println(report)
	}

	if runErr != nil {
		return runErr
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d task(s) failed", stats.Failed)
	}
	return nil
}
