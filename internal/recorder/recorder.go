// Package recorder bridges the scheduler's event stream into the history
// store and renders run reports.
package recorder

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/quarry-dev/agentrun/internal/scheduler"
	"github.com/quarry-dev/agentrun/internal/store"
)

// Recorder persists scheduler events and terminal task results for one run.
type Recorder struct {
	store  *store.Store
	runID  string
	logger *slog.Logger
}

// New creates a Recorder bound to a run id.
func New(s *store.Store, runID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: s, runID: runID, logger: logger}
}

// Attach subscribes the recorder to a scheduler's event stream and returns
// the subscription id.
func (r *Recorder) Attach(s *scheduler.Scheduler) int {
	return s.Subscribe(r.handle)
}

// Finish marks the run as finished with the given status.
func (r *Recorder) Finish(status string) error {
	return r.store.FinishRun(r.runID, status)
}

// handle persists one event. Storage errors are logged, not propagated: the
// run must not fail because history is unavailable.
func (r *Recorder) handle(ev scheduler.Event) {
	rec := &store.EventRecord{RunID: r.runID, Kind: string(ev.Kind)}
	if ev.Task != nil {
		rec.TaskID = ev.Task.ID
	}
	if ev.Err != nil {
		rec.Error = ev.Err.Error()
	}
	if err := r.store.AppendEvent(rec); err != nil {
		r.logger.Warn("could not record event", "kind", ev.Kind, "error", err)
	}

	if ev.Kind != scheduler.EventTaskUpdated && ev.Kind != scheduler.EventTaskCancelled {
		return
	}
	if ev.Task == nil || !ev.Task.Status.Terminal() {
		return
	}

	tr := &store.TaskRecord{
		RunID:   r.runID,
		TaskID:  ev.Task.ID,
		Name:    ev.Task.Name,
		Type:    string(ev.Task.Type),
		Command: ev.Task.Command,
		Status:  string(ev.Task.Status),
	}
	if res := ev.Task.Result; res != nil {
		tr.ExitCode = res.ExitCode
		tr.Stdout = res.Stdout
		tr.Stderr = res.Stderr
		tr.DurationMs = res.Duration.Milliseconds()
		tr.TimedOut = res.TimedOut
		tr.Error = res.Err
	}
	if err := r.store.SaveTaskResult(tr); err != nil {
		r.logger.Warn("could not record task result", "task", ev.Task.ID, "error", err)
	}
}

// Report renders a markdown summary of the run from the store.
func (r *Recorder) Report() (string, error) {
	tasks, err := r.store.TasksForRun(r.runID)
	if err != nil {
		return "", fmt.Errorf("loading run tasks: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Run %s\n\n", r.runID))

	var completed, failed, cancelled int
	for _, t := range tasks {
		switch t.Status {
		case string(scheduler.StatusCompleted):
			completed++
		case string(scheduler.StatusFailed):
			failed++
		case string(scheduler.StatusCancelled):
			cancelled++
		}
	}
	sb.WriteString(fmt.Sprintf("%d tasks: %d completed, %d failed, %d cancelled\n\n",
		len(tasks), completed, failed, cancelled))

	for _, t := range tasks {
		mark := "x"
		if t.Status != string(scheduler.StatusCompleted) {
			mark = " "
		}
		sb.WriteString(fmt.Sprintf("- [%s] %s (%s, exit %d, %dms)", mark, t.TaskID, t.Status, t.ExitCode, t.DurationMs))
		if t.TimedOut {
			sb.WriteString(" timed out")
		}
		if t.Error != "" {
			sb.WriteString(fmt.Sprintf(" error: %s", t.Error))
		}
		sb.WriteString("\n")
	}

	return sb.String(), nil
}
