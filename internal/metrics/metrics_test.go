package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/quarry-dev/agentrun/internal/command"
	"github.com/quarry-dev/agentrun/internal/scheduler"
)

type stubRunner struct {
	fail map[string]bool
}

func (s *stubRunner) Execute(ctx context.Context, cmd command.Command) command.Result {
	res := command.Result{Duration: 10 * time.Millisecond, Command: cmd.Text}
	if s.fail[cmd.Text] {
		res.ExitCode = 1
	}
	return res
}

func TestCollector(t *testing.T) {
	sched, err := scheduler.New(scheduler.Config{
		Runner:          &stubRunner{fail: map[string]bool{"go test ./...": true}},
		AllowUnreviewed: true,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c := NewCollector()
	c.Attach(sched)

	tasks := []*scheduler.Task{
		{ID: "checkout", Type: scheduler.TypeGit, Command: "git checkout main"},
		{ID: "test", Type: scheduler.TypeTest, Command: "go test ./..."},
		{ID: "probe", Type: scheduler.TypeMonitor, Command: "curl -fsS http://localhost/healthz"},
	}
	for _, task := range tasks {
		if err := sched.Add(task); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := sched.RunSequential(context.Background(), false); err != nil {
		t.Fatalf("RunSequential: %v", err)
	}

	if got := c.Started(); got != 3 {
		t.Errorf("Started = %d, want 3", got)
	}

	byType := c.ByType()
	if byType[scheduler.TypeGit].Tasks != 1 || byType[scheduler.TypeGit].Failed != 0 {
		t.Errorf("git stats = %+v", byType[scheduler.TypeGit])
	}
	if byType[scheduler.TypeTest].Failed != 1 {
		t.Errorf("test stats = %+v, want the failure counted", byType[scheduler.TypeTest])
	}
	if byType[scheduler.TypeGit].Duration <= 0 {
		t.Error("durations not accumulated")
	}

	summary := c.Summary()
	if !strings.Contains(summary, "Tasks: 3") || !strings.Contains(summary, "Failed: 1") {
		t.Errorf("summary = %q", summary)
	}
	if !strings.Contains(summary, "git=1") {
		t.Errorf("summary missing per-type counts: %q", summary)
	}
}

func TestCollectorEmpty(t *testing.T) {
	c := NewCollector()
	if got := c.Summary(); !strings.Contains(got, "Tasks: 0") {
		t.Errorf("empty summary = %q", got)
	}
	if len(c.ByType()) != 0 {
		t.Error("empty collector reports type stats")
	}
}
