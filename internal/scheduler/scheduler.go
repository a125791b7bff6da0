package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quarry-dev/agentrun/internal/command"
	"github.com/quarry-dev/agentrun/internal/executor"
	"github.com/quarry-dev/agentrun/internal/preflight"
)

// Config assembles a Scheduler's collaborators.
type Config struct {
	// Runner executes each task's command. Required.
	Runner executor.Runner

	// Gate is consulted before every dispatch. Required unless
	// AllowUnreviewed is set; running without a gate must be an explicit
	// choice, never a default.
	Gate preflight.Gate

	// AllowUnreviewed permits construction without a Gate.
	AllowUnreviewed bool

	// MaxParallel caps concurrently running tasks within a level. Zero means
	// no limit beyond the level's size.
	MaxParallel int

	Logger *slog.Logger
}

// Scheduler owns a queue of tasks and runs them either in FIFO order or in
// dependency levels. All task state is mutated under one mutex: tasks run on
// their own goroutines, but status, result, and queue membership have a
// single writer discipline enforced here.
type Scheduler struct {
	mu      sync.Mutex
	cfg     Config
	queue   []*Task
	byID    map[string]*Task
	history []*Task

	subs      []subscription
	nextSubID int

	logger *slog.Logger
}

// New creates a Scheduler. It fails when the runner is missing, or when no
// preflight gate is supplied without AllowUnreviewed.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("scheduler requires a runner")
	}
	if cfg.Gate == nil && !cfg.AllowUnreviewed {
		return nil, fmt.Errorf("scheduler requires a preflight gate; set AllowUnreviewed to run without one")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:    cfg,
		byID:   make(map[string]*Task),
		logger: logger,
	}, nil
}

// Add queues a task. The id must be unique across queue and history; the
// scheduler checks structural integrity only, never command semantics.
func (s *Scheduler) Add(t *Task) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("task requires an id")
	}
	if t.Type != "" && !t.Type.Valid() {
		return fmt.Errorf("task %s has unknown type %q", t.ID, t.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[t.ID]; exists {
		return fmt.Errorf("task %s already queued", t.ID)
	}
	if t.Type == "" {
		t.Type = TypeShell
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.Status != StatusPending {
		return fmt.Errorf("task %s must be added as pending, got %s", t.ID, t.Status)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	s.queue = append(s.queue, t)
	s.byID[t.ID] = t
	s.emitLocked(Event{Kind: EventTaskAdded, Task: t.Clone()})
	return nil
}

// Tasks returns a snapshot of the queued (non-terminal) tasks in insertion
// order.
func (s *Scheduler) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Task, 0, len(s.queue))
	for _, t := range s.queue {
		out = append(out, t.Clone())
	}
	return out
}

// History returns a snapshot of terminal tasks in completion order.
func (s *Scheduler) History() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Task, 0, len(s.history))
	for _, t := range s.history {
		out = append(out, t.Clone())
	}
	return out
}

// Clear drops every pending task from the queue. Tasks already in progress
// keep running and still reach history.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.queue[:0]
	for _, t := range s.queue {
		if t.Status == StatusPending {
			delete(s.byID, t.ID)
		} else {
			kept = append(kept, t)
		}
	}
	s.queue = kept
	s.emitLocked(Event{Kind: EventQueueCleared})
}

// Cancel marks a pending task cancelled and returns true. A task already in
// progress or terminal cannot be cancelled; the call is a no-op returning
// false.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok || t.Status != StatusPending {
		return false
	}
	now := time.Now()
	t.Status = StatusCancelled
	t.CompletedAt = &now
	s.retireLocked(t)
	s.emitLocked(Event{Kind: EventTaskCancelled, Task: t.Clone()})
	return true
}

// Stats are task counts by outcome across queue and history.
type Stats struct {
	Total     int
	Completed int
	Failed    int
	Pending   int
	Cancelled int
}

// Stats counts tasks by outcome across queue and history.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st Stats
	count := func(t *Task) {
		st.Total++
		switch t.Status {
		case StatusCompleted:
			st.Completed++
		case StatusFailed:
			st.Failed++
		case StatusCancelled:
			st.Cancelled++
		default:
			st.Pending++
		}
	}
	for _, t := range s.queue {
		count(t)
	}
	for _, t := range s.history {
		count(t)
	}
	return st
}

// RunSequential executes the pending queue in insertion order, one task at a
// time, ignoring dependency hints. With stopOnFailure, a failed task halts
// the run and later tasks stay pending.
func (s *Scheduler) RunSequential(ctx context.Context, stopOnFailure bool) error {
	batch := s.pendingBatch()
	s.logger.Info("sequential run starting", "tasks", len(batch), "stop_on_failure", stopOnFailure)

	for _, t := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.runTask(ctx, t)
		if stopOnFailure && s.statusOf(t) == StatusFailed {
			s.logger.Warn("halting run on failed task", "task", t.ID)
			break
		}
	}
	return nil
}

// RunLevels executes the pending queue in dependency levels: all tasks of a
// level run concurrently and the next level starts only once every task in
// the current one is terminal. An unknown dependency or a cycle fails the
// whole batch before anything executes. A failure inside a level lets its
// siblings drain; with stopOnFailure, later levels then stay pending.
func (s *Scheduler) RunLevels(ctx context.Context, stopOnFailure bool) error {
	batch := s.pendingBatch()
	grouped, err := levels(batch)
	if err != nil {
		return fmt.Errorf("scheduling batch: %w", err)
	}
	s.logger.Info("leveled run starting",
		"tasks", len(batch),
		"levels", len(grouped),
		"stop_on_failure", stopOnFailure,
	)

	for depth, level := range grouped {
		if err := ctx.Err(); err != nil {
			return err
		}

		g := new(errgroup.Group)
		if s.cfg.MaxParallel > 0 {
			g.SetLimit(s.cfg.MaxParallel)
		}
		for _, t := range level {
			t := t
			g.Go(func() error {
				s.runTask(ctx, t)
				return nil
			})
		}
		_ = g.Wait() // workers never error; outcomes live on the tasks

		if stopOnFailure && s.anyFailed(level) {
			s.logger.Warn("halting run on failed level", "level", depth)
			break
		}
	}
	return nil
}

// runTask drives one task through gate review and execution to a terminal
// state. Execution failures are recorded on the task, never returned.
func (s *Scheduler) runTask(ctx context.Context, t *Task) {
	s.mu.Lock()
	if t.Status != StatusPending {
		s.mu.Unlock()
		return
	}
	now := time.Now()
	t.Status = StatusInProgress
	t.StartedAt = &now
	s.emitLocked(Event{Kind: EventTaskStarted, Task: t.Clone()})
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("task %s panicked: %v", t.ID, r)
			s.logger.Error("task panicked", "task", t.ID, "panic", r)
			s.failTask(t, err)
		}
	}()

	if s.cfg.Gate != nil {
		dec, err := s.cfg.Gate.Review(ctx, preflight.Request{
			Action: "execute command",
			Details: map[string]string{
				"task":    t.ID,
				"type":    string(t.Type),
				"command": t.Command,
				"cwd":     t.Options.Dir,
			},
		})
		if err != nil {
			s.failTask(t, fmt.Errorf("preflight review: %w", err))
			return
		}
		if !dec.Approved {
			s.logger.Warn("preflight denied task", "task", t.ID, "reason", dec.Reason)
			s.finish(t, command.Result{
				ExitCode: -1,
				Err:      fmt.Sprintf("preflight denied: %s", dec.Reason),
				Command:  t.Command,
			})
			return
		}
	}

	res := s.cfg.Runner.Execute(ctx, command.Command{Text: t.Command, Options: t.Options})
	s.finish(t, res)
}

// failTask records an infrastructure error: a task_error event plus a failed
// result carrying the error text.
func (s *Scheduler) failTask(t *Task, err error) {
	s.mu.Lock()
	s.emitLocked(Event{Kind: EventTaskError, Task: t.Clone(), Err: err})
	s.mu.Unlock()
	s.finish(t, command.Result{ExitCode: -1, Err: err.Error(), Command: t.Command})
}

// finish sets the task's result exactly once, together with its terminal
// status, and retires it to history.
func (s *Scheduler) finish(t *Task, res command.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.Status.Terminal() {
		return
	}
	now := time.Now()
	t.Result = &res
	t.CompletedAt = &now
	if res.Failed() {
		t.Status = StatusFailed
	} else {
		t.Status = StatusCompleted
	}
	s.retireLocked(t)
	s.emitLocked(Event{Kind: EventTaskUpdated, Task: t.Clone()})
}

// retireLocked moves a terminal task from the queue to history.
func (s *Scheduler) retireLocked(t *Task) {
	for i, q := range s.queue {
		if q.ID == t.ID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	delete(s.byID, t.ID)
	s.history = append(s.history, t)
}

// pendingBatch snapshots the pending tasks in insertion order.
func (s *Scheduler) pendingBatch() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := make([]*Task, 0, len(s.queue))
	for _, t := range s.queue {
		if t.Status == StatusPending {
			batch = append(batch, t)
		}
	}
	return batch
}

func (s *Scheduler) statusOf(t *Task) TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.Status
}

func (s *Scheduler) anyFailed(tasks []*Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tasks {
		if t.Status == StatusFailed {
			return true
		}
	}
	return false
}
