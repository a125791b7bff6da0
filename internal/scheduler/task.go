// Package scheduler orders queued tasks by dependency and drives each one
// through the preflight gate and the command executor, emitting lifecycle
// events as state changes.
package scheduler

import (
	"time"

	"github.com/quarry-dev/agentrun/internal/command"
)

// TaskType categorizes the work a task carries. The scheduler treats all
// types identically; types exist so producers and reporting can tell a git
// checkout from a monitoring probe.
type TaskType string

const (
	TypeShell   TaskType = "shell"
	TypeGit     TaskType = "git"
	TypeDeploy  TaskType = "deploy"
	TypeTest    TaskType = "test"
	TypeMonitor TaskType = "monitor"
)

// Valid reports whether the type is one of the recognized kinds.
func (t TaskType) Valid() bool {
	switch t {
	case TypeShell, TypeGit, TypeDeploy, TypeTest, TypeMonitor:
		return true
	default:
		return false
	}
}

// TaskStatus is the lifecycle state of a task. Transitions are monotonic:
// pending -> in_progress -> completed|failed, or pending -> cancelled. A task
// never re-enters pending.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
	StatusCancelled  TaskStatus = "cancelled"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Task is a unit of work: one command plus the ids of the tasks that must
// complete before it may run. Producers create tasks; the scheduler owns them
// from Add until they reach a terminal state, after which they are read-only
// history.
type Task struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Type      TaskType        `json:"type"`
	Command   string          `json:"command"`
	Options   command.Options `json:"options,omitempty"`
	DependsOn []string        `json:"depends_on,omitempty"`

	Status TaskStatus      `json:"status"`
	Result *command.Result `json:"result,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a snapshot copy safe to hand outside the scheduler.
func (t *Task) Clone() *Task {
	c := *t
	if len(t.DependsOn) > 0 {
		c.DependsOn = append([]string(nil), t.DependsOn...)
	}
	if t.Result != nil {
		r := *t.Result
		c.Result = &r
	}
	if t.StartedAt != nil {
		at := *t.StartedAt
		c.StartedAt = &at
	}
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}
