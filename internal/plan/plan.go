// Package plan loads task plans produced by external planners into scheduler
// tasks. The plan file is the producer boundary: agentrun trusts its
// structure, not its commands — those still pass validation and preflight
// review at dispatch time.
package plan

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quarry-dev/agentrun/internal/builders"
	"github.com/quarry-dev/agentrun/internal/command"
	"github.com/quarry-dev/agentrun/internal/scheduler"
)

// Plan is a parsed task plan file.
type Plan struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Defaults    TaskOption `yaml:"defaults,omitempty"`
	Tasks       []PlanTask `yaml:"tasks"`
}

// PlanTask is one task entry as written in the plan file.
type PlanTask struct {
	ID        string     `yaml:"id"`
	Name      string     `yaml:"name,omitempty"`
	Type      string     `yaml:"type,omitempty"`
	Command   string     `yaml:"command"`
	DependsOn []string   `yaml:"depends_on,omitempty"`
	Options   TaskOption `yaml:"options,omitempty"`
}

// TaskOption mirrors command.Options with YAML-friendly field types;
// durations are written as strings ("90s", "5m").
type TaskOption struct {
	Dir           string            `yaml:"cwd,omitempty"`
	Timeout       string            `yaml:"timeout,omitempty"`
	Env           map[string]string `yaml:"env,omitempty"`
	CaptureStdout *bool             `yaml:"capture_stdout,omitempty"`
	CaptureStderr *bool             `yaml:"capture_stderr,omitempty"`
	MaxOutputSize int64             `yaml:"max_output_size,omitempty"`
	Shell         string            `yaml:"shell,omitempty"`
}

// toOptions converts the YAML shape to command.Options.
func (o TaskOption) toOptions() (command.Options, error) {
	opts := command.Options{
		Dir:           o.Dir,
		Env:           o.Env,
		CaptureStdout: o.CaptureStdout,
		CaptureStderr: o.CaptureStderr,
		MaxOutputSize: o.MaxOutputSize,
		Shell:         o.Shell,
	}
	if o.Timeout != "" {
		d, err := time.ParseDuration(o.Timeout)
		if err != nil {
			return opts, fmt.Errorf("parsing timeout %q: %w", o.Timeout, err)
		}
		opts.Timeout = d
	}
	return opts, nil
}

// Load reads and parses a plan file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}

	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing plan file: %w", err)
	}
	if len(p.Tasks) == 0 {
		return nil, fmt.Errorf("plan %q contains no tasks", p.Name)
	}
	return &p, nil
}

// BuildTasks converts the plan into scheduler tasks, resolving each task's
// options over the type defaults and the plan-wide defaults.
func (p *Plan) BuildTasks() ([]*scheduler.Task, error) {
	planDefaults, err := p.Defaults.toOptions()
	if err != nil {
		return nil, fmt.Errorf("plan defaults: %w", err)
	}

	tasks := make([]*scheduler.Task, 0, len(p.Tasks))
	for i, pt := range p.Tasks {
		if pt.ID == "" {
			return nil, fmt.Errorf("task %d has no id", i)
		}
		if pt.Command == "" {
			return nil, fmt.Errorf("task %s has no command", pt.ID)
		}

		taskType := scheduler.TaskType(pt.Type)
		if pt.Type == "" {
			taskType = scheduler.TypeShell
		}
		if !taskType.Valid() {
			return nil, fmt.Errorf("task %s has unknown type %q", pt.ID, pt.Type)
		}

		opts, err := pt.Options.toOptions()
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", pt.ID, err)
		}
		opts = opts.Merge(builders.TypeDefaults(taskType)).Merge(planDefaults)

		name := pt.Name
		if name == "" {
			name = pt.ID
		}
		tasks = append(tasks, &scheduler.Task{
			ID:        pt.ID,
			Name:      name,
			Type:      taskType,
			Command:   pt.Command,
			Options:   opts,
			DependsOn: pt.DependsOn,
		})
	}
	return tasks, nil
}
