// Package metrics aggregates in-memory run statistics from the scheduler's
// event stream: outcome counts, wall-clock totals, and per-type timings.
package metrics

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/quarry-dev/agentrun/internal/scheduler"
)

// TypeStats aggregates outcomes for one task type.
type TypeStats struct {
	Tasks    int           `json:"tasks"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
	TimedOut int           `json:"timed_out"`
}

// Collector accumulates task outcomes as they happen. Attach it to a
// scheduler before the run starts; read it after the run settles.
type Collector struct {
	mu       sync.Mutex
	byType   map[scheduler.TaskType]*TypeStats
	started  int
	duration time.Duration
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{byType: make(map[scheduler.TaskType]*TypeStats)}
}

// Attach subscribes the collector to a scheduler's event stream and returns
// the subscription id.
func (c *Collector) Attach(s *scheduler.Scheduler) int {
	return s.Subscribe(c.handle,
		scheduler.EventTaskStarted,
		scheduler.EventTaskUpdated,
	)
}

func (c *Collector) handle(ev scheduler.Event) {
	if ev.Task == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if ev.Kind == scheduler.EventTaskStarted {
		c.started++
		return
	}
	if !ev.Task.Status.Terminal() {
		return
	}

	ts := c.byType[ev.Task.Type]
	if ts == nil {
		ts = &TypeStats{}
		c.byType[ev.Task.Type] = ts
	}
	ts.Tasks++
	if ev.Task.Status == scheduler.StatusFailed {
		ts.Failed++
	}
	if res := ev.Task.Result; res != nil {
		ts.Duration += res.Duration
		c.duration += res.Duration
		if res.TimedOut {
			ts.TimedOut++
		}
	}
}

// Started returns how many tasks entered execution.
func (c *Collector) Started() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// ByType returns a snapshot of the per-type aggregates.
func (c *Collector) ByType() map[scheduler.TaskType]TypeStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[scheduler.TaskType]TypeStats, len(c.byType))
	for k, v := range c.byType {
		out[k] = *v
	}
	return out
}

// Summary returns a one-line formatted metrics summary.
func (c *Collector) Summary() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var tasks, failed, timedOut int
	types := make([]string, 0, len(c.byType))
	for t, ts := range c.byType {
		tasks += ts.Tasks
		failed += ts.Failed
		timedOut += ts.TimedOut
		types = append(types, fmt.Sprintf("%s=%d", t, ts.Tasks))
	}
	sort.Strings(types)

	line := fmt.Sprintf("Tasks: %d | Failed: %d | Timed out: %d | Exec time: %s",
		tasks, failed, timedOut, c.duration.Round(time.Millisecond))
	if len(types) > 0 {
		line += " | By type: "
		for i, t := range types {
			if i > 0 {
				line += " "
			}
			line += t
		}
	}
	return line
}
