package scheduler

import (
	"fmt"
	"strings"
)

// UnknownDependencyError reports a task whose dependency id is not in the
// scheduled batch. Raised before any task of the batch executes.
type UnknownDependencyError struct {
	TaskID       string
	DependencyID string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %s depends on unknown task %s", e.TaskID, e.DependencyID)
}

// CycleError reports a dependency cycle, naming the tasks on it. Raised
// before any task of the batch executes.
type CycleError struct {
	Tasks []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Tasks, " -> "))
}

// levels groups a batch of tasks by dependency depth: level 0 holds tasks
// with no dependencies, and each task sits one level above its deepest
// dependency. Computed by memoized depth-first traversal; a revisit of a node
// still on the traversal stack is a cycle.
//
// Within a level, tasks keep their batch order; across levels the returned
// slice is ascending by depth.
func levels(batch []*Task) ([][]*Task, error) {
	byID := make(map[string]*Task, len(batch))
	for _, t := range batch {
		byID[t.ID] = t
	}

	memo := make(map[string]int, len(batch))
	visiting := make(map[string]bool)
	var stack []string

	var visit func(t *Task) (int, error)
	visit = func(t *Task) (int, error) {
		if lvl, ok := memo[t.ID]; ok {
			return lvl, nil
		}
		if visiting[t.ID] {
			// Extract the cycle from the traversal stack.
			cycle := []string{t.ID}
			for i := len(stack) - 1; i >= 0; i-- {
				cycle = append(cycle, stack[i])
				if stack[i] == t.ID {
					break
				}
			}
			return 0, &CycleError{Tasks: cycle}
		}

		visiting[t.ID] = true
		stack = append(stack, t.ID)
		defer func() {
			visiting[t.ID] = false
			stack = stack[:len(stack)-1]
		}()

		lvl := 0
		for _, dep := range t.DependsOn {
			dt, ok := byID[dep]
			if !ok {
				return 0, &UnknownDependencyError{TaskID: t.ID, DependencyID: dep}
			}
			dlvl, err := visit(dt)
			if err != nil {
				return 0, err
			}
			if dlvl+1 > lvl {
				lvl = dlvl + 1
			}
		}

		memo[t.ID] = lvl
		return lvl, nil
	}

	maxLevel := 0
	for _, t := range batch {
		lvl, err := visit(t)
		if err != nil {
			return nil, err
		}
		if lvl > maxLevel {
			maxLevel = lvl
		}
	}

	grouped := make([][]*Task, maxLevel+1)
	for _, t := range batch {
		lvl := memo[t.ID]
		grouped[lvl] = append(grouped[lvl], t)
	}
	return grouped, nil
}
