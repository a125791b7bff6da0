package scheduler

import "time"

// EventKind names a lifecycle event.
type EventKind string

const (
	EventTaskAdded     EventKind = "task_added"
	EventTaskStarted   EventKind = "task_started"
	EventTaskUpdated   EventKind = "task_updated"
	EventTaskError     EventKind = "task_error"
	EventTaskCancelled EventKind = "task_cancelled"
	EventQueueCleared  EventKind = "queue_cleared"
)

// Event carries a state transition to subscribers. Task is a snapshot clone
// (nil for queue_cleared); Err is set only for task_error, where execution
// infrastructure failed as opposed to a command returning a failed result.
type Event struct {
	Kind EventKind
	Task *Task
	Err  error
	Time time.Time
}

// Handler consumes events. Handlers run synchronously on the scheduler's
// goroutines in transition order; they must return quickly and must not call
// back into the scheduler.
type Handler func(Event)

type subscription struct {
	id      int
	kinds   map[EventKind]bool // nil means all kinds
	handler Handler
}

// Subscribe registers a handler for the given kinds (all kinds when none are
// named) and returns an id for Unsubscribe.
func (s *Scheduler) Subscribe(h Handler, kinds ...EventKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := subscription{id: s.nextSubID, handler: h}
	s.nextSubID++
	if len(kinds) > 0 {
		sub.kinds = make(map[EventKind]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}
	s.subs = append(s.subs, sub)
	return sub.id
}

// Unsubscribe removes a handler registered with Subscribe.
func (s *Scheduler) Unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// emitLocked delivers an event to matching subscribers. Caller holds s.mu,
// which is what guarantees delivery order matches transition order.
func (s *Scheduler) emitLocked(ev Event) {
	ev.Time = time.Now()
	for _, sub := range s.subs {
		if sub.kinds == nil || sub.kinds[ev.Kind] {
			sub.handler(ev)
		}
	}
}
