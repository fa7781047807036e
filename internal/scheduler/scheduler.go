// Package scheduler runs the periodic tasks behind the assistant's
// ambient behavior: voice sampling, idle tracking, and proactive
// check-ins. Tasks are non-reentrant and stop deterministically.
package scheduler

import (
	"log/slog"
	"sync"
	"time"
)

// Task is a repeating job. A tick that fires while the previous callback
// is still running is coalesced, never queued; at most one callback runs
// at a time.
type Task struct {
	name   string
	ticker *time.Ticker
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// Repeat starts fn on a fixed interval. The first run happens after one
// interval, not immediately.
func Repeat(name string, interval time.Duration, fn func()) *Task {
	t := &Task{
		name:   name,
		ticker: time.NewTicker(interval),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(t.done)
		for {
			select {
			case <-t.quit:
				return
			case <-t.ticker.C:
				fn()
			}
		}
	}()

	slog.Debug("task started", "task", name, "interval", interval)
	return t
}

// Stop cancels the task and waits for any in-flight callback to finish.
// Idempotent; after Stop returns the callback will not run again.
func (t *Task) Stop() {
	t.once.Do(func() {
		t.ticker.Stop()
		close(t.quit)
	})
	<-t.done
	slog.Debug("task stopped", "task", t.name)
}

// Runner tracks a set of tasks so shutdown can stop them all.
type Runner struct {
	mu    sync.Mutex
	tasks []*Task
}

func NewRunner() *Runner {
	return &Runner{}
}

// Repeat starts a tracked task.
func (r *Runner) Repeat(name string, interval time.Duration, fn func()) *Task {
	t := Repeat(name, interval, fn)
	r.mu.Lock()
	r.tasks = append(r.tasks, t)
	r.mu.Unlock()
	return t
}

// StopAll stops every tracked task and forgets them.
func (r *Runner) StopAll() {
	r.mu.Lock()
	tasks := r.tasks
	r.tasks = nil
	r.mu.Unlock()

	for _, t := range tasks {
		t.Stop()
	}
}
