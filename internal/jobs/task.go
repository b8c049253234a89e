package jobs

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the lifecycle state of a Task.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// ErrCancelled is reported by Wait when the task was cancelled before it ran.
var ErrCancelled = errors.New("task cancelled")

// Func is the deferred work of a task. Its result is kept on the task.
type Func func(ctx context.Context) (any, error)

// Task is a single delayed mutation. Callers either wait for it or cancel it.
type Task struct {
	ID        string
	Kind      string
	Subject   string
	CreatedAt time.Time
	FiresAt   time.Time

	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
	state    State
	result   any
	err      error
	finished time.Time
}

// Info is a point-in-time view of a task, safe to serialize.
type Info struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Subject    string     `json:"subject,omitempty"`
	State      State      `json:"state"`
	CreatedAt  time.Time  `json:"createdAt"`
	FiresAt    time.Time  `json:"firesAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Error      string     `json:"error,omitempty"`
	Result     any        `json:"result,omitempty"`
}

// Done is closed once the task reached a final state.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Cancel stops the task if it has not fired yet. Once the work started, or
// after the task finished, Cancel has no effect.
func (t *Task) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StatePending {
		t.cancel()
	}
}

// start moves a fired task to running unless it was cancelled first. The
// check and the transition share the lock with Cancel.
func (t *Task) start(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	t.state = StateRunning
	return true
}

// Wait blocks until the task finishes or ctx ends. It returns the task's
// error, ErrCancelled for a cancelled task, or ctx.Err().
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == StateCancelled {
		return ErrCancelled
	}
	return t.err
}

// State returns the current state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Result returns the value produced by the task's Func, if any.
func (t *Task) Result() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Info snapshots the task.
func (t *Task) Info() Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	info := Info{
		ID:        t.ID,
		Kind:      t.Kind,
		Subject:   t.Subject,
		State:     t.state,
		CreatedAt: t.CreatedAt,
		FiresAt:   t.FiresAt,
		Result:    t.result,
	}
	if !t.finished.IsZero() {
		finished := t.finished
		info.FinishedAt = &finished
	}
	if t.err != nil {
		info.Error = t.err.Error()
	}
	return info
}

func (t *Task) finish(state State, result any, err error, at time.Time) {
	t.mu.Lock()
	t.state = state
	t.result = result
	t.err = err
	t.finished = at
	t.mu.Unlock()
	close(t.done)
}
