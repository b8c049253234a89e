package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"perfdash-backend/internal/logger"
)

// ErrRunnerClosed is returned by Schedule after Shutdown.
var ErrRunnerClosed = errors.New("runner is shut down")

// Observer receives task lifecycle events. metrics.Metrics implements it.
type Observer interface {
	TaskScheduled(kind string)
	TaskFinished(kind, state string)
}

type nopObserver struct{}

func (nopObserver) TaskScheduled(string)         {}
func (nopObserver) TaskFinished(string, string) {}

// Runner owns every delayed task of the process. Tasks are derived from the
// runner's context, so Shutdown cancels whatever has not fired yet.
type Runner struct {
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	closed    bool
	tasks     *cache.Cache
	retention time.Duration
	log       *logger.Logger
	observer  Observer
}

// NewRunner creates a runner. Finished tasks stay retrievable for retention.
func NewRunner(log *logger.Logger, retention time.Duration, observer Observer) *Runner {
	if observer == nil {
		observer = nopObserver{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		ctx:       ctx,
		cancel:    cancel,
		tasks:     cache.New(retention, 2*retention),
		retention: retention,
		log:       log,
		observer:  observer,
	}
}

type scheduleOptions struct {
	subject  string
	onCancel func()
}

// ScheduleOption customizes a scheduled task.
type ScheduleOption func(*scheduleOptions)

// WithSubject tags the task with the id of the record it mutates.
func WithSubject(subject string) ScheduleOption {
	return func(o *scheduleOptions) { o.subject = subject }
}

// OnCancel registers a hook that runs when the task is cancelled before it
// fired, including cancellation by Shutdown.
func OnCancel(fn func()) ScheduleOption {
	return func(o *scheduleOptions) { o.onCancel = fn }
}

// Schedule runs fn once delay has elapsed.
func (r *Runner) Schedule(kind string, delay time.Duration, fn Func, opts ...ScheduleOption) (*Task, error) {
	var o scheduleOptions
	for _, opt := range opts {
		opt(&o)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRunnerClosed
	}
	r.wg.Add(1)
	r.mu.Unlock()

	now := time.Now().UTC()
	ctx, cancel := context.WithCancel(r.ctx)
	task := &Task{
		ID:        uuid.NewString(),
		Kind:      kind,
		Subject:   o.subject,
		CreatedAt: now,
		FiresAt:   now.Add(delay),
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StatePending,
	}
	r.tasks.Set(task.ID, task, cache.NoExpiration)
	r.observer.TaskScheduled(kind)
	r.log.Debug("task scheduled", "task", task.ID, "kind", kind, "subject", o.subject, "delay", delay)

	go r.run(ctx, task, delay, fn, o)
	return task, nil
}

func (r *Runner) run(ctx context.Context, t *Task, delay time.Duration, fn Func, o scheduleOptions) {
	defer r.wg.Done()
	defer t.cancel()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	if !t.start(ctx) {
		if o.onCancel != nil {
			o.onCancel()
		}
		r.complete(t, StateCancelled, nil, nil)
		return
	}

	// A running task always finishes its work, even through Shutdown.
	result, err := fn(context.WithoutCancel(ctx))
	if err != nil {
		r.log.Warn("task failed", "task", t.ID, "kind", t.Kind, "subject", t.Subject, "error", err)
		r.complete(t, StateFailed, result, err)
		return
	}
	r.complete(t, StateSucceeded, result, nil)
}

func (r *Runner) complete(t *Task, state State, result any, err error) {
	r.tasks.Set(t.ID, t, r.retention)
	r.observer.TaskFinished(t.Kind, string(state))
	r.log.Debug("task finished", "task", t.ID, "kind", t.Kind, "state", state)
	// Waiters are released last so they observe the bookkeeping above.
	t.finish(state, result, err, time.Now().UTC())
}

// Get returns a pending task or a finished one still within retention.
func (r *Runner) Get(id string) (*Task, bool) {
	v, ok := r.tasks.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*Task), true
}

// Pending returns the pending task of the given kind for subject, if any.
func (r *Runner) Pending(kind, subject string) (*Task, bool) {
	return r.find(kind, subject, StatePending)
}

// Active returns the pending or running task of the given kind for subject.
func (r *Runner) Active(kind, subject string) (*Task, bool) {
	return r.find(kind, subject, StatePending, StateRunning)
}

func (r *Runner) find(kind, subject string, states ...State) (*Task, bool) {
	for _, item := range r.tasks.Items() {
		t := item.Object.(*Task)
		if t.Kind != kind || t.Subject != subject {
			continue
		}
		state := t.State()
		for _, s := range states {
			if state == s {
				return t, true
			}
		}
	}
	return nil, false
}

// Shutdown cancels every pending task and waits for their goroutines,
// including running ones.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
