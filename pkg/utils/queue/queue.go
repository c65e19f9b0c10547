package queue

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Task is one unit of work executed on a repository's serial worker
type Task func(ctx context.Context) error

// ErrorHook receives the error of every failed task, including
// recovered panics, after it has been logged.
type ErrorHook func(err error)

// Option configures a Queue
type Option func(*Queue)

// WithErrorHook installs a hook invoked for every task failure
func WithErrorHook(hook ErrorHook) Option {
	return func(q *Queue) {
		q.errorHook = hook
	}
}

// Queue serializes work per repository key. Tasks for the same key run
// strictly in submission order, one at a time; tasks for different keys
// run concurrently. This keeps race-prone event bursts (e.g. a command
// arriving while a previous command is still mutating branches) from
// interleaving.
type Queue struct {
	mu        sync.Mutex
	workers   map[string]chan Task
	wg        sync.WaitGroup
	sending   sync.WaitGroup
	buffer    int
	closed    bool
	errorHook ErrorHook
}

// New creates a queue. buffer is the per-key channel capacity; when a
// key's channel is full, Submit blocks until the worker catches up.
func New(buffer int, opts ...Option) *Queue {
	if buffer <= 0 {
		buffer = 64
	}
	q := &Queue{
		workers: make(map[string]chan Task),
		buffer:  buffer,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Submit enqueues a task for the given key. The task runs on a new
// background context with the submitter's logger preserved, so webhook
// response deadlines never cancel in-flight release mutations. Returns
// false when the queue is shut down.
func (q *Queue) Submit(ctx context.Context, key string, task Task) bool {
	taskCtx := newBackgroundContext(ctx)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	ch, ok := q.workers[key]
	if !ok {
		ch = make(chan Task, q.buffer)
		q.workers[key] = ch
		q.wg.Add(1)
		go q.run(taskCtx, key, ch)
	}
	// Registered under the lock so Shutdown cannot close the channel
	// while this send is still blocked on a full buffer.
	q.sending.Add(1)
	q.mu.Unlock()
	defer q.sending.Done()

	ch <- func(context.Context) error {
		return runTask(taskCtx, task)
	}
	return true
}

// Shutdown stops accepting tasks and waits for queued work to drain
func (q *Queue) Shutdown() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	// Workers keep draining here, so blocked senders finish before the
	// channels close.
	q.sending.Wait()

	q.mu.Lock()
	for _, ch := range q.workers {
		close(ch)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) run(ctx context.Context, key string, ch chan Task) {
	defer q.wg.Done()
	logger := ctxlog.From(ctx).With("queue_key", key)
	for task := range ch {
		if err := task(ctx); err != nil {
			logger.Error("error in queued task", "error", err)
			if q.errorHook != nil {
				q.errorHook(err)
			}
		}
	}
}

// runTask executes one task with panic recovery so a single bad event
// never kills the worker for its repository.
func runTask(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			ctxlog.From(ctx).Error("panic in queued task",
				"recover", r,
				"stack", string(stack))
			err = goerr.New("panic in queued task",
				goerr.V("recover", r))
		}
	}()
	return task(ctx)
}

// newBackgroundContext detaches from the caller's cancellation while
// preserving the ctxlog logger.
func newBackgroundContext(ctx context.Context) context.Context {
	newCtx := context.Background()
	newCtx = ctxlog.With(newCtx, ctxlog.From(ctx))
	return newCtx
}
