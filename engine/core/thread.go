package core

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/anima-gpu/engine/containers"
)

type coreThreadKey struct{}

var threadChecks atomic.Bool

func init() {
	threadChecks.Store(true)
}

// SetThreadChecks enables or disables AssertCoreThread process-wide.
func SetThreadChecks(enabled bool) {
	threadChecks.Store(enabled)
}

// IsCoreThread reports whether ctx was handed out by a CoreThread to one of
// its commands.
func IsCoreThread(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	t, ok := ctx.Value(coreThreadKey{}).(*CoreThread)
	return ok && t != nil
}

// AssertCoreThread panics with a *ThreadViolation when ctx does not belong to
// the core thread. Calling device-mutating code from anywhere else is a
// programming error, so there is nothing to recover here.
func AssertCoreThread(ctx context.Context, op string) {
	if !threadChecks.Load() || IsCoreThread(ctx) {
		return
	}
	v := &ThreadViolation{Op: op}
	LogError("%s", v)
	panic(v)
}

// AsyncOp is the completion token of a command queued on the core thread.
type AsyncOp[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newAsyncOp[T any]() *AsyncOp[T] {
	return &AsyncOp[T]{done: make(chan struct{})}
}

// CompletedOp returns an AsyncOp that is already complete.
func CompletedOp[T any](value T, err error) *AsyncOp[T] {
	op := newAsyncOp[T]()
	op.complete(value, err)
	return op
}

// NewPendingOp returns an AsyncOp completed by calling complete exactly
// once, for work that runs outside the core thread.
func NewPendingOp[T any]() (*AsyncOp[T], func(value T, err error)) {
	op := newAsyncOp[T]()
	return op, op.complete
}

func (op *AsyncOp[T]) complete(value T, err error) {
	op.value = value
	op.err = err
	close(op.done)
}

// Done is closed once the command has run.
func (op *AsyncOp[T]) Done() <-chan struct{} {
	return op.done
}

func (op *AsyncOp[T]) IsComplete() bool {
	select {
	case <-op.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the command has run or ctx is done. Waiting from the
// core thread on a command that has not run yet would never return, so it
// fails with ErrWaitOnCoreThread instead.
func (op *AsyncOp[T]) Wait(ctx context.Context) (T, error) {
	if op.IsComplete() {
		return op.value, op.err
	}
	var zero T
	if IsCoreThread(ctx) {
		return zero, ErrWaitOnCoreThread
	}
	select {
	case <-op.done:
		return op.value, op.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

/**
 * @brief The single execution context allowed to touch device state.
 * Commands run one at a time, in submission order.
 */
type CoreThread struct {
	queue   *containers.RingQueue[func(context.Context)]
	mutex   sync.Mutex
	cond    *sync.Cond
	stopped bool
	done    chan struct{}
	ctx     context.Context

	lockOSThread bool
	metrics      ThreadMetrics
}

func NewCoreThread(config CoreThreadConfig) *CoreThread {
	t := &CoreThread{
		queue:        containers.NewGrowableRingQueue[func(context.Context)](config.QueueCapacity),
		done:         make(chan struct{}),
		lockOSThread: config.LockOSThread,
	}
	t.cond = sync.NewCond(&t.mutex)
	t.ctx = context.WithValue(context.Background(), coreThreadKey{}, t)

	t.start()
	return t
}

func (t *CoreThread) start() {
	go func() {
		defer close(t.done)
		if t.lockOSThread {
			// Device APIs such as OpenGL bind their context to an OS thread.
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
		}
		for {
			t.mutex.Lock()
			for t.queue.IsEmpty() && !t.stopped {
				t.cond.Wait()
			}
			if t.queue.IsEmpty() && t.stopped {
				t.mutex.Unlock()
				return
			}
			cmd, _ := t.queue.Dequeue()
			t.mutex.Unlock()

			cmd(t.ctx)
		}
	}()
}

func (t *CoreThread) enqueue(cmd func(context.Context)) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.stopped {
		return ErrThreadStopped
	}
	if err := t.queue.Enqueue(cmd); err != nil {
		return err
	}
	t.metrics.queued()
	t.cond.Signal()
	return nil
}

// Submit queues fn on the core thread and returns immediately.
func Submit[T any](t *CoreThread, fn func(ctx context.Context) (T, error)) *AsyncOp[T] {
	op := newAsyncOp[T]()
	cmd := func(ctx context.Context) {
		var (
			value T
			err   error
		)
		start := time.Now()
		func() {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %v", ErrCommandPanicked, r)
					LogError("%s", err)
				}
			}()
			value, err = fn(ctx)
		}()
		t.metrics.update(time.Since(start), err != nil)
		op.complete(value, err)
	}
	if err := t.enqueue(cmd); err != nil {
		var zero T
		op.complete(zero, err)
	}
	return op
}

// Queue queues fn on the core thread and returns immediately.
func (t *CoreThread) Queue(fn func(ctx context.Context) error) *AsyncOp[struct{}] {
	return Submit(t, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
}

// Pending returns the number of commands that have not started yet.
func (t *CoreThread) Pending() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.queue.Len()
}

func (t *CoreThread) Metrics() *ThreadMetrics {
	return &t.metrics
}

/**
 * @brief Shuts the core thread down. Already queued commands still run;
 * later submissions fail with ErrThreadStopped.
 */
func (t *CoreThread) Stop() {
	t.mutex.Lock()
	t.stopped = true
	t.cond.Broadcast()
	t.mutex.Unlock()
	<-t.done
}
