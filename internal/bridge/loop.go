package bridge

import (
	"context"
	"sync"
	"sync/atomic"
)

var nextLoopID atomic.Uint64

// Loop is an identity-bearing execution scope for coroutines. Every task
// spawned on a loop carries the loop's identity in its context, which is how
// nested bridge calls detect that they are already running "inside" a loop.
//
// Tasks of one loop run on their own goroutines so that a task may await a
// sibling task without deadlocking; the loop identity, not a single carrier
// thread, is the authoritative notion of ownership.
type Loop struct {
	id uint64
	wg sync.WaitGroup
}

// NewLoop creates a loop with a fresh identity token.
func NewLoop() *Loop {
	return &Loop{id: nextLoopID.Add(1)}
}

// ID returns the loop's identity token.
func (l *Loop) ID() uint64 {
	return l.id
}

// Spawn schedules a coroutine on the loop and returns the bound task.
func (l *Loop) Spawn(ctx context.Context, co Coroutine) *Task {
	t := &Task{
		loop: l,
		done: make(chan struct{}),
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer close(t.done)
		t.value, t.err = co(WithLoop(ctx, l))
	}()
	return t
}

// Close tears the loop down: it joins every task spawned on it. It must not
// be called from within one of the loop's own tasks.
func (l *Loop) Close() {
	l.wg.Wait()
}

// Task is a coroutine bound to the loop it was spawned on. The binding is
// permanent: a task may only be awaited in-place by code running on the same
// loop, or via its done channel once the owning loop has driven it.
type Task struct {
	loop  *Loop
	done  chan struct{}
	value any
	err   error
}

// Loop returns the loop the task is bound to.
func (t *Task) Loop() *Loop {
	return t.loop
}

// Await blocks until the task completes or ctx is cancelled.
func (t *Task) Await(ctx context.Context) (any, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type loopKey struct{}

// WithLoop records the executing loop in the invocation context. The binding
// is established at bridge entry and never mutated afterwards.
func WithLoop(ctx context.Context, l *Loop) context.Context {
	return context.WithValue(ctx, loopKey{}, l)
}

// FromContext reports the loop driving the calling context, or nil when the
// caller is top-level synchronous code.
func FromContext(ctx context.Context) *Loop {
	l, _ := ctx.Value(loopKey{}).(*Loop)
	return l
}
