// Package bridge drives asynchronous database work to a synchronous result.
// It is the scheduling core of the reader: it decides, per call,
// whether the coroutine can run on a fresh loop, must be handed to an
// auxiliary OS thread, or is already bound to the calling loop and has to be
// awaited in place.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
)

// Coroutine is a unit of asynchronous work. It receives a context carrying
// the identity of the loop driving it.
type Coroutine func(ctx context.Context) (any, error)

// ErrCrossLoop is returned when an awaitable bound to a foreign loop is
// handed to the bridge. Awaiting such a task from any other execution path
// would deadlock or race its owning loop, so the binding is rejected up
// front instead of being discovered mid-flight.
var ErrCrossLoop = errors.New("bridge: awaitable is bound to a foreign loop")

// auxThreads counts auxiliary threads spawned for nested invocations. Tests
// assert that the in-place await path never increments it.
var auxThreads atomic.Int64

// Run drives an awaitable to completion and returns its result or error in
// the calling context. The awaitable is either a Coroutine (or a bare
// function of the same shape) or a *Task.
//
//  1. No loop in ctx: a fresh loop runs the coroutine, is torn down, and no
//     loop state leaks past the return.
//  2. A loop in ctx and a plain coroutine: the work runs on exactly one
//     auxiliary OS thread with its own fresh loop. The calling task blocks
//     until that thread's loop has been torn down; the outer loop itself
//     keeps making progress. Errors cross the thread boundary verbatim.
//  3. A loop in ctx and a *Task already bound to that same loop identity:
//     the task is awaited in place. No auxiliary thread is spawned.
func Run(ctx context.Context, awaitable any) (any, error) {
	caller := FromContext(ctx)

	switch aw := awaitable.(type) {
	case *Task:
		if caller == nil || aw.loop.id != caller.id {
			return nil, ErrCrossLoop
		}
		return aw.Await(ctx)
	case Coroutine:
		return runCoroutine(ctx, caller, aw)
	case func(ctx context.Context) (any, error):
		return runCoroutine(ctx, caller, aw)
	default:
		return nil, fmt.Errorf("bridge: unsupported awaitable type %T", awaitable)
	}
}

func runCoroutine(ctx context.Context, caller *Loop, co Coroutine) (any, error) {
	if caller == nil {
		return runFresh(ctx, co)
	}
	return runOnThread(ctx, co)
}

// runFresh handles the top-level case: new loop, run to completion, tear the
// loop down before returning.
func runFresh(ctx context.Context, co Coroutine) (any, error) {
	loop := NewLoop()
	defer loop.Close()

	task := loop.Spawn(ctx, co)
	value, err := task.Await(ctx)
	if err != nil {
		// On cancellation the deferred Close still joins the coroutine, so
		// driver resources are released before the error surfaces.
		return nil, err
	}
	return value, nil
}

// outcome crosses the thread boundary through a single-slot channel.
type outcome struct {
	value any
	err   error
}

// runOnThread handles the nested case: the calling context already belongs
// to a loop, so the coroutine runs on a dedicated OS thread with its own
// fresh loop. The thread is always joined, never detached; cancellation of
// ctx is only surfaced after the thread's loop has finished tearing down.
func runOnThread(ctx context.Context, co Coroutine) (any, error) {
	auxThreads.Add(1)

	result := make(chan outcome, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		loop := NewLoop()
		task := loop.Spawn(ctx, co)
		<-task.done
		loop.Close()
		result <- outcome{value: task.value, err: task.err}
	}()

	out := <-result
	if out.err != nil {
		return nil, out.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out.value, nil
}
