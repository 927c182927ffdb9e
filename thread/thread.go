// Package thread is a preemptive user-level thread runtime for the
// simulated multiprocessor in strand/machine: threads with join, FIFO
// mutexes with direct hand-off, and Mesa condition variables, multiplexed
// onto a fixed set of CPUs with timer preemption and IPI wakeups.
package thread

import (
	"errors"
	"fmt"
	"os"

	"strand/machine"
)

// Func is the entry-point type for user threads.
type Func = machine.ThreadFunc

// ErrNotOwner is returned by Mutex.Unlock and Cond.Wait when the calling
// thread does not hold the mutex.
var ErrNotOwner = errors.New("thread: mutex not held by calling thread")

// Thread is a handle to a created thread, usable for Join. Handles must
// not be copied.
type Thread struct {
	t *tcb
}

// New creates a thread executing fn(arg) and makes it runnable. fn must
// not be nil. Must be called from a running thread on a booted machine.
func New(fn Func, arg uintptr) *Thread {
	if fn == nil {
		panic("thread: nil entry function")
	}
	kernelEnter()
	defer kernelExit()
	if !global.booted {
		panic("thread: machine not booted")
	}
	t := newTCB(func() { execute(fn, arg) })
	pushToQueue(t)
	return &Thread{t: t}
}

// execute wraps every user thread: run fn inside a user section, then move
// the joiners to the ready queue, record the thread finished, and
// dispatch. The finished context must never be re-entered, so the dispatch
// is one-way.
func execute(fn Func, arg uintptr) {
	machine.AssertInterruptsDisabled()
	userEnter()
	callUser(fn, arg)
	userExit()

	cs := self()
	cur := cs.current
	for !cur.joiners.empty() {
		pushToQueue(cur.joiners.pop())
	}
	cur.status = statusFinished
	global.finished = append(global.finished, cur)

	if !global.ready.empty() {
		next := global.ready.pop()
		cs.current = next
		next.status = statusRunning
		machine.Load(next.ctx)
	}
	suspendCPU()
}

// Yield gives the CPU to the next ready thread. With nothing ready the
// calling thread just keeps running.
func Yield() {
	kernelEnter()
	defer kernelExit()
	cs := self()
	if cs.current == nil {
		panic("thread: yield with no running thread")
	}
	if global.ready.empty() {
		return
	}
	prev := cs.current
	next := global.ready.pop()
	cs.current = next
	pushToQueue(prev)
	next.status = statusRunning
	machine.SaveAndSwitch(prev.ctx, next.ctx)
	clearFinished(prev)
}

// Join blocks until the thread finishes. Joining a thread that already
// finished, or whose control block was already reclaimed, returns
// immediately.
func (th *Thread) Join() {
	kernelEnter()
	defer kernelExit()
	t := th.t
	if t == nil || t.status == statusFinished {
		return
	}
	cs := self()
	cs.current.status = statusBlocked
	t.joiners.push(cs.current)
	getNextThread()
}

// Run boots the simulated machine, runs fn(arg) as the first thread, and
// returns once every thread has run to completion or blocked forever and
// all CPUs have parked. It is the in-process form of Boot, for tests and
// embedding programs that need the outcome.
func Run(cfg machine.Config, fn Func, arg uintptr) error {
	resetGlobal()
	return machine.Run(cfg, cpuInit, fn, arg)
}

// Boot starts numCPUs simulated CPUs and runs fn(arg) as the first thread.
// On success it never returns: the process exits once the machine has
// quiesced.
func Boot(numCPUs int, fn Func, arg uintptr, async, sync bool, seed uint32) {
	cfg := machine.Config{NumCPUs: numCPUs, Async: async, Sync: sync, Seed: seed}
	if err := Run(cfg, fn, arg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(0)
}
