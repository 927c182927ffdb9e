package machine

import (
	"runtime"
	"sync"
)

// Context is a saved execution context: enough state to resume a suspended
// computation, possibly on a different CPU. Each context is backed by one
// goroutine locked to its own OS thread; the goroutine starts on the first
// dispatch and ends when the context is abandoned with Load.
type Context struct {
	entry   func()
	resume  chan struct{} // cap 1: a dispatch may land before the park does
	started bool          // mutated only under the runtime's guard
	cpu     *CPU          // CPU currently (or last) executing this context
}

// NewContext binds a fresh context to its stack buffer and entry function.
// The entry runs when the context is first dispatched, inheriting whatever
// guard and interrupt state the switching code left in place. The stack
// buffer is owned by the caller for the context's lifetime; execution on
// the host runs on the backing goroutine's stack.
func NewContext(stack []byte, entry func()) *Context {
	if len(stack) == 0 {
		panic("machine: context needs a stack")
	}
	if entry == nil {
		panic("machine: context needs an entry function")
	}
	return &Context{entry: entry, resume: make(chan struct{}, 1)}
}

// SaveAndSwitch saves the calling context into from and resumes to. It
// returns when from is next dispatched, on whichever CPU picked it up. The
// caller must hold the guard with interrupts disabled.
func SaveAndSwitch(from, to *Context) {
	cur := current()
	if cur != from {
		panic("machine: SaveAndSwitch from a context that is not executing")
	}
	// Read the CPU before to becomes runnable: once to runs and drops the
	// guard, another CPU may dispatch from again and rewrite from.cpu.
	on := cur.cpu
	to.dispatch(on)
	<-from.resume
}

// Load resumes to and abandons the calling context, which must never be
// dispatched again. It does not return.
func Load(to *Context) {
	on := current().cpu
	to.dispatch(on)
	runtime.Goexit() // runs the registry cleanup and retires the OS thread
}

func (c *Context) dispatch(on *CPU) {
	c.cpu = on
	if !c.started {
		c.started = true
		go c.run()
		return
	}
	c.resume <- struct{}{}
}

func (c *Context) run() {
	runtime.LockOSThread()
	register(c)
	defer unregister()
	c.entry()
	panic("machine: context entry function returned")
}

// contexts maps OS thread id (goroutine id on non-linux hosts) to the
// context running there. Machine goroutines are locked to their threads,
// so the key is stable for the goroutine's lifetime.
var contexts sync.Map

func register(c *Context) { contexts.Store(callerID(), c) }
func unregister()         { contexts.Delete(callerID()) }

func current() *Context {
	v, ok := contexts.Load(callerID())
	if !ok {
		panic("machine: caller is not running on a machine context")
	}
	return v.(*Context)
}
