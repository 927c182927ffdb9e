package thread

import "strand/machine"

// Process-wide scheduler state, mutated only inside the kernel section.
// Reset by Run; there is no teardown, the lifetime is the process.
var global struct {
	ready    fifo[*tcb]         // runnable threads
	sleeping fifo[*machine.CPU] // parked CPUs awaiting an IPI
	finished []*tcb             // finished threads awaiting reclamation

	numThreads uint32
	numCPUs    uint32
	booted     bool
}

func resetGlobal() {
	global.ready = fifo[*tcb]{}
	global.sleeping = fifo[*machine.CPU]{}
	global.finished = nil
	global.numThreads = 0
	global.numCPUs = 0
	global.booted = false
}

// cpuState is the per-CPU half of the scheduler, hung on machine.CPU.Local.
type cpuState struct {
	id      uint32
	current *tcb // thread whose context is loaded on this CPU (idle when parked)
	idle    *tcb // dedicated idle context
}

func self() *cpuState {
	return machine.Self().Local.(*cpuState)
}

// cpuInit is the CPU constructor handed to machine.Run. It installs the
// interrupt handlers, builds the idle context, seeds the first user thread
// on the designated CPU, and dispatches. It does not return.
func cpuInit(c *machine.CPU, fn Func, arg uintptr) {
	machine.AssertInterruptsDisabled()
	guardAcquire()

	global.booted = true
	cs := &cpuState{id: global.numCPUs}
	global.numCPUs++
	c.Local = cs

	c.IVT[machine.Timer] = timerInterrupt
	c.IVT[machine.IPI] = ipiInterrupt

	cs.idle = newTCB(idleLoop)

	if fn != nil {
		pushToQueue(newTCB(func() { execute(fn, arg) }))
	}

	beginProcess()
}

// beginProcess dispatches the first thread on a freshly constructed CPU,
// or parks when there is no work yet. One-way: the boot context is
// abandoned.
func beginProcess() {
	cs := self()
	if !global.ready.empty() {
		next := global.ready.pop()
		cs.current = next
		next.status = statusRunning
		machine.Load(next.ctx)
	}
	suspendCPU()
}

// getNextThread hands the CPU off after the current thread blocked and was
// queued elsewhere: dispatch the next ready thread, or park. Returns when
// the blocked thread is dispatched again.
func getNextThread() {
	machine.AssertInterruptsDisabled()
	cs := self()
	if global.ready.empty() {
		suspendCPU()
		return
	}
	prev := cs.current
	if prev.status != statusBlocked {
		panic("thread: handoff from a " + prev.status.String() + " thread")
	}
	next := global.ready.pop()
	if next.status != statusReady {
		panic("thread: ready queue held a " + next.status.String() + " thread")
	}
	cs.current = next
	next.status = statusRunning
	machine.SaveAndSwitch(prev.ctx, next.ctx)
	clearFinished(prev)
}

// suspendCPU switches to the idle context. The CPU re-enters the scheduler
// from the idle loop when an IPI announces new work.
func suspendCPU() {
	machine.AssertInterruptsDisabled()
	cs := self()
	if cs.current != nil {
		prev := cs.current
		cs.current = cs.idle
		machine.SaveAndSwitch(prev.ctx, cs.idle.ctx)
		return
	}
	// Initial boot with no work: nothing to save.
	cs.current = cs.idle
	machine.Load(cs.idle.ctx)
}

// idleLoop runs on each CPU's dedicated idle context: advertise the CPU as
// sleeping, drop the guard, park until an IPI. A spurious wake (the ready
// queue was drained before this CPU got to it) parks again.
func idleLoop() {
	for {
		machine.AssertInterruptsDisabled()
		global.sleeping.push(machine.Self())
		guardRelease()
		machine.InterruptEnableSuspend()
		// Back from the IPI handler with interrupts masked and the guard
		// held, either on the spurious path or because a later suspend
		// resumed this context.
	}
}

// fetchCPU wakes one parked CPU, if any. Called whenever a thread becomes
// ready.
func fetchCPU() {
	machine.AssertInterruptsDisabled()
	if !global.sleeping.empty() {
		global.sleeping.pop().InterruptSend()
	}
}

// pushToQueue makes t runnable and pokes a parked CPU to come and get it.
func pushToQueue(t *tcb) {
	machine.AssertInterruptsDisabled()
	switch t.status {
	case statusRunning, statusBlocked, statusFresh:
	default:
		panic("thread: enqueue of a " + t.status.String() + " thread")
	}
	t.status = statusReady
	global.ready.push(t)
	fetchCPU()
}

// clearFinished reclaims finished threads' stacks and contexts. Callable
// only after a context switch has landed cur back on its own stack, so no
// CPU can still be executing on a stack being dropped.
func clearFinished(cur *tcb) {
	machine.AssertInterruptsDisabled()
	if len(global.finished) == 0 {
		return
	}
	for _, t := range global.finished {
		if t.status != statusFinished {
			panic("thread: finished list held a " + t.status.String() + " thread")
		}
		if t == cur {
			panic("thread: reclaiming the running thread")
		}
		t.stack = nil
		t.ctx = nil
	}
	global.finished = nil
}

// timerInterrupt preempts the current user thread. The idle context is
// never preempted.
func timerInterrupt() {
	kernelEnter()
	cs := self()
	idle := cs.current == cs.idle
	kernelExit()
	if idle {
		return
	}
	Yield()
}

// ipiInterrupt runs on a CPU that just woke from enable-and-suspend: claim
// a ready thread unless the wake was spurious. Returns with interrupts
// masked and the guard held, as the idle loop expects.
func ipiInterrupt() {
	machine.InterruptDisable()
	guardAcquire()
	if global.ready.empty() {
		return // spurious: another CPU drained the queue first
	}
	cs := self()
	prev := cs.current
	if prev != cs.idle {
		panic("thread: ipi dispatch on a cpu that is not parked")
	}
	next := global.ready.pop()
	if next.status != statusReady {
		panic("thread: ready queue held a " + next.status.String() + " thread")
	}
	cs.current = next
	next.status = statusRunning
	machine.SaveAndSwitch(prev.ctx, next.ctx)
}
