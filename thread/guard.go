package thread

import (
	"runtime"

	"strand/machine"
)

// The kernel section is the process-wide critical section: the guard word
// held with interrupts disabled on the executing CPU. Interrupts go down
// before the guard is taken so that a timer or IPI handler on this CPU
// cannot run while the guard is held and deadlock against it.

func guardAcquire() {
	machine.AssertInterruptsDisabled()
	for !machine.Guard.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

func guardRelease() {
	machine.AssertInterruptsDisabled()
	if !machine.Guard.Load() {
		panic("thread: guard released while not held")
	}
	machine.Guard.Store(false)
}

// kernelEnter and kernelExit bracket runtime code that touches shared
// scheduler state.
func kernelEnter() {
	machine.InterruptDisable()
	guardAcquire()
}

func kernelExit() {
	guardRelease()
	machine.InterruptEnable()
}

// userEnter and userExit are the inverse pair bracketing user code, which
// runs outside the kernel section with interrupts deliverable.
func userEnter() {
	guardRelease()
	machine.InterruptEnable()
}

func userExit() {
	machine.InterruptDisable()
	guardAcquire()
}
