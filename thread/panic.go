package thread

import (
	"runtime/debug"
	"sync"
	"sync/atomic"

	"strand/machine"
)

// PanicInfo contains details about a panic raised by user code on a
// thread.
type PanicInfo struct {
	ThreadID uint32
	CPUID    uint32
	Value    any
	Stack    []byte
}

var (
	panicActive atomic.Bool
	panicOnce   sync.Once

	panicHandler atomic.Value // func(PanicInfo)
)

// InPanicMode reports whether user code on some thread has panicked.
func InPanicMode() bool {
	return panicActive.Load()
}

// SetPanicHandler installs a process-wide panic handler.
//
// The handler is invoked at most once, on the first user-code panic,
// before the panic resumes and aborts the process. It must not panic.
func SetPanicHandler(fn func(PanicInfo)) {
	panicHandler.Store(fn)
}

// callUser runs fn(arg), reporting a panic in user code before re-raising
// it. Every panic that unwinds out of fn is reported, including one raised
// inside a runtime call (Lock, Wait, Join, ...) that fn made; runtime panics
// raised outside fn do not pass through here.
func callUser(fn Func, arg uintptr) {
	defer func() {
		if v := recover(); v != nil {
			triggerPanic(PanicInfo{
				ThreadID: self().current.id,
				CPUID:    machine.Self().ID,
				Value:    v,
			})
			panic(v)
		}
	}()
	fn(arg)
}

func triggerPanic(info PanicInfo) {
	panicOnce.Do(func() {
		panicActive.Store(true)
		info.Stack = debug.Stack()
		if v := panicHandler.Load(); v != nil {
			if fn, ok := v.(func(PanicInfo)); ok && fn != nil {
				fn(info)
			}
		}
	})
}
