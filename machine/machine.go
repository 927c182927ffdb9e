// Package machine simulates the multiprocessor that the thread runtime
// schedules on: a fixed set of CPUs with per-CPU interrupt masking,
// inter-processor interrupts, a shared atomic guard word, and save/load of
// execution contexts.
//
// The host implementation backs every context (and every CPU's boot
// sequence) with a goroutine locked to its own OS thread, so "which CPU is
// this code on" is answered by thread identity. A host cannot preempt a
// running goroutine asynchronously, so pending timer interrupts are
// delivered when the victim CPU next enables interrupts; parked CPUs ignore
// them entirely.
package machine

import (
	"math/rand"
	"sync"
	"sync/atomic"
)

// Interrupt vector slots.
const (
	Timer = 0
	IPI   = 1
)

// ThreadFunc is the entry-point type for user threads.
type ThreadFunc func(arg uintptr)

// Handler is an interrupt handler installed in a CPU's vector table.
type Handler func()

// Guard is the shared atomic guard word. The thread runtime must hold it,
// with interrupts disabled on the executing CPU, around every context
// switch. Cleared on each boot.
var Guard atomic.Bool

// CPU is one simulated processor.
//
// IVT and Local are written by the runtime's CPU constructor before the
// first dispatch on that CPU and never concurrently afterwards.
type CPU struct {
	ID  uint32
	IVT [2]Handler

	// Local is a scratch slot where the runtime hangs its per-CPU state.
	Local any

	m *Machine

	wake       *sync.Cond // on m.mu; guards pendingIPI
	pendingIPI bool

	enabled      bool // interrupt mask; touched only by the executing context
	pendingTimer atomic.Bool
	rng          *rand.Rand // synchronous-interrupt source, nil unless Sync
}

// InterruptDisable masks interrupts on the executing CPU.
func InterruptDisable() {
	current().cpu.enabled = false
}

// InterruptEnable unmasks interrupts on the executing CPU and delivers any
// pending timer interrupt. Every call is therefore a preemption point.
func InterruptEnable() {
	c := current().cpu
	c.enabled = true
	c.deliverTimer()
}

// InterruptEnableSuspend atomically unmasks interrupts and parks the
// executing CPU until an inter-processor interrupt arrives. Timer
// interrupts are ignored while parked. On wakeup the IPI handler runs, with
// interrupts re-masked, before the call returns.
func InterruptEnableSuspend() {
	c := current().cpu
	m := c.m
	m.mu.Lock()
	c.enabled = true
	m.parked++
	tracef("cpu%d: parked", c.ID)
	m.checkQuiesceLocked()
	for !c.pendingIPI {
		c.wake.Wait()
	}
	c.pendingIPI = false
	m.parked--
	c.enabled = false
	c.pendingTimer.Store(false) // drop ticks that arrived while parked
	m.mu.Unlock()
	tracef("cpu%d: ipi interrupt", c.ID)
	c.IVT[IPI]()
}

// InterruptSend posts an inter-processor interrupt to c. Posting before the
// target has actually parked is allowed; the interrupt is consumed when the
// target next suspends, so the wakeup cannot be lost.
func (c *CPU) InterruptSend() {
	m := c.m
	m.mu.Lock()
	c.pendingIPI = true
	m.mu.Unlock()
	c.wake.Signal()
	tracef("cpu%d: ipi posted", c.ID)
}

// Self returns the CPU the calling context is executing on.
func Self() *CPU {
	return current().cpu
}

// AssertInterruptsDisabled aborts if interrupts are enabled on the
// executing CPU.
func AssertInterruptsDisabled() {
	if current().cpu.enabled {
		panic("machine: interrupts unexpectedly enabled")
	}
}

// AssertInterruptsEnabled aborts if interrupts are disabled on the
// executing CPU.
func AssertInterruptsEnabled() {
	if !current().cpu.enabled {
		panic("machine: interrupts unexpectedly disabled")
	}
}
