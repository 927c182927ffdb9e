package machine

import (
	"errors"
	"math/rand"
	"runtime"
	"sync"
)

// Config carries the boot parameters of the simulated machine.
type Config struct {
	NumCPUs int
	Async   bool   // asynchronous periodic timer interrupts
	Sync    bool   // pseudo-random synchronous timer interrupts
	Seed    uint32 // seed for the Sync interrupt pattern
}

// ErrConfig is returned by Run for an unusable configuration.
var ErrConfig = errors.New("machine: num_cpus must be >= 1")

// Machine is one booted simulation instance.
type Machine struct {
	cfg  Config
	cpus []*CPU

	mu     sync.Mutex
	parked int
	ended  bool
	done   chan struct{}

	stopc chan struct{} // stops the timer sources
}

// runMu serializes boots; the guard word and the runtime's globals are
// process-wide, so only one machine can be live at a time.
var runMu sync.Mutex

// Run boots cfg.NumCPUs simulated CPUs and returns once the machine has
// quiesced: every CPU parked in InterruptEnableSuspend with no IPI in
// flight. All-parked is stable, because parked CPUs ignore timer interrupts
// and only a running CPU can post an IPI.
//
// ctor is the runtime's CPU constructor. It is invoked exactly once per
// CPU, on a fresh context with interrupts disabled, and must not return:
// it ends by loading another context. Exactly one CPU receives the non-nil
// fn and is expected to seed the first user thread with it.
func Run(cfg Config, ctor func(c *CPU, fn ThreadFunc, arg uintptr), fn ThreadFunc, arg uintptr) error {
	if cfg.NumCPUs < 1 {
		return ErrConfig
	}
	runMu.Lock()
	defer runMu.Unlock()

	Guard.Store(false)
	m := &Machine{
		cfg:   cfg,
		done:  make(chan struct{}),
		stopc: make(chan struct{}),
	}
	for i := 0; i < cfg.NumCPUs; i++ {
		c := &CPU{ID: uint32(i), m: m}
		c.wake = sync.NewCond(&m.mu)
		if cfg.Sync {
			c.rng = rand.New(rand.NewSource(int64(cfg.Seed) + int64(i)))
		}
		m.cpus = append(m.cpus, c)
	}
	if cfg.Async {
		for _, c := range m.cpus {
			go c.timerSource(m.stopc)
		}
	}
	for i, c := range m.cpus {
		first, firstArg := ThreadFunc(nil), uintptr(0)
		if i == 0 {
			first, firstArg = fn, arg
		}
		go c.boot(ctor, first, firstArg)
	}
	<-m.done
	close(m.stopc)
	return nil
}

// boot runs the runtime's CPU constructor on a fresh machine context.
func (c *CPU) boot(ctor func(*CPU, ThreadFunc, uintptr), fn ThreadFunc, arg uintptr) {
	runtime.LockOSThread()
	ctx := &Context{resume: make(chan struct{}, 1), started: true, cpu: c}
	register(ctx)
	defer unregister()
	tracef("cpu%d: boot", c.ID)
	ctor(c, fn, arg) // ends in a context load, never returns here
	panic("machine: cpu constructor returned")
}

func (m *Machine) checkQuiesceLocked() {
	if m.ended || m.parked != len(m.cpus) {
		return
	}
	for _, c := range m.cpus {
		if c.pendingIPI {
			return
		}
	}
	m.ended = true
	tracef("machine: quiesced, %d cpus parked", m.parked)
	close(m.done)
}
