package machine

import (
	"time"

	"github.com/xyproto/env/v2"
)

// timerPeriod is the asynchronous timer interrupt period. 1 ms matches the
// simulated hardware; STRAND_TIMER_MS overrides it for slow hosts.
var timerPeriod = time.Duration(env.Int("STRAND_TIMER_MS", 1)) * time.Millisecond

// With Sync enabled, every delivery point rolls a pending timer interrupt
// with probability 1/syncInterruptOdds.
const syncInterruptOdds = 8

func (c *CPU) timerSource(stopc <-chan struct{}) {
	t := time.NewTicker(timerPeriod)
	defer t.Stop()
	for {
		select {
		case <-stopc:
			return
		case <-t.C:
			c.pendingTimer.Store(true)
		}
	}
}

// deliverTimer runs pending timer interrupts on the calling CPU. The
// handler re-enables interrupts on its own exit path, so the loop catches
// interrupts that became pending while a handler ran.
func (c *CPU) deliverTimer() {
	for {
		if c.rng != nil && c.rng.Intn(syncInterruptOdds) == 0 {
			c.pendingTimer.Store(true)
		}
		if !c.pendingTimer.CompareAndSwap(true, false) {
			return
		}
		if c.IVT[Timer] == nil {
			return
		}
		tracef("cpu%d: timer interrupt", c.ID)
		c.enabled = false // hardware vectors with interrupts masked
		c.IVT[Timer]()
		// The handler may have switched away and resumed this context on
		// another CPU.
		c = current().cpu
	}
}
