package thread

import (
	"errors"
	"testing"
)

func TestCondProducerConsumer(t *testing.T) {
	var (
		m        Mutex
		cond     Cond
		list     []string
		consumed []string
	)
	runSim(t, uni, func(uintptr) {
		producer := New(func(uintptr) {
			m.Lock()
			list = append(list, "x")
			cond.Signal()
			m.Unlock()
		}, 0)
		m.Lock()
		for len(list) == 0 {
			cond.Wait(&m)
		}
		consumed = append(consumed, list[0])
		list = list[1:]
		m.Unlock()
		producer.Join()
	})
	if len(consumed) != 1 || consumed[0] != "x" {
		t.Fatalf("consumed = %v, want [x]", consumed)
	}
	if len(list) != 0 {
		t.Fatalf("list = %v, want empty", list)
	}
}

func TestCondSignalWakesInFIFOOrder(t *testing.T) {
	var (
		m       Mutex
		cond    Cond
		waiting int
		wake    []int
	)
	runSim(t, uni, func(uintptr) {
		ths := make([]*Thread, 3)
		for i := range ths {
			n := i
			ths[i] = New(func(uintptr) {
				m.Lock()
				waiting++
				cond.Wait(&m)
				wake = append(wake, n)
				m.Unlock()
			}, 0)
		}
		m.Lock()
		for waiting < 3 {
			m.Unlock()
			Yield()
			m.Lock()
		}
		cond.Signal()
		cond.Signal()
		cond.Signal()
		m.Unlock()
		for _, th := range ths {
			th.Join()
		}
	})
	for i, n := range wake {
		if n != i {
			t.Fatalf("wake order = %v, want [0 1 2]", wake)
		}
	}
	if len(wake) != 3 {
		t.Fatalf("wake order = %v, want 3 wakeups", wake)
	}
}

func TestCondBroadcastDrains(t *testing.T) {
	const waiters = 5
	var (
		m       Mutex
		cond    Cond
		waiting int
		release bool
		wake    []int
		counter int
	)
	runSim(t, uni, func(uintptr) {
		ths := make([]*Thread, waiters)
		for i := range ths {
			n := i
			ths[i] = New(func(uintptr) {
				m.Lock()
				waiting++
				for !release {
					cond.Wait(&m)
				}
				wake = append(wake, n)
				counter++
				m.Unlock()
			}, 0)
		}
		m.Lock()
		for waiting < waiters {
			m.Unlock()
			Yield()
			m.Lock()
		}
		release = true
		cond.Broadcast()
		m.Unlock()
		for _, th := range ths {
			th.Join()
		}
	})
	if counter != waiters {
		t.Fatalf("counter = %d, want %d", counter, waiters)
	}
	for i, n := range wake {
		if n != i {
			t.Fatalf("wake order = %v, want FIFO 0..%d", wake, waiters-1)
		}
	}
}

func TestCondBroadcastEmptyIsNoop(t *testing.T) {
	ran := false
	runSim(t, uni, func(uintptr) {
		var cond Cond
		cond.Broadcast()
		cond.Signal()
		ran = true
	})
	if !ran {
		t.Fatalf("broadcast on an empty cv wedged the thread")
	}
}

func TestCondWaitNotOwner(t *testing.T) {
	var freeErr, otherErr error
	runSim(t, uni, func(uintptr) {
		var (
			m    Mutex
			cond Cond
		)
		freeErr = cond.Wait(&m) // mutex not even locked
		m.Lock()
		th := New(func(uintptr) {
			otherErr = cond.Wait(&m) // held by the first thread
		}, 0)
		Yield()
		th.Join()
		m.Unlock()
	})
	if !errors.Is(freeErr, ErrNotOwner) {
		t.Fatalf("Wait() without the lock: error = %v, want ErrNotOwner", freeErr)
	}
	if !errors.Is(otherErr, ErrNotOwner) {
		t.Fatalf("Wait() by a non-owner: error = %v, want ErrNotOwner", otherErr)
	}
}
