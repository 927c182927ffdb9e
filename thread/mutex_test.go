package thread

import (
	"errors"
	"testing"
)

func TestMutexUncontended(t *testing.T) {
	var unlockErr error
	runSim(t, uni, func(uintptr) {
		var m Mutex
		m.Lock()
		unlockErr = m.Unlock()
	})
	if unlockErr != nil {
		t.Fatalf("Unlock() error = %v, want nil", unlockErr)
	}
}

func TestMutexFIFOFairness(t *testing.T) {
	var order []int
	runSim(t, uni, func(uintptr) {
		var m Mutex
		m.Lock()
		ths := make([]*Thread, 10)
		for i := range ths {
			n := i + 1
			ths[i] = New(func(uintptr) {
				m.Lock()
				order = append(order, n)
				m.Unlock()
			}, 0)
		}
		// One yield walks every contender into the wait queue: each blocks
		// on the lock and hands its CPU to the next.
		Yield()
		m.Unlock()
		for _, th := range ths {
			th.Join()
		}
	})
	if len(order) != 10 {
		t.Fatalf("acquisitions = %v, want 10 entries", order)
	}
	for i, n := range order {
		if n != i+1 {
			t.Fatalf("acquisition order = %v, want 1..10 in order", order)
		}
	}
}

func TestMutexHandoffOwnership(t *testing.T) {
	var relockErr error
	stole := false
	runSim(t, uni, func(uintptr) {
		var m Mutex
		m.Lock()
		waiter := New(func(uintptr) {
			m.Lock() // resumes owning the lock via hand-off
			relockErr = m.Unlock()
		}, 0)
		Yield() // waiter blocks on the lock
		m.Unlock()
		// The lock was handed to the waiter: it is not free for us even
		// though the waiter has not run yet.
		if err := m.Unlock(); !errors.Is(err, ErrNotOwner) {
			stole = true
		}
		waiter.Join()
	})
	if stole {
		t.Fatalf("releaser could unlock again after handing the lock off")
	}
	if relockErr != nil {
		t.Fatalf("waiter Unlock() error = %v, want nil", relockErr)
	}
}

func TestMutexNotOwner(t *testing.T) {
	var freeErr, otherErr error
	runSim(t, uni, func(uintptr) {
		var m Mutex
		freeErr = m.Unlock() // never locked
		m.Lock()
		th := New(func(uintptr) {
			otherErr = m.Unlock() // held by the first thread
		}, 0)
		Yield()
		th.Join()
		m.Unlock()
	})
	if !errors.Is(freeErr, ErrNotOwner) {
		t.Fatalf("Unlock() of a free mutex: error = %v, want ErrNotOwner", freeErr)
	}
	if !errors.Is(otherErr, ErrNotOwner) {
		t.Fatalf("Unlock() by a non-owner: error = %v, want ErrNotOwner", otherErr)
	}
}
