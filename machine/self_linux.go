//go:build linux

package machine

import "golang.org/x/sys/unix"

// callerID identifies the calling goroutine by its OS thread id. Machine
// goroutines are locked to their threads, so the id never changes under a
// running context.
func callerID() uint64 {
	return uint64(unix.Gettid())
}
