//go:build !linux

package machine

import (
	"bytes"
	"runtime"
	"strconv"
)

// callerID identifies the calling goroutine by the goroutine id in the
// runtime stack header. Used on hosts without a cheap thread-id wrapper;
// goroutine ids are stable for the goroutine's lifetime.
func callerID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// "goroutine 123 [running]:"
	s := buf[len("goroutine "):n]
	if i := bytes.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	id, err := strconv.ParseUint(string(s), 10, 64)
	if err != nil {
		panic("machine: cannot parse goroutine id: " + err.Error())
	}
	return id
}
