package machine

import (
	"fmt"
	"os"

	"github.com/xyproto/env/v2"
)

// Tracing is off by default; STRAND_TRACE=1 writes line-per-event dispatch
// traces to stderr for debugging scheduling problems.
var traceOn = env.Bool("STRAND_TRACE")

func tracef(format string, args ...any) {
	if !traceOn {
		return
	}
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// Tracef writes to the machine trace sink, so that callers outside the
// package can interleave their events with the machine's. The thread
// runtime makes no calls to it.
func Tracef(format string, args ...any) { tracef(format, args...) }
