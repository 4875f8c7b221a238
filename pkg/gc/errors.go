package gc

import (
	"errors"
	"fmt"
)

// ErrOOM is returned by Allocate when the allocator failed to produce a
// cell even after one forced-GC retry. Callers compare against it with
// errors.Is. ErrResetIncremental below is the only other sentinel; every
// other recoverable condition is a driver state transition rather than
// a value a caller branches on.
var ErrOOM = errors.New("gc: out of memory")

// ErrResetIncremental is the recoverable condition the driver surfaces
// when Reset(...) interrupts an in-progress incremental collection. It
// is informational: the driver has already transitioned to NotActive by
// the time this is returned.
var ErrResetIncremental = errors.New("gc: incremental collection was reset")

// fatalf panics with a formatted message. Used for conditions that abort
// the process outright: cross-zone protocol violations caught by the
// debug validator, finalizer faults, and barrier calls from a forbidden
// thread. No custom panic type, no recover anywhere in this package.
func fatalf(format string, args ...any) {
	panic(fmt.Sprintf(format, args...))
}
