// Package fault is the single unrecoverable error path of the runtime.
package fault

import "fmt"

// Error is implemented by every fault raised by the runtime.
type Error interface {
	error
	RuntimeError()
}

// Trap describes why the system stopped.
type Trap struct {
	Reason string
}

func (*Trap) RuntimeError() {}

func (t *Trap) Error() string {
	return "fault: " + t.Reason
}

// Handler receives every trap. It must not return: on hardware it masks
// interrupts and halts the core, a hosted core stops its tasks.
type Handler func(t *Trap)

var handler Handler = raise

func raise(t *Trap) {
	panic(t)
}

// SetHandler installs h and returns the previous handler. A nil h restores
// the default, which panics with the *Trap.
func SetHandler(h Handler) Handler {
	prev := handler
	if h == nil {
		h = raise
	}
	handler = h
	return prev
}

// Abort stops the system. It never returns.
func Abort(reason string) {
	t := &Trap{Reason: reason}
	handler(t)

	// A handler that returns is itself a fault.
	panic(t)
}

func Abortf(format string, args ...any) {
	Abort(fmt.Sprintf(format, args...))
}
