package cortexm

import (
	"fmt"

	"omibyte.io/halos/src/runtime/fault"
)

// Exception is an exception number as stored in IPSR.
type Exception int

const (
	Reset        Exception = 1
	NMI          Exception = 2
	HardFault    Exception = 3
	MemManage    Exception = 4
	BusFault     Exception = 5
	UsageFault   Exception = 6
	SVCall       Exception = 11
	DebugMonitor Exception = 12
	PendSV       Exception = 14
	SysTick      Exception = 15

	// NumSystemExceptions is the number of vector slots before IRQ 0,
	// including the initial stack pointer in slot 0.
	NumSystemExceptions = 16
)

var exceptionNames = map[Exception]string{
	Reset:        "Reset",
	NMI:          "NMI",
	HardFault:    "HardFault",
	MemManage:    "MemManage",
	BusFault:     "BusFault",
	UsageFault:   "UsageFault",
	SVCall:       "SVCall",
	DebugMonitor: "DebugMonitor",
	PendSV:       "PendSV",
	SysTick:      "SysTick",
}

func (e Exception) String() string {
	if name, ok := exceptionNames[e]; ok {
		return name
	}
	if e >= NumSystemExceptions {
		return fmt.Sprintf("IRQ%d", int(e-NumSystemExceptions))
	}
	return fmt.Sprintf("Reserved%d", int(e))
}

// IRQ returns the exception number of external interrupt i.
func IRQ(i Interrupt) Exception {
	return Exception(NumSystemExceptions + int(i))
}

type Handler func()

// VectorTable holds one optional handler per exception. Its size is fixed
// when it is created. Empty slots dispatch to the default handler, which
// faults.
type VectorTable struct {
	handlers []Handler
}

func NewVectorTable(numIRQ int) *VectorTable {
	if numIRQ < 0 || numIRQ > MaxIRQ {
		fault.Abortf("cortexm: %d external interrupts not supported", numIRQ)
	}
	return &VectorTable{
		handlers: make([]Handler, NumSystemExceptions+numIRQ),
	}
}

// Len returns the number of slots, system exceptions included.
func (v *VectorTable) Len() int {
	return len(v.handlers)
}

// NumIRQ returns the number of external interrupt slots.
func (v *VectorTable) NumIRQ() int {
	return len(v.handlers) - NumSystemExceptions
}

// Set installs h for exc. A nil h empties the slot.
func (v *VectorTable) Set(exc Exception, h Handler) {
	if exc <= 0 || int(exc) >= len(v.handlers) {
		fault.Abortf("cortexm: no vector slot for exception %d", int(exc))
	}
	v.handlers[exc] = h
}

// SetIRQ installs h for external interrupt i.
func (v *VectorTable) SetIRQ(i Interrupt, h Handler) {
	v.Set(IRQ(i), h)
}

func (v *VectorTable) Handler(exc Exception) Handler {
	if exc <= 0 || int(exc) >= len(v.handlers) {
		return nil
	}
	return v.handlers[exc]
}

// Dispatch runs the handler of exc.
func (v *VectorTable) Dispatch(exc Exception) {
	if h := v.Handler(exc); h != nil {
		h()
		return
	}
	DefaultHandler(exc)
}

// DefaultHandler is run for exceptions without a handler.
func DefaultHandler(exc Exception) {
	fault.Abortf("unhandled exception %s", exc)
}
