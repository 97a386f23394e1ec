package cortexm

import (
	"errors"
	"fmt"
	"unsafe"

	"omibyte.io/halos/src/runtime/sched"
	"omibyte.io/halos/src/volatile"
)

var ErrStackExhausted = errors.New("task stack region exhausted")

// ExceptionFrame is the stack layout of a switched out task. PendSV pushes
// R4-R11, the hardware pushes the rest on exception entry.
type ExceptionFrame struct {
	Regs Registers
	R0   volatile.Register32
	R1   volatile.Register32
	R2   volatile.Register32
	R3   volatile.Register32
	R12  volatile.Register32
	LR   volatile.Register32
	PC   volatile.Register32
	PSR  volatile.Register32
}

type Registers struct {
	R4  volatile.Register32
	R5  volatile.Register32
	R6  volatile.Register32
	R7  volatile.Register32
	R8  volatile.Register32
	R9  volatile.Register32
	R10 volatile.Register32
	R11 volatile.Register32
}

const (
	FrameSize = uint32(unsafe.Sizeof(ExceptionFrame{}))

	// NOTE: The THUMB bit must be set!
	psrThumb = 0x01000000

	// Room kept below the initial frame for the first calls of the task.
	scratchSize = 8 * 4
)

// StackAllocator carves task stacks out of RAM, growing down from a base
// address.
type StackAllocator struct {
	mem   Memory
	top   uint32
	limit uint32
}

// NewStackAllocator hands out stacks between base (exclusive) and limit
// (inclusive).
func NewStackAllocator(mem Memory, base, limit uint32) *StackAllocator {
	return &StackAllocator{
		mem:   mem,
		top:   base &^ 7,
		limit: limit,
	}
}

// Define reserves a stack of at least size bytes and writes the initial
// exception frame so that the first switch to the task enters entry(arg)
// and a return from entry lands on exit.
func (a *StackAllocator) Define(entry, arg, size, exit uint32) (sched.Task, error) {
	total := align(size + FrameSize + scratchSize)
	if a.top-a.limit < total {
		return sched.Task{}, fmt.Errorf("%w: %d bytes requested, %d left", ErrStackExhausted, total, a.top-a.limit)
	}

	base := a.top
	sp := base - FrameSize
	p, err := a.mem.Pointer(sp, uintptr(FrameSize))
	if err != nil {
		return sched.Task{}, err
	}
	frame := (*ExceptionFrame)(p)
	frame.R0.Set(arg)
	frame.LR.Set(exit)
	frame.PC.Set(entry)
	frame.PSR.Set(psrThumb)

	a.top -= total
	return sched.Task{
		State:      sched.Runnable,
		StackStart: sp,
		StackEnd:   a.top,
	}, nil
}

// Remaining returns the bytes still available for stacks.
func (a *StackAllocator) Remaining() uint32 {
	return a.top - a.limit
}

// align rounds n up to the 16 byte granule stacks are handed out in. The
// stack itself stays 8-byte aligned as the AAPCS requires.
func align(n uint32) uint32 {
	return (n + 15) &^ 15
}
