package volatile

import (
	"sync/atomic"
	"unsafe"
)

// Backend performs the memory accesses of every Cell. width is the size of
// the access in bytes (1, 2 or 4) and values are zero extended.
type Backend interface {
	Load(addr unsafe.Pointer, width uintptr) uint32
	Store(addr unsafe.Pointer, width uintptr, value uint32)
}

var backend Backend = Direct{}

// Use installs b and returns a function restoring the previous backend.
// It must not race with cell accesses, install backends before the code
// under test starts.
func Use(b Backend) (restore func()) {
	prev := backend
	backend = b
	return func() {
		backend = prev
	}
}

// Current returns the installed backend.
func Current() Backend {
	return backend
}

// Direct accesses memory in place. Word accesses use sync/atomic, which the
// compiler never merges, elides or reorders. Byte and half-word accesses go
// through functions that are never inlined, so each call is one access.
type Direct struct{}

func (Direct) Load(addr unsafe.Pointer, width uintptr) uint32 {
	switch width {
	case 1:
		return uint32(load8((*uint8)(addr)))
	case 2:
		return uint32(load16((*uint16)(addr)))
	default:
		return atomic.LoadUint32((*uint32)(addr))
	}
}

func (Direct) Store(addr unsafe.Pointer, width uintptr, value uint32) {
	switch width {
	case 1:
		store8((*uint8)(addr), uint8(value))
	case 2:
		store16((*uint16)(addr), uint16(value))
	default:
		atomic.StoreUint32((*uint32)(addr), value)
	}
}

//go:noinline
func load8(addr *uint8) uint8 {
	return *addr
}

//go:noinline
func load16(addr *uint16) uint16 {
	return *addr
}

//go:noinline
func store8(addr *uint8, v uint8) {
	*addr = v
}

//go:noinline
func store16(addr *uint16, v uint16) {
	*addr = v
}
