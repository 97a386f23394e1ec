package volatile

import (
	"fmt"
	"unsafe"
)

// Window maps a range of bus addresses onto host memory so that register
// blocks and RAM can be overlaid with Go structs.
type Window struct {
	base  uint32
	mem   []byte
	unmap func() error
}

// Base returns the first bus address covered by the window.
func (w *Window) Base() uint32 {
	return w.base
}

// Size returns the number of bytes covered by the window.
func (w *Window) Size() int {
	return len(w.mem)
}

// Contains reports whether [addr, addr+size) lies inside the window. addr
// itself must be inside the window, even for an empty range.
func (w *Window) Contains(addr uint32, size uintptr) bool {
	if w.mem == nil || addr < w.base {
		return false
	}
	off := uint64(addr - w.base)
	return off < uint64(len(w.mem)) && off+uint64(size) <= uint64(len(w.mem))
}

// Pointer translates the bus address addr to a host pointer that is valid
// for size bytes.
func (w *Window) Pointer(addr uint32, size uintptr) (unsafe.Pointer, error) {
	if w.mem == nil {
		return nil, ErrClosed
	}
	if !w.Contains(addr, size) {
		return nil, fmt.Errorf("%w: 0x%08x+%d not in [0x%08x, 0x%08x)", ErrOutOfRange, addr, size, w.base, uint64(w.base)+uint64(len(w.mem)))
	}
	return unsafe.Pointer(&w.mem[addr-w.base]), nil
}

// Bus translates a host pointer back into a bus address.
func (w *Window) Bus(p unsafe.Pointer) (uint32, bool) {
	if w.mem == nil {
		return 0, false
	}
	start := uintptr(unsafe.Pointer(&w.mem[0]))
	if uintptr(p) < start || uintptr(p) >= start+uintptr(len(w.mem)) {
		return 0, false
	}
	return w.base + uint32(uintptr(p)-start), true
}

// Close releases the mapping. Pointers obtained from the window must not be
// used afterwards.
func (w *Window) Close() error {
	if w.mem == nil {
		return ErrClosed
	}
	w.mem = nil
	if w.unmap != nil {
		return w.unmap()
	}
	return nil
}
