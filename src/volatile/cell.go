// Package volatile provides typed access to memory-mapped registers.
//
// A Cell occupies exactly the bytes of its value type so that register
// blocks can be declared as plain structs of cells (plus padding) and
// overlaid on a bus address. Every Get and Set is a real memory access
// routed through the installed Backend.
package volatile

import "unsafe"

// Word is the set of register widths a Cell may hold.
type Word interface {
	~uint8 | ~uint16 | ~uint32
}

// noCopy makes go vet report copies of a Cell. A copied register is a
// register that no longer talks to the device.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Cell is a single value at a fixed address.
type Cell[T Word] struct {
	_     noCopy
	value T
}

type (
	Register8  = Cell[uint8]
	Register16 = Cell[uint16]
	Register32 = Cell[uint32]
)

// New allocates a cell holding v. Cells that map a device are never
// allocated, they are overlaid on the device address instead.
func New[T Word](v T) *Cell[T] {
	c := &Cell[T]{}
	c.Set(v)
	return c
}

// Get loads the current value.
func (c *Cell[T]) Get() T {
	return T(backend.Load(unsafe.Pointer(&c.value), unsafe.Sizeof(c.value)))
}

// Set stores v.
func (c *Cell[T]) Set(v T) {
	backend.Store(unsafe.Pointer(&c.value), unsafe.Sizeof(c.value), uint32(v))
}

// Addr returns the host address of the cell.
func (c *Cell[T]) Addr() uintptr {
	return uintptr(unsafe.Pointer(&c.value))
}

// SetBits sets every bit of mask.
func (c *Cell[T]) SetBits(mask T) {
	c.Set(c.Get() | mask)
}

// ClearBits clears every bit of mask.
func (c *Cell[T]) ClearBits(mask T) {
	c.Set(c.Get() &^ mask)
}

// HasBits reports whether every bit of mask is set.
func (c *Cell[T]) HasBits(mask T) bool {
	return c.Get()&mask == mask
}

// ReplaceBits replaces the field selected by mask (unshifted) at shift with
// value.
func (c *Cell[T]) ReplaceBits(value, mask T, shift uint8) {
	v := c.Get()
	v &^= mask << shift
	v |= (value & mask) << shift
	c.Set(v)
}

// Field extracts the field selected by mask (unshifted) at shift.
func (c *Cell[T]) Field(mask T, shift uint8) T {
	return (c.Get() >> shift) & mask
}
