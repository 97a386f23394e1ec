package ioreg

import (
	"golang.org/x/exp/slices"
)

// Slot is one member of a generated struct: either a register or padding.
type Slot struct {
	Offset   uint32
	Padding  uint32
	Register *Register
}

func sorted(regs []Register) []Register {
	out := slices.Clone(regs)
	slices.SortStableFunc(out, func(a, b Register) bool {
		return a.Offset < b.Offset
	})
	return out
}

// Layout orders the registers of g by offset and inserts padding for the
// gaps between them and up to the group size.
func (g Group) Layout() []Slot {
	var (
		slots  []Slot
		offset uint32
	)
	for _, r := range sorted(g.Registers) {
		r := r
		if r.Offset > offset {
			slots = append(slots, Slot{Offset: offset, Padding: r.Offset - offset})
			offset = r.Offset
		}
		slots = append(slots, Slot{Offset: offset, Register: &r})
		offset += r.Bytes()
	}
	if g.Size > offset {
		slots = append(slots, Slot{Offset: offset, Padding: g.Size - offset})
	}
	return slots
}
