package cortexm

import (
	"omibyte.io/halos/src/volatile"
)

const NVICBase = 0xE000E100

type NVIC_STR struct {
	ISER [16]volatile.Register32
	_    [64]byte
	ICER [16]volatile.Register32
	_    [64]byte
	ISPR [16]volatile.Register32
	_    [64]byte
	ICPR [16]volatile.Register32
	_    [64]byte
	IABR [16]volatile.Register32
	_    [192]byte
	IPR  [MaxIRQ]volatile.Register8
}

// MaxIRQ is the largest number of external interrupts the NVIC supports.
const MaxIRQ = 496

// Interrupt is an external interrupt number (IRQn, exception number - 16).
type Interrupt int16

func (i Interrupt) word() int {
	return int(i >> 5)
}

func (i Interrupt) bit() uint32 {
	return 1 << (i & 0x1F)
}

// The set and clear registers act on the bits written as one, so a single
// store never disturbs the other interrupts.

func (n *NVIC_STR) EnableIRQ(i Interrupt) {
	n.ISER[i.word()].Set(i.bit())
}

func (n *NVIC_STR) DisableIRQ(i Interrupt) {
	n.ICER[i.word()].Set(i.bit())
}

func (n *NVIC_STR) IsEnabled(i Interrupt) bool {
	return n.ISER[i.word()].Get()&i.bit() != 0
}

func (n *NVIC_STR) SetPending(i Interrupt) {
	n.ISPR[i.word()].Set(i.bit())
}

func (n *NVIC_STR) ClearPending(i Interrupt) {
	n.ICPR[i.word()].Set(i.bit())
}

func (n *NVIC_STR) IsPending(i Interrupt) bool {
	return n.ISPR[i.word()].Get()&i.bit() != 0
}

func (n *NVIC_STR) IsActive(i Interrupt) bool {
	return n.IABR[i.word()].Get()&i.bit() != 0
}

func (n *NVIC_STR) SetPriority(i Interrupt, priority uint8) {
	n.IPR[i].Set(priority)
}

func (n *NVIC_STR) Priority(i Interrupt) uint8 {
	return n.IPR[i].Get()
}
