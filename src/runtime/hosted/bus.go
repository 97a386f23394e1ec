package hosted

import (
	"sync"
	"unsafe"

	"omibyte.io/halos/src/volatile"
)

// Bus addresses of the registers whose accesses have side effects.
const (
	regICSR = 0xE000ED04
	regCVR  = 0xE000E018
	regISER = 0xE000E100
	regICER = 0xE000E180
	regISPR = 0xE000E200
	regICPR = 0xE000E280

	nvicBank = 0x40

	icsrPENDSVSET = 0x1 << 28
	icsrPENDSVCLR = 0x1 << 27
	icsrPENDSTSET = 0x1 << 26
	icsrPENDSTCLR = 0x1 << 25
)

// bus is the volatile backend of every hosted core. Accesses to the private
// peripheral bus of a core get the register semantics of the hardware:
// write-one-to-set/clear for NVIC and ICSR, write-to-clear for SYST_CVR.
// Everything else is plain memory.
type bus struct {
	mu    sync.RWMutex
	cores map[*Core]struct{}
	next  volatile.Backend
}

var (
	busOnce sync.Once
	theBus  = &bus{cores: map[*Core]struct{}{}}
)

func attach(c *Core) {
	busOnce.Do(func() {
		theBus.next = volatile.Current()
		volatile.Use(theBus)
	})
	theBus.mu.Lock()
	theBus.cores[c] = struct{}{}
	theBus.mu.Unlock()
}

func detach(c *Core) {
	theBus.mu.Lock()
	delete(theBus.cores, c)
	theBus.mu.Unlock()
}

// decode returns the bus address of a host pointer into a peripheral
// window.
func (b *bus) decode(p unsafe.Pointer, width uintptr) (uint32, bool) {
	if width != 4 {
		return 0, false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for c := range b.cores {
		if addr, ok := c.ppb.Bus(p); ok {
			return addr, true
		}
	}
	return 0, false
}

func inBank(addr, base uint32) bool {
	return addr >= base && addr < base+nvicBank
}

func (b *bus) Load(p unsafe.Pointer, width uintptr) uint32 {
	addr, ok := b.decode(p, width)
	switch {
	case !ok:
	case inBank(addr, regICER), inBank(addr, regICPR):
		// The clear registers read back as their set counterparts
		return b.next.Load(unsafe.Add(p, -0x80), 4)
	}
	return b.next.Load(p, width)
}

func (b *bus) Store(p unsafe.Pointer, width uintptr, value uint32) {
	addr, ok := b.decode(p, width)
	switch {
	case !ok:
		b.next.Store(p, width, value)
	case addr == regICSR:
		state := b.next.Load(p, 4)
		if value&icsrPENDSVSET != 0 {
			state |= icsrPENDSVSET
		}
		if value&icsrPENDSVCLR != 0 {
			state &^= icsrPENDSVSET
		}
		if value&icsrPENDSTSET != 0 {
			state |= icsrPENDSTSET
		}
		if value&icsrPENDSTCLR != 0 {
			state &^= icsrPENDSTSET
		}
		b.next.Store(p, 4, state&(icsrPENDSVSET|icsrPENDSTSET))
	case addr == regCVR:
		b.next.Store(p, 4, 0)
	case inBank(addr, regISER), inBank(addr, regISPR):
		b.next.Store(p, 4, b.next.Load(p, 4)|value)
	case inBank(addr, regICER), inBank(addr, regICPR):
		set := unsafe.Add(p, -0x80)
		b.next.Store(set, 4, b.next.Load(set, 4)&^value)
	default:
		b.next.Store(p, width, value)
	}
}
