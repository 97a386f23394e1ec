package cortexm

import (
	"fmt"
	"unsafe"
)

// Memory translates bus addresses into pointers the register structs can be
// overlaid on.
type Memory interface {
	Pointer(addr uint32, size uintptr) (unsafe.Pointer, error)
}

// Physical is the identity mapping used when running on the core itself.
type Physical struct{}

func (Physical) Pointer(addr uint32, size uintptr) (unsafe.Pointer, error) {
	return unsafe.Pointer(uintptr(addr)), nil
}

// Idler suspends the core until an interrupt is pending (WFI).
type Idler interface {
	WaitForInterrupt()
}

// Peripherals are the core peripherals on the private peripheral bus.
type Peripherals struct {
	SCS  *SystemControlSpace
	SYST *SYST_STR
	NVIC *NVIC_STR
}

// Bind overlays the core peripherals on their architectural addresses.
func Bind(mem Memory) (*Peripherals, error) {
	scs, err := mem.Pointer(SCSBase, unsafe.Sizeof(SystemControlSpace{}))
	if err != nil {
		return nil, fmt.Errorf("bind SCS: %w", err)
	}
	syst, err := mem.Pointer(SysTickBase, unsafe.Sizeof(SYST_STR{}))
	if err != nil {
		return nil, fmt.Errorf("bind SysTick: %w", err)
	}
	nvic, err := mem.Pointer(NVICBase, unsafe.Sizeof(NVIC_STR{}))
	if err != nil {
		return nil, fmt.Errorf("bind NVIC: %w", err)
	}
	return &Peripherals{
		SCS:  (*SystemControlSpace)(scs),
		SYST: (*SYST_STR)(syst),
		NVIC: (*NVIC_STR)(nvic),
	}, nil
}
