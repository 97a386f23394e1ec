package cortexm

import (
	"omibyte.io/halos/src/volatile"
)

const SCSBase = 0xE000ED00

type (
	SystemControlSpace struct {
		CPUID SCS_CPUID
		ICSR  SCS_ICSR
		VTOR  SCS_VTOR
		AIRCR volatile.Register32
		SCR   volatile.Register32
		CCR   volatile.Register32
		SHPR1 SCS_SHPR1
		SHPR2 SCS_SHPR2
		SHPR3 SCS_SHPR3
		SHCSR volatile.Register32
		CFSR  volatile.Register32
		HFSR  SCS_HFSR
		DFSR  volatile.Register32
		MMFAR volatile.Register32
		BFAR  volatile.Register32
		AFSR  volatile.Register32
		_     [18]uint32
		CPACR volatile.Register32
	}

	SCS_CPUID struct{ volatile.Register32 }
	SCS_ICSR  struct{ volatile.Register32 }
	SCS_VTOR  struct{ volatile.Register32 }
	SCS_SHPR1 struct{ volatile.Register32 }
	SCS_SHPR2 struct{ volatile.Register32 }
	SCS_SHPR3 struct{ volatile.Register32 }
	SCS_HFSR  struct{ volatile.Register32 }
)

const (
	icsrPENDSVSET = 0x1 << 28
	icsrPENDSVCLR = 0x1 << 27
	icsrPENDSTSET = 0x1 << 26
	icsrPENDSTCLR = 0x1 << 25
)

func (reg *SCS_CPUID) GetIMPLEMENTER() uint8 {
	return uint8(reg.Field(0xFF, 24))
}

func (reg *SCS_CPUID) GetPARTNO() uint16 {
	return uint16(reg.Field(0xFFF, 4))
}

func (reg *SCS_CPUID) GetREVISION() uint8 {
	return uint8(reg.Field(0xF, 0))
}

// The ICSR set and clear bits act on write. Writing zero to the other bits
// has no effect, so they are written without reading first.

func (reg *SCS_ICSR) GetPENDSVSET() bool {
	return reg.HasBits(icsrPENDSVSET)
}

func (reg *SCS_ICSR) SetPENDSVSET() {
	reg.Set(icsrPENDSVSET)
}

func (reg *SCS_ICSR) SetPENDSVCLR() {
	reg.Set(icsrPENDSVCLR)
}

func (reg *SCS_ICSR) GetPENDSTSET() bool {
	return reg.HasBits(icsrPENDSTSET)
}

func (reg *SCS_ICSR) SetPENDSTSET() {
	reg.Set(icsrPENDSTSET)
}

func (reg *SCS_ICSR) SetPENDSTCLR() {
	reg.Set(icsrPENDSTCLR)
}

func (reg *SCS_ICSR) GetVECTACTIVE() uint16 {
	return uint16(reg.Field(0x1FF, 0))
}

func (reg *SCS_VTOR) GetTBLOFF() uint32 {
	return reg.Get() &^ 0x7F
}

func (reg *SCS_VTOR) SetTBLOFF(addr uint32) {
	reg.Set(addr &^ 0x7F)
}

func (s *SCS_SHPR1) GetPRI_4() uint8 {
	return uint8(s.Field(0xFF, 0))
}

func (s *SCS_SHPR1) SetPRI_4(value uint8) {
	s.ReplaceBits(uint32(value), 0xFF, 0)
}

func (s *SCS_SHPR1) GetPRI_5() uint8 {
	return uint8(s.Field(0xFF, 8))
}

func (s *SCS_SHPR1) SetPRI_5(value uint8) {
	s.ReplaceBits(uint32(value), 0xFF, 8)
}

func (s *SCS_SHPR1) GetPRI_6() uint8 {
	return uint8(s.Field(0xFF, 16))
}

func (s *SCS_SHPR1) SetPRI_6(value uint8) {
	s.ReplaceBits(uint32(value), 0xFF, 16)
}

func (s *SCS_SHPR2) GetPRI_11() uint8 {
	return uint8(s.Field(0xFF, 24))
}

func (s *SCS_SHPR2) SetPRI_11(value uint8) {
	s.ReplaceBits(uint32(value), 0xFF, 24)
}

func (s *SCS_SHPR3) GetPRI_12() uint8 {
	return uint8(s.Field(0xFF, 0))
}

func (s *SCS_SHPR3) SetPRI_12(value uint8) {
	s.ReplaceBits(uint32(value), 0xFF, 0)
}

func (s *SCS_SHPR3) GetPRI_14() uint8 {
	return uint8(s.Field(0xFF, 16))
}

func (s *SCS_SHPR3) SetPRI_14(value uint8) {
	s.ReplaceBits(uint32(value), 0xFF, 16)
}

func (s *SCS_SHPR3) GetPRI_15() uint8 {
	return uint8(s.Field(0xFF, 24))
}

func (s *SCS_SHPR3) SetPRI_15(value uint8) {
	s.ReplaceBits(uint32(value), 0xFF, 24)
}

func (reg *SCS_HFSR) GetFORCED() bool {
	return reg.HasBits(0x1 << 30)
}

// Priority returns the configurable priority of a system exception, or
// false for exceptions with a fixed priority.
func (s *SystemControlSpace) Priority(exc Exception) (uint8, bool) {
	switch exc {
	case MemManage:
		return s.SHPR1.GetPRI_4(), true
	case BusFault:
		return s.SHPR1.GetPRI_5(), true
	case UsageFault:
		return s.SHPR1.GetPRI_6(), true
	case SVCall:
		return s.SHPR2.GetPRI_11(), true
	case DebugMonitor:
		return s.SHPR3.GetPRI_12(), true
	case PendSV:
		return s.SHPR3.GetPRI_14(), true
	case SysTick:
		return s.SHPR3.GetPRI_15(), true
	}
	return 0, false
}
