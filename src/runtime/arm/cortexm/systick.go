package cortexm

import (
	"omibyte.io/halos/src/volatile"
)

const SysTickBase = 0xE000E010

type SYST_STR struct {
	CSR   SYST_CSR
	RVR   SYST_RVR
	CVR   SYST_CVR
	CALIB SYST_CALIB
}

type SYST_CSR struct{ volatile.Register32 }

const (
	csrENABLE    = 0x1
	csrTICKINT   = 0x1 << 1
	csrCLKSOURCE = 0x1 << 2
	csrCOUNTFLAG = 0x1 << 16
)

func (reg *SYST_CSR) SetENABLE(enable bool) {
	if enable {
		reg.SetBits(csrENABLE)
	} else {
		reg.ClearBits(csrENABLE)
	}
}

func (reg *SYST_CSR) GetENABLE() bool {
	return reg.HasBits(csrENABLE)
}

func (reg *SYST_CSR) SetTICKINT(enable bool) {
	if enable {
		reg.SetBits(csrTICKINT)
	} else {
		reg.ClearBits(csrTICKINT)
	}
}

func (reg *SYST_CSR) GetTICKINT() bool {
	return reg.HasBits(csrTICKINT)
}

func (reg *SYST_CSR) SetCLKSOURCE(enable bool) {
	if enable {
		reg.SetBits(csrCLKSOURCE)
	} else {
		reg.ClearBits(csrCLKSOURCE)
	}
}

func (reg *SYST_CSR) GetCLKSOURCE() bool {
	return reg.HasBits(csrCLKSOURCE)
}

// GetCOUNTFLAG reports whether the counter reached zero since the last
// read. Reading the register clears the flag.
func (reg *SYST_CSR) GetCOUNTFLAG() bool {
	return reg.HasBits(csrCOUNTFLAG)
}

type SYST_RVR struct{ volatile.Register32 }

func (reg *SYST_RVR) SetRELOAD(value uint32) {
	reg.Set(value & 0xFFFFFF)
}

func (reg *SYST_RVR) GetRELOAD() uint32 {
	return reg.Get() & 0xFFFFFF
}

type SYST_CVR struct{ volatile.Register32 }

// Clear resets the counter. Any write clears the register to zero.
func (reg *SYST_CVR) Clear() {
	reg.Set(1)
}

func (reg *SYST_CVR) GetVALUE() uint32 {
	return reg.Get() & 0xFFFFFF
}

type SYST_CALIB struct{ volatile.Register32 }

func (reg *SYST_CALIB) GetTENMS() uint32 {
	return reg.Get() & 0xFFFFFF
}

func (reg *SYST_CALIB) GetSKEW() bool {
	return reg.HasBits(0x1 << 30)
}

func (reg *SYST_CALIB) GetNOREF() bool {
	return reg.HasBits(0x1 << 31)
}
