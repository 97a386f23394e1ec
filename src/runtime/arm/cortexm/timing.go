package cortexm

import (
	"sync/atomic"

	"omibyte.io/halos/src/runtime/sched"
)

const (
	// SysTickPriority sits above PendSV, so a context switch never runs
	// before other interrupts are serviced, and below critical interrupts.
	SysTickPriority = 4
	PendSVPriority  = 0xFF

	// CALIBRATED selects the 10 ms reload value from SYST_CALIB.
	CALIBRATED = 0
)

// SysTimer drives the scheduler tick from SysTick.
type SysTimer struct {
	syst   *SYST_STR
	reload uint32
}

// NewSysTimer returns a timer ticking hz times per second from a core clock
// of clock Hz. A zero hz uses the calibrated 10 ms reload value.
func NewSysTimer(syst *SYST_STR, clock, hz uint32) *SysTimer {
	t := &SysTimer{syst: syst}
	if hz == CALIBRATED {
		t.reload = syst.CALIB.GetTENMS()
	} else {
		t.reload = clock / hz
	}
	if t.reload > 0 {
		// The counter counts from RELOAD down to zero inclusive
		t.reload--
	}
	return t
}

func (t *SysTimer) Reload() uint32 {
	return t.reload
}

// Start arms the counter and its interrupt.
func (t *SysTimer) Start() {
	t.syst.CSR.SetENABLE(false)
	t.syst.RVR.SetRELOAD(t.reload)
	t.syst.CVR.Clear()
	t.syst.CSR.SetTICKINT(true)
	t.syst.CSR.SetCLKSOURCE(true)
	t.syst.CSR.SetENABLE(true)
	for !t.syst.CSR.GetENABLE() {
	}
}

func (t *SysTimer) Stop() {
	t.syst.CSR.SetENABLE(false)
}

// Port connects the scheduler to the core: SysTick requests a context
// switch, PendSV performs it.
type Port struct {
	periph  *Peripherals
	vectors *VectorTable
	cpu     Idler
	sched   *sched.Scheduler

	tickCount uint32
	taskTicks []uint32
}

func NewPort(periph *Peripherals, vectors *VectorTable, cpu Idler) *Port {
	return &Port{
		periph:  periph,
		vectors: vectors,
		cpu:     cpu,
	}
}

// Attach installs the SysTick and PendSV handlers for s.
func (p *Port) Attach(s *sched.Scheduler) {
	p.sched = s
	p.taskTicks = make([]uint32, len(s.Index().Tasks))

	// Set PendSV to the lowest priority so that context switching does not occur before other interrupts are serviced.
	p.periph.SCS.SHPR3.SetPRI_14(PendSVPriority)
	p.periph.SCS.SHPR3.SetPRI_15(SysTickPriority)

	p.vectors.Set(SysTick, p.sysTickHandler)
	p.vectors.Set(PendSV, p.pendSVHandler)
}

// PendSwitch requests a context switch once no other exception is active.
func (p *Port) PendSwitch() {
	p.periph.SCS.ICSR.SetPENDSVSET()
}

// Ticks returns the number of SysTick interrupts taken.
func (p *Port) Ticks() uint32 {
	return atomic.LoadUint32(&p.tickCount)
}

// TaskTicks returns, per task, how many ticks interrupted that task.
func (p *Port) TaskTicks() []uint32 {
	out := make([]uint32, len(p.taskTicks))
	for i := range p.taskTicks {
		out[i] = atomic.LoadUint32(&p.taskTicks[i])
	}
	return out
}

func (p *Port) sysTickHandler() {
	atomic.AddUint32(&p.tickCount, 1)
	if !p.sched.Idle() {
		atomic.AddUint32(&p.taskTicks[p.sched.CurrentIndex()], 1)
	}

	// Trigger a PendSV interrupt to run the scheduler
	p.PendSwitch()
}

func (p *Port) pendSVHandler() {
	for {
		p.sched.Switch()
		if !p.sched.Idle() {
			return
		}
		p.cpu.WaitForInterrupt()
	}
}
