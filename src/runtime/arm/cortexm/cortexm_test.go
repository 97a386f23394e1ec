package cortexm

import (
	"errors"
	"testing"
	"unsafe"

	"omibyte.io/halos/src/runtime/fault"
	"omibyte.io/halos/src/runtime/sched"
	"omibyte.io/halos/src/volatile"
)

func TestRegisterLayout(t *testing.T) {
	var scs SystemControlSpace
	var nvic NVIC_STR

	tests := []struct {
		name     string
		offset   uintptr
		expected uintptr
	}{
		{"SCS.ICSR", unsafe.Offsetof(scs.ICSR), 0x04},
		{"SCS.VTOR", unsafe.Offsetof(scs.VTOR), 0x08},
		{"SCS.SHPR3", unsafe.Offsetof(scs.SHPR3), 0x20},
		{"SCS.HFSR", unsafe.Offsetof(scs.HFSR), 0x2C},
		{"SCS.CPACR", unsafe.Offsetof(scs.CPACR), 0x88},
		{"NVIC.ICER", unsafe.Offsetof(nvic.ICER), 0x80},
		{"NVIC.ISPR", unsafe.Offsetof(nvic.ISPR), 0x100},
		{"NVIC.ICPR", unsafe.Offsetof(nvic.ICPR), 0x180},
		{"NVIC.IABR", unsafe.Offsetof(nvic.IABR), 0x200},
		{"NVIC.IPR", unsafe.Offsetof(nvic.IPR), 0x300},
		{"SysTick", unsafe.Sizeof(SYST_STR{}), 0x10},
		{"ExceptionFrame", unsafe.Sizeof(ExceptionFrame{}), 0x40},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.offset != test.expected {
				t.Errorf("expected 0x%x, got 0x%x", test.expected, test.offset)
			}
		})
	}
}

func TestBind(t *testing.T) {
	w, err := volatile.Anonymous(0xE000E000, 0x1000)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	p, err := Bind(w)
	if err != nil {
		t.Fatal(err)
	}

	p.SCS.SHPR3.SetPRI_15(SysTickPriority)
	p.SCS.SHPR3.SetPRI_14(PendSVPriority)
	raw, _ := w.Pointer(SCSBase+0x20, 4)
	if v := (*volatile.Register32)(raw).Get(); v != 0x04FF_0000 {
		t.Errorf("expected SHPR3 0x04ff0000, got 0x%x", v)
	}

	p.NVIC.SetPriority(3, 0x80)
	raw, _ = w.Pointer(NVICBase+0x303, 1)
	if v := (*volatile.Register8)(raw).Get(); v != 0x80 {
		t.Errorf("expected IPR3 0x80, got 0x%x", v)
	}

	if _, err := Bind(&volatile.Window{}); !errors.Is(err, volatile.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestSysTimerStart(t *testing.T) {
	var syst SYST_STR
	timer := NewSysTimer(&syst, 1_000_000, 1000)
	if timer.Reload() != 999 {
		t.Fatalf("expected reload 999, got %d", timer.Reload())
	}

	csr := syst.CSR.Addr()
	r := volatile.NewReplayer()
	r.ExpectRead(csr, 0)
	r.ExpectWrite(csr, 0)
	r.ExpectWrite(syst.RVR.Addr(), 999)
	r.ExpectWrite(syst.CVR.Addr(), 1)
	r.ExpectRead(csr, 0)
	r.ExpectWrite(csr, 0x2)
	r.ExpectRead(csr, 0x2)
	r.ExpectWrite(csr, 0x6)
	r.ExpectRead(csr, 0x6)
	r.ExpectWrite(csr, 0x7)
	r.ExpectRead(csr, 0x7)

	restore := volatile.Use(r)
	timer.Start()
	restore()

	if err := r.Verify(); err != nil {
		t.Error(err)
	}
}

func TestSysTimerCalibrated(t *testing.T) {
	var syst SYST_STR
	syst.CALIB.Set(0x4000_0000 | 120_000)
	timer := NewSysTimer(&syst, 0, CALIBRATED)
	if timer.Reload() != 119_999 {
		t.Errorf("expected reload 119999, got %d", timer.Reload())
	}
	if !syst.CALIB.GetSKEW() || syst.CALIB.GetNOREF() {
		t.Error("unexpected CALIB flags")
	}
}

func TestUnhandledVectorTraps(t *testing.T) {
	v := NewVectorTable(8)
	if v.Len() != 24 || v.NumIRQ() != 8 {
		t.Fatalf("unexpected table size %d", v.Len())
	}

	called := false
	v.SetIRQ(2, func() { called = true })
	v.Dispatch(IRQ(2))
	if !called {
		t.Error("IRQ2 handler not called")
	}

	defer func() {
		trap, ok := recover().(*fault.Trap)
		if !ok {
			t.Fatal("expected a fault trap")
		}
		if trap.Reason != "unhandled exception IRQ3" {
			t.Errorf("unexpected reason %q", trap.Reason)
		}
	}()
	v.Dispatch(IRQ(3))
}

func TestExceptionNames(t *testing.T) {
	tests := []struct {
		exc      Exception
		expected string
	}{
		{PendSV, "PendSV"},
		{SysTick, "SysTick"},
		{IRQ(0), "IRQ0"},
		{Exception(7), "Reserved7"},
	}
	for _, test := range tests {
		if s := test.exc.String(); s != test.expected {
			t.Errorf("expected %s, got %s", test.expected, s)
		}
	}
}

func TestStackAllocator(t *testing.T) {
	w, err := volatile.Anonymous(0x2000_0000, 0x400)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	a := NewStackAllocator(w, 0x2000_0400, 0x2000_0000)
	task, err := a.Define(0x1001, 42, 100, 0x2001)
	if err != nil {
		t.Fatal(err)
	}

	// 100 + 64 + 32 rounded up to 16
	if task.StackEnd != 0x2000_0400-208 {
		t.Errorf("expected stack end 0x%x, got 0x%x", 0x2000_0400-208, task.StackEnd)
	}
	if task.StackStart != 0x2000_0400-FrameSize {
		t.Errorf("expected stack start 0x%x, got 0x%x", 0x2000_0400-FrameSize, task.StackStart)
	}
	if task.State != sched.Runnable {
		t.Errorf("expected runnable, got %s", task.State)
	}

	p, _ := w.Pointer(task.StackStart, uintptr(FrameSize))
	frame := (*ExceptionFrame)(p)
	if frame.R0.Get() != 42 || frame.PC.Get() != 0x1001 || frame.LR.Get() != 0x2001 || frame.PSR.Get() != psrThumb {
		t.Errorf("unexpected frame r0=%d pc=0x%x lr=0x%x psr=0x%x", frame.R0.Get(), frame.PC.Get(), frame.LR.Get(), frame.PSR.Get())
	}

	next, err := a.Define(0x1005, 0, 64, 0x2001)
	if err != nil {
		t.Fatal(err)
	}
	if next.StackStart != task.StackEnd-FrameSize {
		t.Errorf("second stack does not start below the first")
	}

	if _, err := a.Define(0x1009, 0, 0x400, 0x2001); !errors.Is(err, ErrStackExhausted) {
		t.Errorf("expected ErrStackExhausted, got %v", err)
	}
}
