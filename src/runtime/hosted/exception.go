package hosted

import (
	"math/bits"
	"runtime"
	"time"

	"omibyte.io/halos/src/runtime/arm/cortexm"
	"omibyte.io/halos/src/runtime/fault"
)

// boundary takes every pending exception and performs the exception return.
// Nothing is taken while interrupts are masked, while a handler runs or
// before the first task was entered.
func (c *Core) boundary() {
	if c.primask || c.handlerDepth > 0 || c.running == nil || c.halted.Load() {
		return
	}
	for c.takeException(true) {
	}
	c.exceptionReturn()
}

// takeException runs the handler of the most urgent pending exception and
// reports whether there was one. PendSV is only considered when
// withPendSV is set.
func (c *Core) takeException(withPendSV bool) bool {
	c.latch()
	exc, ok := c.highest(withPendSV)
	if !ok {
		return false
	}
	c.acknowledge(exc)

	c.handlerDepth++
	c.vectors.Dispatch(exc)
	c.handlerDepth--

	c.complete(exc)
	c.exceptions++
	return true
}

// latch moves interrupts requested by other goroutines into the pending
// registers.
func (c *Core) latch() {
	scs, syst, nvic := c.periph.SCS, c.periph.SYST, c.periph.NVIC
	if c.tickPending.Swap(false) && syst.CSR.GetENABLE() && syst.CSR.GetTICKINT() {
		scs.ICSR.SetPENDSTSET()
	}

	c.mu.Lock()
	raised := c.raised
	c.raised = nil
	c.mu.Unlock()
	for _, irq := range raised {
		nvic.SetPending(irq)
	}
}

// highest returns the pending and enabled exception with the lowest
// priority value. Ties go to the lower exception number.
func (c *Core) highest(withPendSV bool) (cortexm.Exception, bool) {
	var (
		best     cortexm.Exception
		bestPrio uint8
		found    bool
	)
	consider := func(exc cortexm.Exception, prio uint8) {
		if !found || prio < bestPrio || (prio == bestPrio && exc < best) {
			best, bestPrio, found = exc, prio, true
		}
	}

	scs, nvic := c.periph.SCS, c.periph.NVIC
	if withPendSV && scs.ICSR.GetPENDSVSET() {
		prio, _ := scs.Priority(cortexm.PendSV)
		consider(cortexm.PendSV, prio)
	}
	if scs.ICSR.GetPENDSTSET() {
		prio, _ := scs.Priority(cortexm.SysTick)
		consider(cortexm.SysTick, prio)
	}
	for w := 0; w*32 < c.cfg.NumIRQ; w++ {
		active := nvic.ISPR[w].Get() & nvic.ISER[w].Get()
		for active != 0 {
			b := bits.TrailingZeros32(active)
			active &^= 1 << b
			irq := cortexm.Interrupt(w*32 + b)
			if int(irq) >= c.cfg.NumIRQ {
				break
			}
			consider(cortexm.IRQ(irq), nvic.Priority(irq))
		}
	}
	return best, found
}

func (c *Core) acknowledge(exc cortexm.Exception) {
	scs, nvic := c.periph.SCS, c.periph.NVIC
	switch exc {
	case cortexm.PendSV:
		scs.ICSR.SetPENDSVCLR()
	case cortexm.SysTick:
		scs.ICSR.SetPENDSTCLR()
	default:
		irq := cortexm.Interrupt(exc - cortexm.NumSystemExceptions)
		nvic.ClearPending(irq)
		nvic.IABR[irq>>5].SetBits(1 << (irq & 0x1F))
	}
}

func (c *Core) complete(exc cortexm.Exception) {
	if exc < cortexm.NumSystemExceptions {
		return
	}
	irq := cortexm.Interrupt(exc - cortexm.NumSystemExceptions)
	c.periph.NVIC.IABR[irq>>5].ClearBits(1 << (irq & 0x1F))
}

// WaitForInterrupt idles the core until an interrupt is pending and takes
// it. It is called from the PendSV handler when no task can run, so PendSV
// itself is not taken. If nothing arrives for IdleTimeout while every task
// is blocked, the core faults.
func (c *Core) WaitForInterrupt() {
	if c.idleSince.IsZero() {
		c.idleSince = time.Now()
	}

	c.latch()
	if _, ok := c.highest(false); !ok {
		timer := time.NewTimer(time.Until(c.idleSince.Add(c.cfg.IdleTimeout)))
		select {
		case <-c.wake:
			timer.Stop()
		case <-c.stop:
			timer.Stop()
			runtime.Goexit()
		case <-timer.C:
			fault.Abortf("deadlock: every task blocked for %s", c.cfg.IdleTimeout)
		}
	}

	for c.takeException(false) {
	}
}

// exceptionReturn resumes the task PSP points at. If that is another task,
// the core is handed to it and the calling goroutine parks until the core
// comes back.
func (c *Core) exceptionReturn() {
	c.idleSince = time.Time{}

	cur := c.running
	if cur != nil && cur.sp == c.psp {
		return
	}
	next := c.thread(c.psp)
	c.running = next
	c.resume(next)
	if cur != nil {
		c.park(cur)
	}
}

// thread returns the task whose stack pointer is sp, reading the initial
// exception frame for a task that has not run yet.
func (c *Core) thread(sp uint32) *thread {
	if t, ok := c.threads[sp]; ok {
		return t
	}

	p, err := c.Pointer(sp, uintptr(cortexm.FrameSize))
	if err != nil {
		fault.Abortf("bad task stack pointer: %v", err)
	}
	frame := (*cortexm.ExceptionFrame)(p)
	pc := frame.PC.Get()
	entry, ok := c.lookup(pc)
	if !ok {
		fault.Abortf("no code at 0x%08x", pc)
	}

	t := &thread{
		sp:    sp,
		entry: entry,
		arg:   frame.R0.Get(),
		lr:    frame.LR.Get(),
		baton: make(chan struct{}, 1),
	}
	c.threads[sp] = t
	return t
}

func (c *Core) resume(t *thread) {
	if !t.started {
		t.started = true
		c.wg.Add(1)
		go c.execute(t)
		return
	}
	t.baton <- struct{}{}
}

func (c *Core) park(t *thread) {
	select {
	case <-t.baton:
	case <-c.stop:
		runtime.Goexit()
	}
}

func (c *Core) execute(t *thread) {
	defer c.wg.Done()
	defer c.recoverTrap()

	t.entry(t.arg)

	// Return through the link register
	ret, ok := c.lookup(t.lr)
	if !ok {
		fault.Abortf("task returned to 0x%08x", t.lr)
	}
	ret(0)
}
