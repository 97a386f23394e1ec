// Package hosted simulates a single Cortex-M core on the host so that the
// scheduler and the synchronisation primitives run unmodified under the Go
// toolchain.
//
// Each task runs on its own goroutine, but only the goroutine holding the
// core executes; the others are parked. Exceptions are taken at instruction
// boundaries only: when interrupts are unmasked, at Checkpoint and while the
// core idles. When an exception returns to a different process stack
// pointer, the core is handed to the goroutine of that stack.
package hosted

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"

	"omibyte.io/halos/src/runtime/arm/cortexm"
	"omibyte.io/halos/src/runtime/fault"
	"omibyte.io/halos/src/volatile"
)

const (
	ppbBase = 0xE000E000
	ppbSize = 0x1000

	// Simulated code addresses handed out for registered entry points.
	codeBase = 0x0000_0100
)

type Core struct {
	cfg Config
	log *log.Logger

	sram    *volatile.Window
	ppb     *volatile.Window
	periph  *cortexm.Peripherals
	vectors *cortexm.VectorTable

	// Owned by the goroutine holding the core.
	primask      bool
	handlerDepth int
	psp          uint32
	running      *thread
	threads      map[uint32]*thread
	idleSince    time.Time
	exceptions   uint64

	code     []func(arg uint32)
	exitTrap uint32

	tickPending atomic.Bool
	mu          sync.Mutex
	raised      []cortexm.Interrupt
	wake        chan struct{}

	started atomic.Bool
	halted  atomic.Bool
	stop    chan struct{}
	done    chan error
	wg      sync.WaitGroup
}

type thread struct {
	sp      uint32
	entry   func(arg uint32)
	arg     uint32
	lr      uint32
	baton   chan struct{}
	started bool
}

// NewCore maps the memory of a core described by cfg and resets it.
// Interrupts are masked until the first task is entered.
func NewCore(cfg Config) (*Core, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	sram, err := volatile.Anonymous(cfg.SRAMBase, cfg.SRAMSize)
	if err != nil {
		return nil, err
	}
	ppb, err := volatile.Anonymous(ppbBase, ppbSize)
	if err != nil {
		sram.Close()
		return nil, err
	}

	c := &Core{
		cfg:     cfg,
		log:     cfg.Logger,
		sram:    sram,
		ppb:     ppb,
		vectors: cortexm.NewVectorTable(cfg.NumIRQ),
		primask: true,
		threads: map[uint32]*thread{},
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan error, 1),
	}
	if c.periph, err = cortexm.Bind(c); err != nil {
		c.unmap()
		return nil, err
	}
	attach(c)

	c.periph.SCS.CPUID.Set(cpuids[cfg.Core])
	c.exitTrap = c.Entry(func(uint32) {
		fault.Abort("task returned from its entry function")
	})

	c.log.Printf("%s: %s, %d KiB SRAM at 0x%08x, %d IRQs", cfg.Name, cfg.Core, cfg.SRAMSize/1024, cfg.SRAMBase, cfg.NumIRQ)
	return c, nil
}

func (c *Core) Config() Config {
	return c.cfg
}

func (c *Core) Peripherals() *cortexm.Peripherals {
	return c.periph
}

func (c *Core) Vectors() *cortexm.VectorTable {
	return c.vectors
}

// Pointer implements cortexm.Memory over SRAM and the private peripheral
// bus.
func (c *Core) Pointer(addr uint32, size uintptr) (unsafe.Pointer, error) {
	switch {
	case c.sram.Contains(addr, size):
		return c.sram.Pointer(addr, size)
	case c.ppb.Contains(addr, size):
		return c.ppb.Pointer(addr, size)
	}
	return nil, fmt.Errorf("%w: 0x%08x+%d", ErrUnmapped, addr, size)
}

// Entry registers fn as code and returns its address. Task frames use these
// addresses for PC and LR.
func (c *Core) Entry(fn func(arg uint32)) uint32 {
	c.code = append(c.code, fn)
	return codeBase + uint32(len(c.code)-1)*4 | 1
}

// ExitTrap returns the address a task returns to when its entry function
// ends.
func (c *Core) ExitTrap() uint32 {
	return c.exitTrap
}

func (c *Core) lookup(addr uint32) (func(arg uint32), bool) {
	addr &^= 1
	if addr < codeBase || (addr-codeBase)%4 != 0 {
		return nil, false
	}
	i := int(addr-codeBase) / 4
	if i >= len(c.code) {
		return nil, false
	}
	return c.code[i], true
}

// Disable masks interrupts (CPSID I).
func (c *Core) Disable() {
	c.primask = true
}

// Enable unmasks interrupts (CPSIE I) and takes pending exceptions.
func (c *Core) Enable() {
	c.primask = false
	c.boundary()
}

func (c *Core) Enabled() bool {
	return !c.primask
}

// TaskStackPointer reads PSP.
func (c *Core) TaskStackPointer() uint32 {
	return c.psp
}

// SetTaskStackPointer writes PSP.
func (c *Core) SetTaskStackPointer(sp uint32) {
	c.psp = sp
}

// UseStack moves the stack pointer of the running task down by n bytes, as
// if the task had pushed n bytes.
func (c *Core) UseStack(n uint32) {
	t := c.running
	if t == nil {
		return
	}
	delete(c.threads, t.sp)
	t.sp -= n
	c.threads[t.sp] = t
	c.psp = t.sp
}

// Launch leaves the boot context and enters the task PSP points at. It is
// the scheduler's context switch trampoline.
func (c *Core) Launch() {
	c.primask = false
	c.exceptionReturn()
}

// Tick makes SysTick pending. It is safe to call from any goroutine.
func (c *Core) Tick() {
	c.tickPending.Store(true)
	c.notify()
}

// Raise makes external interrupt irq pending. It is safe to call from any
// goroutine.
func (c *Core) Raise(irq cortexm.Interrupt) error {
	if irq < 0 || int(irq) >= c.cfg.NumIRQ {
		return fmt.Errorf("%w: IRQ%d", ErrNoSuchIRQ, irq)
	}
	c.mu.Lock()
	c.raised = append(c.raised, irq)
	c.mu.Unlock()
	c.notify()
	return nil
}

func (c *Core) notify() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Checkpoint is an instruction boundary for code that runs without masking
// or unmasking interrupts, such as a busy loop. A task reaching Checkpoint
// after the core halted exits.
func (c *Core) Checkpoint() {
	if c.halted.Load() {
		runtime.Goexit()
	}
	c.boundary()
}

// Halted reports whether the core stopped.
func (c *Core) Halted() bool {
	return c.halted.Load()
}

// Exceptions returns the number of exceptions taken.
func (c *Core) Exceptions() uint64 {
	return c.exceptions
}

// Run boots the core with start, which must end in Launch, and returns when
// a task calls Stop, the core faults or ctx ends. All task goroutines have
// exited when Run returns. A fault is returned as a *fault.Trap.
func (c *Core) Run(ctx context.Context, start func()) error {
	if c.started.Swap(true) {
		return ErrRunning
	}
	if c.cfg.TickPeriod > 0 {
		c.wg.Add(1)
		go c.ticker()
	}

	c.boot(start)

	var err error
	select {
	case err = <-c.done:
	case <-ctx.Done():
		c.halt(ctx.Err())
		err = <-c.done
	}
	close(c.stop)
	c.wg.Wait()

	var trap *fault.Trap
	if errors.As(err, &trap) {
		c.log.Printf("%s: halted: %v", c.cfg.Name, trap)
	}
	return err
}

// Stop halts the core and ends the calling task. It must be called from a
// task.
func (c *Core) Stop() {
	c.halt(nil)
	runtime.Goexit()
}

// Close unmaps the memory of the core.
func (c *Core) Close() error {
	detach(c)
	return c.unmap()
}

func (c *Core) unmap() error {
	return errors.Join(c.sram.Close(), c.ppb.Close())
}

func (c *Core) boot(start func()) {
	defer c.recoverTrap()
	start()
}

func (c *Core) halt(err error) {
	if c.halted.Swap(true) {
		return
	}
	c.done <- err
}

func (c *Core) recoverTrap() {
	r := recover()
	if r == nil {
		return
	}
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
	}
	c.halt(err)
}

func (c *Core) ticker() {
	defer c.wg.Done()
	t := time.NewTicker(c.cfg.TickPeriod)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.Tick()
		case <-c.stop:
			return
		}
	}
}
