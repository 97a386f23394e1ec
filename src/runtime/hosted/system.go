package hosted

import (
	"context"
	"fmt"
	"runtime"

	"omibyte.io/halos/src/runtime/arm/cortexm"
	"omibyte.io/halos/src/runtime/interrupt"
	"omibyte.io/halos/src/runtime/sched"
	"omibyte.io/halos/src/runtime/trace"
)

const DefaultStackSize = 1024

// System is a hosted core wired to the scheduler: SysTick preempts, PendSV
// switches and task stacks are carved from simulated SRAM.
type System struct {
	Core  *Core
	Port  *cortexm.Port
	Timer *cortexm.SysTimer
	Sched *sched.Scheduler
	Trace *trace.Ring[sched.Event]

	irq    *interrupt.Controller
	stacks *cortexm.StackAllocator
	tasks  []sched.Task
	names  []string
}

// TaskInfo describes a task after or during a run.
type TaskInfo struct {
	Name       string
	State      sched.State
	StackStart uint32
	StackEnd   uint32
	Ticks      uint32
}

func NewSystem(cfg Config) (*System, error) {
	core, err := NewCore(cfg)
	if err != nil {
		return nil, err
	}
	cfg = core.Config()
	periph := core.Peripherals()

	return &System{
		Core:   core,
		Port:   cortexm.NewPort(periph, core.Vectors(), core),
		Timer:  cortexm.NewSysTimer(periph.SYST, cfg.ClockHz, cfg.TickHz),
		Trace:  trace.New[sched.Event](0),
		stacks: cortexm.NewStackAllocator(core, cfg.SRAMBase+uint32(cfg.SRAMSize), cfg.SRAMBase),
	}, nil
}

// Spawn adds a task running entry(arg) on a stack of stackSize bytes. Tasks
// run in the order they were spawned.
func (s *System) Spawn(name string, entry func(arg uint32), arg, stackSize uint32) error {
	if s.Sched != nil {
		return ErrBooted
	}
	if stackSize == 0 {
		stackSize = DefaultStackSize
	}
	t, err := s.stacks.Define(s.Core.Entry(entry), arg, stackSize, s.Core.ExitTrap())
	if err != nil {
		return fmt.Errorf("spawn %s: %w", name, err)
	}
	s.tasks = append(s.tasks, t)
	s.names = append(s.names, name)
	return nil
}

// Boot binds the default interrupt controller to the core, creates the
// scheduler over the spawned tasks and installs the exception handlers. No
// task may be spawned afterwards. Only one booted system can run at a time.
func (s *System) Boot() error {
	if s.Sched != nil {
		return ErrBooted
	}
	if len(s.tasks) == 0 {
		return ErrNoTasks
	}
	interrupt.Init(s.Core)
	s.irq = interrupt.Default()
	s.Sched = sched.New(sched.TasksIndex{Tasks: s.tasks}, s.Timer, s.Core, s.Core.Launch,
		sched.WithPendSwitch(s.Port.PendSwitch),
		sched.WithTrace(s.Trace))
	s.Port.Attach(s.Sched)
	return nil
}

// Run boots the system if needed and runs it until a task stops it, a fault
// occurs or ctx ends.
func (s *System) Run(ctx context.Context) error {
	if s.Sched == nil {
		if err := s.Boot(); err != nil {
			return err
		}
	}
	return s.Core.Run(ctx, s.Sched.Start)
}

func (s *System) Close() error {
	return s.Core.Close()
}

// Critical returns the interrupt controller of the core. It is the default
// controller once the system booted.
func (s *System) Critical() *interrupt.Controller {
	return s.irq
}

func (s *System) Current() *sched.Task {
	return s.Sched.Current()
}

// Block blocks the current task until another task or a handler unblocks
// it. A task blocking on a halted core exits.
func (s *System) Block(crit *interrupt.Section) {
	s.Sched.Block(crit)
	if s.Core.Halted() {
		runtime.Goexit()
	}
}

func (s *System) Unblock(t *sched.Task, crit *interrupt.Section) {
	s.Sched.Unblock(t, crit)
}

// Yield gives up the rest of the time slice.
func (s *System) Yield() {
	s.Port.PendSwitch()
	s.Core.Checkpoint()
}

// Stop halts the system from a task.
func (s *System) Stop() {
	s.Core.Stop()
}

// Name returns the name of the task at index i.
func (s *System) Name(i int) string {
	if i < 0 || i >= len(s.names) {
		return fmt.Sprintf("task%d", i)
	}
	return s.names[i]
}

// CurrentName returns the name of the running task.
func (s *System) CurrentName() string {
	return s.Name(s.Sched.CurrentIndex())
}

// Tasks describes every task. Call it after Run returned, or from a task.
func (s *System) Tasks() []TaskInfo {
	var ticks []uint32
	tasks := s.tasks
	if s.Sched != nil {
		ticks = s.Port.TaskTicks()
		tasks = s.Sched.Index().Tasks
	}
	out := make([]TaskInfo, len(tasks))
	for i, t := range tasks {
		out[i] = TaskInfo{
			Name:       s.Name(i),
			State:      t.State,
			StackStart: t.StackStart,
			StackEnd:   t.StackEnd,
		}
		if i < len(ticks) {
			out[i].Ticks = ticks[i]
		}
	}
	return out
}
