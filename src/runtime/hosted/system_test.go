package hosted

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"omibyte.io/halos/src/runtime/arm/cortexm"
	"omibyte.io/halos/src/runtime/fault"
	"omibyte.io/halos/src/runtime/interrupt"
	"omibyte.io/halos/src/runtime/queue"
	"omibyte.io/halos/src/runtime/sched"
)

func newSystem(t *testing.T, cfg Config) *System {
	t.Helper()
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 100 * time.Millisecond
	}
	s, err := NewSystem(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func run(t *testing.T, s *System) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Run(ctx)
}

func expectTrap(t *testing.T, err error, reason string) {
	t.Helper()
	var trap *fault.Trap
	if !errors.As(err, &trap) {
		t.Fatalf("expected a trap, got %v", err)
	}
	if !strings.Contains(trap.Reason, reason) {
		t.Errorf("expected trap containing %q, got %q", reason, trap.Reason)
	}
}

func TestBootErrors(t *testing.T) {
	s := newSystem(t, Config{})
	if err := s.Boot(); !errors.Is(err, ErrNoTasks) {
		t.Errorf("expected ErrNoTasks, got %v", err)
	}

	if err := s.Spawn("idle", func(uint32) {}, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Boot(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Spawn("late", func(uint32) {}, 0, 0); !errors.Is(err, ErrBooted) {
		t.Errorf("expected ErrBooted, got %v", err)
	}
}

func TestBootBindsDefaultController(t *testing.T) {
	s := newSystem(t, Config{})
	var (
		masked bool
		depth  uint32
	)
	err := s.Spawn("main", func(uint32) {
		crit := interrupt.Disable()
		masked = !s.Core.Enabled()
		depth = s.Critical().Depth()
		crit.Exit()
		s.Stop()
	}, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := run(t, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Critical() != interrupt.Default() {
		t.Error("expected the system to use the default controller")
	}
	if !masked || depth != 1 {
		t.Errorf("expected a masked core at depth 1, got masked %v at depth %d", masked, depth)
	}
}

func TestSpawnExhaustsSRAM(t *testing.T) {
	s := newSystem(t, Config{SRAMSize: 4096})
	err := s.Spawn("big", func(uint32) {}, 0, 8192)
	if !errors.Is(err, cortexm.ErrStackExhausted) {
		t.Errorf("expected ErrStackExhausted, got %v", err)
	}
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"too many IRQs", Config{NumIRQ: 500}},
		{"unaligned SRAM", Config{SRAMBase: 0x2000_0004, SRAMSize: 1020}},
		{"SRAM over PPB", Config{SRAMBase: 0xE000_0000, SRAMSize: 0x10000}},
		{"unknown core", Config{Core: "cortex-a53"}},
		{"slow clock", Config{ClockHz: 100, TickHz: 1000}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewCore(test.cfg)
			if !errors.Is(err, ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestRoundRobin(t *testing.T) {
	s := newSystem(t, Config{TickPeriod: time.Millisecond})

	var seen [2]bool
	task := func(arg uint32) {
		for {
			seen[arg] = true
			if seen[0] && seen[1] {
				s.Stop()
			}
			s.Core.Checkpoint()
		}
	}
	for i := uint32(0); i < 2; i++ {
		if err := s.Spawn("spin", task, i, 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := run(t, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Port.Ticks() == 0 {
		t.Error("expected SysTick to fire")
	}
	if s.Sched.Switches() == 0 {
		t.Error("expected a context switch")
	}
	if reload := s.Core.Peripherals().SYST.RVR.GetRELOAD(); reload != 15999 {
		t.Errorf("expected reload 15999, got %d", reload)
	}
}

func TestMutexHandOff(t *testing.T) {
	s := newSystem(t, Config{})
	m := newMutex(s)

	var order []string
	blocked := func(i int) bool {
		return s.Sched.Index().Tasks[i].State == sched.Blocked
	}

	a := func(uint32) {
		m.lock()
		order = append(order, "A")
		for !blocked(1) || !blocked(2) {
			s.Yield()
		}
		m.unlock()
		// B and C queued first, so A gets the mutex last
		m.lock()
		order = append(order, "A")
		s.Stop()
	}
	other := func(name string) func(uint32) {
		return func(uint32) {
			m.lock()
			order = append(order, name)
			m.unlock()
			for {
				s.Yield()
			}
		}
	}

	for _, task := range []struct {
		name  string
		entry func(uint32)
	}{{"A", a}, {"B", other("B")}, {"C", other("C")}} {
		if err := s.Spawn(task.name, task.entry, 0, 0); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := run(t, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []string{"A", "B", "C", "A"}
	if !reflect.DeepEqual(order, expected) {
		t.Errorf("expected %v, got %v", expected, order)
	}
}

func TestInterruptWakesTask(t *testing.T) {
	s := newSystem(t, Config{})
	const irq = cortexm.Interrupt(3)

	var waiter *sched.Task
	handled := 0
	s.Core.Vectors().SetIRQ(irq, func() {
		handled++
		crit := s.Critical().Enter()
		s.Unblock(waiter, &crit)
		crit.Exit()
	})
	s.Core.Peripherals().NVIC.EnableIRQ(irq)

	err := s.Spawn("waiter", func(uint32) {
		crit := s.Critical().Enter()
		waiter = s.Current()
		if err := s.Core.Raise(irq); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		s.Block(&crit)
		if handled != 1 {
			t.Errorf("expected 1 interrupt, got %d", handled)
		}
		s.Stop()
	}, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := run(t, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Core.Peripherals().NVIC.IsActive(irq) {
		t.Error("expected IRQ3 to be inactive")
	}
}

func TestRaiseUnknownIRQ(t *testing.T) {
	s := newSystem(t, Config{NumIRQ: 8})
	if err := s.Core.Raise(8); !errors.Is(err, ErrNoSuchIRQ) {
		t.Errorf("expected ErrNoSuchIRQ, got %v", err)
	}
}

func TestFaults(t *testing.T) {
	tests := []struct {
		name   string
		task   func(s *System) func(uint32)
		reason string
	}{
		{
			name: "task returns",
			task: func(s *System) func(uint32) {
				return func(uint32) {}
			},
			reason: "task returned",
		},
		{
			name: "deadlock",
			task: func(s *System) func(uint32) {
				return func(uint32) {
					crit := s.Critical().Enter()
					s.Block(&crit)
				}
			},
			reason: "deadlock",
		},
		{
			name: "unhandled interrupt",
			task: func(s *System) func(uint32) {
				return func(uint32) {
					s.Core.Peripherals().NVIC.EnableIRQ(5)
					s.Core.Raise(5)
					for {
						s.Core.Checkpoint()
					}
				}
			},
			reason: "unhandled exception IRQ5",
		},
		{
			name: "nested block",
			task: func(s *System) func(uint32) {
				return func(uint32) {
					outer := s.Critical().Enter()
					inner := s.Critical().Enter()
					s.Block(&inner)
					outer.Exit()
				}
			},
			reason: "nested 2 deep",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := newSystem(t, Config{IdleTimeout: 20 * time.Millisecond})
			if err := s.Spawn(test.name, test.task(s), 0, 0); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			expectTrap(t, run(t, s), test.reason)
		})
	}
}

func TestStackOverflow(t *testing.T) {
	s := newSystem(t, Config{})

	if err := s.Spawn("greedy", func(uint32) {
		s.Core.UseStack(4096)
		for {
			s.Yield()
		}
	}, 0, 512); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Spawn("watcher", func(uint32) {
		for s.Sched.Index().Tasks[0].State != sched.Dead {
			s.Yield()
		}
		s.Stop()
	}, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := run(t, s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var kinds []sched.EventKind
	found := false
	for _, e := range s.Trace.Snapshot(nil) {
		kinds = append(kinds, e.Kind)
		if e.Kind == sched.EventOverflow && e.Task == 0 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an overflow event, got %v", kinds)
	}
	if info := s.Tasks()[0]; info.State != sched.Dead || info.Name != "greedy" {
		t.Errorf("expected greedy to be dead, got %+v", info)
	}
}

func TestContextCancel(t *testing.T) {
	s := newSystem(t, Config{})
	if err := s.Spawn("spin", func(uint32) {
		for {
			s.Core.Checkpoint()
		}
	}, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded, got %v", err)
	}
	if err := s.Run(ctx); !errors.Is(err, ErrRunning) {
		t.Errorf("expected ErrRunning, got %v", err)
	}
}

// mutex is a minimal FIFO lock built directly on the kernel, so this package
// can be tested without the sync package.
type mutex struct {
	s       *System
	owner   *sched.Task
	waiting queue.Queue[*sched.Task]
}

func newMutex(s *System) *mutex {
	return &mutex{s: s}
}

func (m *mutex) lock() {
	crit := m.s.Critical().Enter()
	if m.owner == nil {
		m.owner = m.s.Current()
		crit.Exit()
		return
	}
	n := queue.Node[*sched.Task]{Value: m.s.Current()}
	m.waiting.Push(&n, &crit)
	m.s.Block(&crit)
}

func (m *mutex) unlock() {
	crit := m.s.Critical().Enter()
	m.owner = nil
	if n := m.waiting.Pop(&crit); n != nil {
		m.owner = n.Value
		m.s.Unblock(n.Value, &crit)
	}
	crit.Exit()
}
