// Package sched implements a preemptive round-robin scheduler over a
// static task table.
package sched

import (
	"omibyte.io/halos/src/runtime/fault"
	"omibyte.io/halos/src/runtime/interrupt"
	"omibyte.io/halos/src/runtime/trace"
)

type Option func(s *Scheduler)

// WithPendSwitch sets the function that requests a deferred context switch
// (sets PendSV pending on Cortex-M). Block needs it.
func WithPendSwitch(pend func()) Option {
	return func(s *Scheduler) {
		s.pend = pend
	}
}

// WithTrace records scheduler events into ring.
func WithTrace(ring *trace.Ring[Event]) Option {
	return func(s *Scheduler) {
		s.trace = ring
	}
}

// Scheduler owns the task table. Every method except Start runs either in
// the context switch handler or inside a critical section.
type Scheduler struct {
	index         TasksIndex
	systick       Systick
	stacks        StackManager
	contextSwitch func()
	pend          func()
	trace         *trace.Ring[Event]
	idle          bool
	switches      uint64
}

// New creates a scheduler for ti. contextSwitch is the trampoline that
// leaves the boot context for the first task.
func New(ti TasksIndex, systick Systick, stacks StackManager, contextSwitch func(), options ...Option) *Scheduler {
	if len(ti.Tasks) == 0 {
		fault.Abort("sched: empty task table")
	}
	if ti.Current < 0 || ti.Current >= len(ti.Tasks) {
		fault.Abortf("sched: current task %d out of range", ti.Current)
	}
	s := &Scheduler{
		index:         ti,
		systick:       systick,
		stacks:        stacks,
		contextSwitch: contextSwitch,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Start loads the stack pointer of the current task, arms the tick and
// enters the first task. On hardware it does not return.
func (s *Scheduler) Start() {
	s.stacks.SetTaskStackPointer(s.Current().StackStart)
	s.systick.Start()
	s.contextSwitch()
}

// Switch saves the stack pointer of the outgoing task, picks the next
// runnable task in round-robin order and loads its stack pointer. When no
// task can run the current slot is kept and Idle reports true.
func (s *Scheduler) Switch() {
	tasks := s.index.Tasks
	from := s.index.Current

	out := &tasks[from]
	if out.State != Dead {
		out.StackStart = s.stacks.TaskStackPointer()
		if out.StackEnd != 0 && out.StackStart < out.StackEnd {
			out.State = Dead
			s.record(Event{Kind: EventOverflow, Task: from})
		}
	}

	next := -1
	for i := 1; i <= len(tasks); i++ {
		j := (from + i) % len(tasks)
		if tasks[j].State == Runnable {
			next = j
			break
		}
	}

	if next < 0 {
		if !s.idle {
			s.record(Event{Kind: EventIdle, Task: from})
		}
		s.idle = true
		s.stacks.SetTaskStackPointer(out.StackStart)
		return
	}

	s.idle = false
	s.index.Current = next
	if next != from {
		s.switches++
		s.record(Event{Kind: EventSwitch, Task: next, From: from})
	}
	s.stacks.SetTaskStackPointer(tasks[next].StackStart)
}

// Block marks the current task blocked, requests a context switch and
// leaves crit. The switch happens as the section is left, so crit must be
// the outermost section.
func (s *Scheduler) Block(crit *interrupt.Section) {
	if crit.Level() != 1 {
		fault.Abortf("sched: block inside a critical section nested %d deep", crit.Level())
	}
	if s.pend == nil {
		fault.Abort("sched: block without a context switch request")
	}
	s.Current().State = Blocked
	s.record(Event{Kind: EventBlock, Task: s.index.Current})
	s.pend()
	crit.Exit()
}

// Unblock makes t runnable again. It takes effect at the next switch.
func (s *Scheduler) Unblock(t *Task, _ *interrupt.Section) {
	if t.State != Blocked {
		return
	}
	t.State = Runnable
	s.record(Event{Kind: EventUnblock, Task: s.IndexOf(t)})
}

func (s *Scheduler) Current() *Task {
	return &s.index.Tasks[s.index.Current]
}

func (s *Scheduler) CurrentIndex() int {
	return s.index.Current
}

// IndexOf returns the table index of t, or -1 if t is not in the table.
func (s *Scheduler) IndexOf(t *Task) int {
	for i := range s.index.Tasks {
		if &s.index.Tasks[i] == t {
			return i
		}
	}
	return -1
}

func (s *Scheduler) Index() *TasksIndex {
	return &s.index
}

// Idle reports whether the last switch found no runnable task.
func (s *Scheduler) Idle() bool {
	return s.idle
}

// Switches returns the number of context switches so far.
func (s *Scheduler) Switches() uint64 {
	return s.switches
}

func (s *Scheduler) record(e Event) {
	if s.trace == nil {
		return
	}
	e.Seq = s.switches
	s.trace.Put(e)
}
