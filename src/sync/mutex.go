// Package sync provides blocking primitives for tasks run by the scheduler.
package sync

import (
	"omibyte.io/halos/src/runtime/fault"
	"omibyte.io/halos/src/runtime/interrupt"
	"omibyte.io/halos/src/runtime/queue"
	"omibyte.io/halos/src/runtime/sched"
)

// Kernel is the part of the scheduler the primitives block and wake tasks
// through.
type Kernel interface {
	Critical() *interrupt.Controller
	Current() *sched.Task
	Block(crit *interrupt.Section)
	Unblock(t *sched.Task, crit *interrupt.Section)
}

// Mutex is a task mutex. Unlock hands ownership directly to the longest
// waiting task, so waiters acquire it in arrival order and a task that
// unlocks and locks again cannot barge ahead of them.
type Mutex struct {
	k       Kernel
	owner   *sched.Task
	waiting queue.Queue[*sched.Task]
}

func NewMutex(k Kernel) *Mutex {
	return &Mutex{k: k}
}

// Guard is proof of ownership. Unlock it exactly once.
type Guard struct {
	m *Mutex
}

// Lock acquires m, blocking the calling task while another task owns it.
func (m *Mutex) Lock() Guard {
	crit := m.k.Critical().Enter()
	self := m.k.Current()
	if m.owner == nil {
		m.owner = self
		crit.Exit()
		return Guard{m}
	}
	if m.owner == self {
		fault.Abort("sync: mutex locked twice by the same task")
	}
	if m.owner.State == sched.Dead {
		fault.Abort("sync: mutex owned by a dead task")
	}

	// The node lives on this stack until the unlocker pops it.
	waiter := queue.Node[*sched.Task]{Value: self}
	m.waiting.Push(&waiter, &crit)
	m.k.Block(&crit)

	crit = m.k.Critical().Enter()
	if m.owner != self {
		fault.Abort("sync: task woken without mutex ownership")
	}
	crit.Exit()
	return Guard{m}
}

// TryLock acquires m if it is free.
func (m *Mutex) TryLock() (Guard, bool) {
	crit := m.k.Critical().Enter()
	defer crit.Exit()
	if m.owner != nil {
		if m.owner.State == sched.Dead {
			fault.Abort("sync: mutex owned by a dead task")
		}
		return Guard{}, false
	}
	m.owner = m.k.Current()
	return Guard{m}, true
}

// Owner returns the owning task, or nil.
func (m *Mutex) Owner() *sched.Task {
	crit := m.k.Critical().Enter()
	defer crit.Exit()
	return m.owner
}

// Unlock releases the mutex. Unlocking a mutex the caller does not own
// faults.
func (g Guard) Unlock() {
	m := g.m
	if m == nil {
		fault.Abort("sync: unlock of a zero guard")
	}
	crit := m.k.Critical().Enter()
	m.release(&crit)
	crit.Exit()
}

// release hands m to the longest waiting live task, or frees it.
func (m *Mutex) release(crit *interrupt.Section) {
	if m.owner == nil || m.owner != m.k.Current() {
		fault.Abort("sync: unlock of a mutex not owned by the current task")
	}
	if next := popLive(&m.waiting, crit); next != nil {
		m.owner = next
		m.k.Unblock(next, crit)
		return
	}
	m.owner = nil
}

// popLive pops waiters until one belongs to a task that was not killed
// while it waited.
func popLive(q *queue.Queue[*sched.Task], crit *interrupt.Section) *sched.Task {
	for n := q.Pop(crit); n != nil; n = q.Pop(crit) {
		if n.Value.State != sched.Dead {
			return n.Value
		}
	}
	return nil
}
