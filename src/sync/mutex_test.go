package sync

import (
	"reflect"
	"testing"

	"omibyte.io/halos/src/runtime/fault"
	"omibyte.io/halos/src/runtime/interrupt"
	"omibyte.io/halos/src/runtime/queue"
	"omibyte.io/halos/src/runtime/sched"
)

type fakeLine struct{ enabled bool }

func (l *fakeLine) Disable()      { l.enabled = false }
func (l *fakeLine) Enable()       { l.enabled = true }
func (l *fakeLine) Enabled() bool { return l.enabled }

// fakeKernel never switches: Block runs onBlock, if set, and returns.
type fakeKernel struct {
	ctl       *interrupt.Controller
	tasks     []sched.Task
	current   int
	onBlock   func()
	blocked   []int
	unblocked []int
}

func newFakeKernel(n int) *fakeKernel {
	return &fakeKernel{
		ctl:   interrupt.NewController(&fakeLine{enabled: true}),
		tasks: make([]sched.Task, n),
	}
}

func (k *fakeKernel) Critical() *interrupt.Controller {
	return k.ctl
}

func (k *fakeKernel) Current() *sched.Task {
	return &k.tasks[k.current]
}

func (k *fakeKernel) index(t *sched.Task) int {
	for i := range k.tasks {
		if &k.tasks[i] == t {
			return i
		}
	}
	return -1
}

func (k *fakeKernel) Block(crit *interrupt.Section) {
	k.Current().State = sched.Blocked
	k.blocked = append(k.blocked, k.current)
	crit.Exit()
	if k.onBlock != nil {
		hook := k.onBlock
		k.onBlock = nil
		hook()
	}
}

func (k *fakeKernel) Unblock(t *sched.Task, _ *interrupt.Section) {
	t.State = sched.Runnable
	k.unblocked = append(k.unblocked, k.index(t))
}

// as runs fn as task i.
func (k *fakeKernel) as(i int, fn func()) {
	prev := k.current
	k.current = i
	fn()
	k.current = prev
}

func expectFault(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if _, ok := r.(*fault.Trap); !ok {
			t.Errorf("expected a fault, got %v", r)
		}
	}()
	fn()
}

func TestMutexUncontended(t *testing.T) {
	k := newFakeKernel(2)
	m := NewMutex(k)

	g := m.Lock()
	if m.Owner() != &k.tasks[0] {
		t.Error("expected task 0 to own the mutex")
	}
	k.as(1, func() {
		if _, ok := m.TryLock(); ok {
			t.Error("expected TryLock to fail on an owned mutex")
		}
	})
	g.Unlock()
	if m.Owner() != nil {
		t.Error("expected the mutex to be free")
	}

	g, ok := m.TryLock()
	if !ok {
		t.Fatal("expected TryLock to succeed on a free mutex")
	}
	g.Unlock()
	if k.ctl.Depth() != 0 {
		t.Errorf("expected depth 0, got %d", k.ctl.Depth())
	}
}

func TestMutexHandOff(t *testing.T) {
	k := newFakeKernel(3)
	m := NewMutex(k)
	g := m.Lock()

	// Task 1 waits and task 0 unlocks while it is blocked.
	k.onBlock = func() {
		k.as(0, g.Unlock)
	}
	var g1 Guard
	k.as(1, func() {
		g1 = m.Lock()
	})
	if m.Owner() != &k.tasks[1] {
		t.Fatal("expected ownership to pass to task 1")
	}
	if k.tasks[1].State != sched.Runnable {
		t.Errorf("expected task 1 runnable, got %s", k.tasks[1].State)
	}

	k.onBlock = func() {
		k.as(1, g1.Unlock)
	}
	k.as(2, func() {
		m.Lock().Unlock()
	})

	expected := []int{1, 2}
	if !reflect.DeepEqual(k.unblocked, expected) {
		t.Errorf("expected wake order %v, got %v", expected, k.unblocked)
	}
	if m.Owner() != nil {
		t.Error("expected the mutex to be free")
	}
}

// killWaiting queues task i on q and marks it dead, as the scheduler does
// when the task overflows its stack while blocked.
func killWaiting(k *fakeKernel, q *queue.Queue[*sched.Task], i int) {
	n := &queue.Node[*sched.Task]{Value: &k.tasks[i]}
	crit := k.ctl.Enter()
	q.Push(n, &crit)
	crit.Exit()
	k.tasks[i].State = sched.Dead
}

func TestMutexSkipsDeadWaiters(t *testing.T) {
	k := newFakeKernel(3)
	m := NewMutex(k)
	g := m.Lock()
	killWaiting(k, &m.waiting, 1)

	k.onBlock = func() {
		k.as(0, g.Unlock)
	}
	var g2 Guard
	k.as(2, func() {
		g2 = m.Lock()
	})
	if m.Owner() != &k.tasks[2] {
		t.Fatalf("expected task 2 to own the mutex, got %v", m.Owner())
	}
	if !reflect.DeepEqual(k.unblocked, []int{2}) {
		t.Errorf("expected only task 2 woken, got %v", k.unblocked)
	}
	if k.tasks[1].State != sched.Dead {
		t.Errorf("expected task 1 to stay dead, got %s", k.tasks[1].State)
	}

	// Only a dead waiter left: unlock frees the mutex.
	killWaiting(k, &m.waiting, 0)
	k.as(2, g2.Unlock)
	if m.Owner() != nil {
		t.Errorf("expected the mutex to be free, got %v", m.Owner())
	}
}

func TestMutexFaults(t *testing.T) {
	tests := []struct {
		name string
		fn   func(k *fakeKernel, m *Mutex)
	}{
		{
			name: "lock twice",
			fn: func(k *fakeKernel, m *Mutex) {
				m.Lock()
				m.Lock()
			},
		},
		{
			name: "unlock twice",
			fn: func(k *fakeKernel, m *Mutex) {
				g := m.Lock()
				g.Unlock()
				g.Unlock()
			},
		},
		{
			name: "unlock by another task",
			fn: func(k *fakeKernel, m *Mutex) {
				g := m.Lock()
				k.as(1, g.Unlock)
			},
		},
		{
			name: "zero guard",
			fn: func(k *fakeKernel, m *Mutex) {
				Guard{}.Unlock()
			},
		},
		{
			name: "lock owned by dead task",
			fn: func(k *fakeKernel, m *Mutex) {
				m.Lock()
				k.tasks[0].State = sched.Dead
				k.as(1, func() { m.Lock() })
			},
		},
		{
			name: "trylock owned by dead task",
			fn: func(k *fakeKernel, m *Mutex) {
				m.Lock()
				k.tasks[0].State = sched.Dead
				k.as(1, func() { m.TryLock() })
			},
		},
		{
			name: "woken without ownership",
			fn: func(k *fakeKernel, m *Mutex) {
				m.Lock()
				k.as(1, func() { m.Lock() })
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			k := newFakeKernel(2)
			expectFault(t, func() {
				test.fn(k, NewMutex(k))
			})
		})
	}
}

func TestCond(t *testing.T) {
	k := newFakeKernel(4)
	c := NewCond(k)

	c.Signal()
	if len(k.unblocked) != 0 {
		t.Fatalf("expected no wake-up, got %v", k.unblocked)
	}

	for i := 1; i <= 3; i++ {
		k.as(i, c.Wait)
	}
	if !reflect.DeepEqual(k.blocked, []int{1, 2, 3}) {
		t.Fatalf("expected tasks 1-3 blocked, got %v", k.blocked)
	}

	c.Signal()
	if !reflect.DeepEqual(k.unblocked, []int{1}) {
		t.Errorf("expected task 1 woken, got %v", k.unblocked)
	}
	c.Broadcast()
	if !reflect.DeepEqual(k.unblocked, []int{1, 2, 3}) {
		t.Errorf("expected tasks 2 and 3 woken in order, got %v", k.unblocked)
	}
	c.Broadcast()
	if len(k.unblocked) != 3 {
		t.Errorf("expected no more wake-ups, got %v", k.unblocked)
	}
}

func TestCondSkipsDeadWaiters(t *testing.T) {
	k := newFakeKernel(5)
	c := NewCond(k)

	k.as(1, c.Wait)
	killWaiting(k, &c.waiting, 2)
	k.as(3, c.Wait)
	killWaiting(k, &c.waiting, 4)

	c.Signal()
	c.Signal()
	if !reflect.DeepEqual(k.unblocked, []int{1, 3}) {
		t.Errorf("expected tasks 1 and 3 woken, got %v", k.unblocked)
	}
	c.Broadcast()
	if len(k.unblocked) != 2 {
		t.Errorf("expected no dead task woken, got %v", k.unblocked)
	}
	crit := k.ctl.Enter()
	defer crit.Exit()
	if !c.waiting.Empty(&crit) {
		t.Error("expected the wait list to be empty")
	}
}

func TestCondWaitLocked(t *testing.T) {
	k := newFakeKernel(2)
	m := NewMutex(k)
	c := NewCond(k)

	g := m.Lock()
	k.onBlock = func() {
		// Released before blocking, so task 1 can take it. Task 0 then
		// blocks again on the relock until task 1 hands it back.
		var g1 Guard
		k.as(1, func() {
			var ok bool
			if g1, ok = m.TryLock(); !ok {
				t.Error("expected the mutex to be free while waiting")
			}
		})
		k.onBlock = func() {
			k.as(1, g1.Unlock)
		}
	}

	g = c.WaitLocked(g)
	if m.Owner() != &k.tasks[0] {
		t.Error("expected task 0 to own the mutex again")
	}
	if !reflect.DeepEqual(k.blocked, []int{0, 0}) {
		t.Errorf("expected task 0 to block twice, got %v", k.blocked)
	}
	g.Unlock()
}

func TestLock(t *testing.T) {
	var l Lock

	g, ok := l.TryLock()
	if !ok || !l.Locked() {
		t.Fatal("expected TryLock to take a free lock")
	}
	if _, ok := l.TryLock(); ok {
		t.Error("expected TryLock to fail on a taken lock")
	}
	g.Unlock()
	if l.Locked() {
		t.Error("expected the lock to be free")
	}
	expectFault(t, g.Unlock)
	expectFault(t, LockGuard{}.Unlock)
}
