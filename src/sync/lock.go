package sync

import (
	"sync/atomic"

	"omibyte.io/halos/src/runtime/fault"
)

// Lock is an optimistic lock for code that must not block, such as
// interrupt handlers. There is no way to wait for it.
type Lock struct {
	state uint32
}

type LockGuard struct {
	l *Lock
}

// TryLock takes the lock if it is free.
func (l *Lock) TryLock() (LockGuard, bool) {
	if atomic.CompareAndSwapUint32(&l.state, 0, 1) {
		return LockGuard{l}, true
	}
	return LockGuard{}, false
}

func (l *Lock) Locked() bool {
	return atomic.LoadUint32(&l.state) != 0
}

func (g LockGuard) Unlock() {
	if g.l == nil || !atomic.CompareAndSwapUint32(&g.l.state, 1, 0) {
		fault.Abort("sync: unlock of an unlocked lock")
	}
}
