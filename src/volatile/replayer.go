package volatile

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"
)

type expectation struct {
	addr  uintptr
	value uint32
	write bool
}

func (e expectation) String() string {
	op := "read"
	if e.write {
		op = "write"
	}
	return fmt.Sprintf("%s 0x%x @ 0x%x", op, e.value, e.addr)
}

// Replayer is a backend that serves a scripted sequence of register
// accesses. Reads return the scripted value, writes are compared with the
// script. Nothing touches real memory.
type Replayer struct {
	mu       sync.Mutex
	script   []expectation
	pos      int
	failures []error
}

func NewReplayer() *Replayer {
	return &Replayer{}
}

// ExpectRead scripts a load from addr that returns value.
func (r *Replayer) ExpectRead(addr uintptr, value uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.script = append(r.script, expectation{addr: addr, value: value})
}

// ExpectWrite scripts a store of value to addr.
func (r *Replayer) ExpectWrite(addr uintptr, value uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.script = append(r.script, expectation{addr: addr, value: value, write: true})
}

func (r *Replayer) next(got expectation) (expectation, bool) {
	if r.pos >= len(r.script) {
		r.failures = append(r.failures, fmt.Errorf("%w: %s past end of script", ErrUnexpectedAccess, got))
		return expectation{}, false
	}
	want := r.script[r.pos]
	r.pos++
	if want.addr != got.addr || want.write != got.write || (want.write && want.value != got.value) {
		r.failures = append(r.failures, fmt.Errorf("%w: step %d: got %s, want %s", ErrUnexpectedAccess, r.pos-1, got, want))
		return expectation{}, false
	}
	return want, true
}

func (r *Replayer) Load(addr unsafe.Pointer, width uintptr) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	want, ok := r.next(expectation{addr: uintptr(addr)})
	if !ok {
		return 0
	}
	return want.value
}

func (r *Replayer) Store(addr unsafe.Pointer, width uintptr, value uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next(expectation{addr: uintptr(addr), value: value, write: true})
}

// Verify reports every mismatched access and every scripted access that
// was not replayed.
func (r *Replayer) Verify() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	errs := append([]error(nil), r.failures...)
	for _, e := range r.script[r.pos:] {
		errs = append(errs, fmt.Errorf("%w: %s", ErrUnreplayed, e))
	}
	return errors.Join(errs...)
}
