package volatile

import (
	"sync"
	"unsafe"
)

// Access is one load or store seen by a Recorder.
type Access struct {
	Addr  uintptr
	Width uintptr
	Value uint32
	Write bool
}

// Recorder forwards every access to another backend and keeps a log of it.
type Recorder struct {
	mu     sync.Mutex
	next   Backend
	log    []Access
	loads  map[uintptr]int
	stores map[uintptr]int
}

// NewRecorder returns a recorder forwarding to next, or to Direct if next
// is nil.
func NewRecorder(next Backend) *Recorder {
	if next == nil {
		next = Direct{}
	}
	return &Recorder{
		next:   next,
		loads:  map[uintptr]int{},
		stores: map[uintptr]int{},
	}
}

func (r *Recorder) Load(addr unsafe.Pointer, width uintptr) uint32 {
	v := r.next.Load(addr, width)
	r.mu.Lock()
	r.log = append(r.log, Access{Addr: uintptr(addr), Width: width, Value: v})
	r.loads[uintptr(addr)]++
	r.mu.Unlock()
	return v
}

func (r *Recorder) Store(addr unsafe.Pointer, width uintptr, value uint32) {
	r.next.Store(addr, width, value)
	r.mu.Lock()
	r.log = append(r.log, Access{Addr: uintptr(addr), Width: width, Value: value, Write: true})
	r.stores[uintptr(addr)]++
	r.mu.Unlock()
}

// Loads returns the number of loads from addr.
func (r *Recorder) Loads(addr uintptr) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loads[addr]
}

// Stores returns the number of stores to addr.
func (r *Recorder) Stores(addr uintptr) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stores[addr]
}

// Accesses returns a copy of the access log in program order.
func (r *Recorder) Accesses() []Access {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Access(nil), r.log...)
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = nil
	r.loads = map[uintptr]int{}
	r.stores = map[uintptr]int{}
}
