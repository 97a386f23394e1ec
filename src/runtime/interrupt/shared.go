package interrupt

import "omibyte.io/halos/src/runtime/fault"

// Shared holds a value that tasks and interrupt handlers share. The value is
// only reachable while a critical section is held.
type Shared[T any] struct {
	value T
}

func NewShared[T any](v T) *Shared[T] {
	return &Shared[T]{value: v}
}

// Borrow returns the value for the lifetime of crit.
func (s *Shared[T]) Borrow(crit *Section) *T {
	if !crit.Active() {
		fault.Abort("interrupt: shared value borrowed outside of a critical section")
	}
	return &s.value
}
