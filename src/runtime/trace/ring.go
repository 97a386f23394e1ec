// Package trace keeps the most recent runtime events in a fixed ring.
package trace

import "errors"

var ErrEmpty = errors.New("ring is empty")

const defaultRingSz = 256

// Ring is a fixed capacity buffer. When full, Put overwrites the oldest
// record. Nothing is allocated after New.
type Ring[T any] struct {
	buffer  []T
	begin   int
	end     int
	full    bool
	dropped uint64
}

func New[T any](sz int) *Ring[T] {
	if sz <= 0 {
		sz = defaultRingSz
	}
	return &Ring[T]{
		buffer: make([]T, sz),
	}
}

// Put appends v, dropping the oldest record if the ring is full.
func (r *Ring[T]) Put(v T) {
	if r.full {
		// Overwrite the oldest record
		r.begin = r.next(r.begin)
		r.dropped++
	}

	r.buffer[r.end] = v
	r.end = r.next(r.end)
	r.full = r.end == r.begin
}

// Get removes and returns the oldest record.
func (r *Ring[T]) Get() (T, error) {
	var zero T
	if r.Len() == 0 {
		return zero, ErrEmpty
	}
	v := r.buffer[r.begin]
	r.buffer[r.begin] = zero
	r.begin = r.next(r.begin)
	r.full = false
	return v, nil
}

// Snapshot appends the records to dst, oldest first, without removing them.
func (r *Ring[T]) Snapshot(dst []T) []T {
	for i, n := r.begin, r.Len(); n > 0; i, n = r.next(i), n-1 {
		dst = append(dst, r.buffer[i])
	}
	return dst
}

func (r *Ring[T]) Len() int {
	if r.full {
		return len(r.buffer)
	} else if r.end >= r.begin {
		return r.end - r.begin
	} else {
		return (len(r.buffer) - r.begin) + r.end
	}
}

func (r *Ring[T]) Cap() int {
	return len(r.buffer)
}

// Dropped returns how many records were overwritten before being read.
func (r *Ring[T]) Dropped() uint64 {
	return r.dropped
}

func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.buffer {
		r.buffer[i] = zero
	}
	r.begin, r.end, r.full, r.dropped = 0, 0, false, 0
}

func (r *Ring[T]) next(i int) int {
	i++
	if i == len(r.buffer) {
		return 0
	}
	return i
}
