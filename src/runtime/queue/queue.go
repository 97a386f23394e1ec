// Package queue implements an intrusive FIFO list whose nodes live in
// memory owned by the caller, typically the stack frame of a blocked task.
// Every operation requires a critical section.
package queue

import "omibyte.io/halos/src/runtime/interrupt"

// Node is a queue element. A node may be linked into at most one queue and
// must outlive its membership.
type Node[T any] struct {
	next  *Node[T]
	Value T
}

// Queue is a singly linked list with head and tail pointers. The zero value
// is an empty queue.
type Queue[T any] struct {
	head *Node[T]
	tail *Node[T]
}

// Push appends n at the tail.
func (q *Queue[T]) Push(n *Node[T], _ *interrupt.Section) {
	n.next = nil
	if q.tail == nil {
		q.head = n
	} else {
		q.tail.next = n
	}
	q.tail = n
}

// Pop removes and returns the head, or nil if the queue is empty.
func (q *Queue[T]) Pop(_ *interrupt.Section) *Node[T] {
	n := q.head
	if n == nil {
		return nil
	}
	q.head = n.next
	if q.head == nil {
		q.tail = nil
	}
	n.next = nil
	return n
}

// Peek returns the head without removing it.
func (q *Queue[T]) Peek(_ *interrupt.Section) *Node[T] {
	return q.head
}

// Insert links n in front of the first node it is strictly higher than, so
// nodes of equal priority keep their arrival order.
func (q *Queue[T]) Insert(n *Node[T], _ *interrupt.Section, higher func(a, b T) bool) {
	var prev *Node[T]
	cur := q.head
	for cur != nil && !higher(n.Value, cur.Value) {
		prev, cur = cur, cur.next
	}
	n.next = cur
	if prev == nil {
		q.head = n
	} else {
		prev.next = n
	}
	if cur == nil {
		q.tail = n
	}
}

// Remove unlinks n and reports whether it was queued.
func (q *Queue[T]) Remove(n *Node[T], _ *interrupt.Section) bool {
	var prev *Node[T]
	for cur := q.head; cur != nil; prev, cur = cur, cur.next {
		if cur != n {
			continue
		}
		if prev == nil {
			q.head = cur.next
		} else {
			prev.next = cur.next
		}
		if q.tail == cur {
			q.tail = prev
		}
		cur.next = nil
		return true
	}
	return false
}

func (q *Queue[T]) Empty(_ *interrupt.Section) bool {
	return q.head == nil
}

func (q *Queue[T]) Len(_ *interrupt.Section) int {
	n := 0
	for cur := q.head; cur != nil; cur = cur.next {
		n++
	}
	return n
}
