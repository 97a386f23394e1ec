package sync

import (
	"omibyte.io/halos/src/runtime/queue"
	"omibyte.io/halos/src/runtime/sched"
)

// Cond is a condition variable. Signals are not remembered: a Signal or
// Broadcast with no waiting task does nothing.
type Cond struct {
	k       Kernel
	waiting queue.Queue[*sched.Task]
}

func NewCond(k Kernel) *Cond {
	return &Cond{k: k}
}

// Wait blocks the calling task until it is signalled.
func (c *Cond) Wait() {
	crit := c.k.Critical().Enter()
	waiter := queue.Node[*sched.Task]{Value: c.k.Current()}
	c.waiting.Push(&waiter, &crit)
	c.k.Block(&crit)
}

// WaitLocked releases g, blocks until signalled and locks the mutex again.
// The task is queued before the mutex is released, so a signal sent by the
// next owner cannot be missed.
func (c *Cond) WaitLocked(g Guard) Guard {
	m := g.m
	crit := c.k.Critical().Enter()
	waiter := queue.Node[*sched.Task]{Value: c.k.Current()}
	c.waiting.Push(&waiter, &crit)
	m.release(&crit)
	c.k.Block(&crit)
	return m.Lock()
}

// Signal wakes the longest waiting task.
func (c *Cond) Signal() {
	crit := c.k.Critical().Enter()
	if t := popLive(&c.waiting, &crit); t != nil {
		c.k.Unblock(t, &crit)
	}
	crit.Exit()
}

// Broadcast wakes every waiting task.
func (c *Cond) Broadcast() {
	crit := c.k.Critical().Enter()
	for t := popLive(&c.waiting, &crit); t != nil; t = popLive(&c.waiting, &crit) {
		c.k.Unblock(t, &crit)
	}
	crit.Exit()
}
