package sched

import "strconv"

type State uint8

const (
	Runnable State = iota
	Blocked
	// Dead tasks are never scheduled again. A task dies when its stack
	// overflows.
	Dead
)

func (s State) String() string {
	switch s {
	case Runnable:
		return "runnable"
	case Blocked:
		return "blocked"
	case Dead:
		return "dead"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// Task is one entry of the static task table. StackStart holds the saved
// stack pointer while the task is switched out. StackEnd is the lowest
// address of its stack; stacks grow down.
type Task struct {
	State      State
	StackStart uint32
	StackEnd   uint32
}

// TasksIndex is the task table. It is built once at start-up and never
// grows.
type TasksIndex struct {
	Tasks   []Task
	Current int
}

// Systick arms the periodic tick that drives preemption.
type Systick interface {
	Start()
}

// StackManager gives access to the stack pointer of the interrupted task
// (PSP on Cortex-M).
type StackManager interface {
	TaskStackPointer() uint32
	SetTaskStackPointer(sp uint32)
}
