package sched

import "fmt"

type EventKind uint8

const (
	EventSwitch EventKind = iota
	EventBlock
	EventUnblock
	EventOverflow
	EventIdle
)

func (k EventKind) String() string {
	switch k {
	case EventSwitch:
		return "switch"
	case EventBlock:
		return "block"
	case EventUnblock:
		return "unblock"
	case EventOverflow:
		return "overflow"
	case EventIdle:
		return "idle"
	default:
		return fmt.Sprintf("event(%d)", uint8(k))
	}
}

// Event is one scheduler decision. Task is the index of the task the event
// is about; for switches it is the incoming task and From the outgoing one.
// Seq counts context switches since start.
type Event struct {
	Kind EventKind
	Task int
	From int
	Seq  uint64
}

func (e Event) String() string {
	if e.Kind == EventSwitch {
		return fmt.Sprintf("#%d %s %d -> %d", e.Seq, e.Kind, e.From, e.Task)
	}
	return fmt.Sprintf("#%d %s %d", e.Seq, e.Kind, e.Task)
}
