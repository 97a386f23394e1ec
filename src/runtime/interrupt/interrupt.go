// Package interrupt implements nestable critical sections over a single
// global interrupt line (PRIMASK on Cortex-M).
package interrupt

import (
	"omibyte.io/halos/src/runtime/fault"
)

// Line is the physical interrupt mask of the core.
type Line interface {
	// Disable masks all maskable interrupts.
	Disable()
	// Enable unmasks interrupts. Pending exceptions may be taken before
	// Enable returns.
	Enable()
	Enabled() bool
}

// Controller tracks how deeply critical sections are nested. Interrupts are
// masked while the depth is above zero.
type Controller struct {
	line  Line
	depth uint32

	// Identity of the innermost open section
	seq uint32
	top uint32
}

func NewController(line Line) *Controller {
	return &Controller{line: line}
}

// noCopy makes go vet report copies of a Section.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Section is the proof that interrupts are masked. Operations that need
// exclusive access take a *Section; holding one is the only way to call
// them. A Section must not be copied: pass *Section. Exiting a copy after
// the original faults.
type Section struct {
	_     noCopy
	ctl   *Controller
	level uint32
	id    uint32
	outer uint32
	done  bool
}

// Enter masks interrupts and returns a section at the next nesting level.
func (c *Controller) Enter() Section {
	if c.line == nil {
		fault.Abort("interrupt: no interrupt line installed")
	}
	c.line.Disable()
	c.depth++
	c.seq++
	outer := c.top
	c.top = c.seq
	return Section{ctl: c, level: c.depth, id: c.seq, outer: outer}
}

// Do runs fn inside a critical section. The section is released on every
// path out of fn.
func (c *Controller) Do(fn func(crit *Section)) {
	s := c.Enter()
	defer s.Exit()
	fn(&s)
}

// Depth returns the current nesting depth.
func (c *Controller) Depth() uint32 {
	return c.depth
}

// Exit leaves the section. Interrupts are unmasked when the outermost
// section is left. Sections must be left in reverse order of entry and only
// once.
func (s *Section) Exit() {
	c := s.ctl
	switch {
	case c == nil:
		fault.Abort("interrupt: exit of a section that was never entered")
	case s.done:
		fault.Abort("interrupt: section exited twice")
	case c.depth == 0:
		fault.Abort("interrupt: critical section depth underflow")
	case c.depth != s.level:
		fault.Abortf("interrupt: section at level %d exited at depth %d", s.level, c.depth)
	case c.top != s.id:
		fault.Abort("interrupt: exit of a stale copy of a section")
	}
	s.done = true
	c.top = s.outer
	c.depth--
	if c.depth == 0 {
		c.line.Enable()
	}
}

// Level returns the nesting level the section was entered at.
func (s *Section) Level() uint32 {
	return s.level
}

// Active reports whether the section has been entered and not yet left.
func (s *Section) Active() bool {
	return s != nil && s.ctl != nil && !s.done
}

// Controller returns the controller the section belongs to.
func (s *Section) Controller() *Controller {
	return s.ctl
}

var std Controller

// Init binds the default controller to the core's interrupt line and
// resets its depth. It is called once during boot.
func Init(line Line) {
	std = Controller{line: line}
}

// Default returns the default controller.
func Default() *Controller {
	return &std
}

// Disable enters a critical section on the default controller.
func Disable() Section {
	return std.Enter()
}
