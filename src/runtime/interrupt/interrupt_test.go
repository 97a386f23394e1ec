package interrupt

import (
	"testing"

	"omibyte.io/halos/src/runtime/fault"
)

type fakeLine struct {
	enabled  bool
	disables int
	enables  int
}

func (l *fakeLine) Disable() {
	l.enabled = false
	l.disables++
}

func (l *fakeLine) Enable() {
	l.enabled = true
	l.enables++
}

func (l *fakeLine) Enabled() bool {
	return l.enabled
}

func expectTrap(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if _, ok := r.(*fault.Trap); !ok {
			t.Errorf("expected a fault trap, got %v", r)
		}
	}()
	fn()
}

func TestNesting(t *testing.T) {
	line := &fakeLine{enabled: true}
	c := NewController(line)

	outer := c.Enter()
	if line.Enabled() {
		t.Fatal("interrupts enabled after enter")
	}
	inner := c.Enter()
	if c.Depth() != 2 {
		t.Errorf("expected depth 2, got %d", c.Depth())
	}

	inner.Exit()
	if line.Enabled() {
		t.Error("interrupts enabled after inner exit")
	}
	if line.enables != 0 {
		t.Errorf("expected no enables, got %d", line.enables)
	}

	outer.Exit()
	if !line.Enabled() {
		t.Error("interrupts disabled after outer exit")
	}
	if line.enables != 1 {
		t.Errorf("expected 1 enable, got %d", line.enables)
	}
	if c.Depth() != 0 {
		t.Errorf("expected depth 0, got %d", c.Depth())
	}
}

func TestMisuse(t *testing.T) {
	tests := []struct {
		name string
		fn   func(c *Controller)
	}{
		{"doubleExit", func(c *Controller) {
			s := c.Enter()
			s.Exit()
			s.Exit()
		}},
		{"outOfOrder", func(c *Controller) {
			outer := c.Enter()
			c.Enter()
			outer.Exit()
		}},
		{"staleCopy", func(c *Controller) {
			s := c.Enter()
			stale := &Section{ctl: s.ctl, level: s.level, id: s.id, outer: s.outer}
			s.Exit()
			next := c.Enter()
			defer next.Exit()
			stale.Exit()
		}},
		{"zeroSection", func(c *Controller) {
			var s Section
			s.Exit()
		}},
		{"noLine", func(*Controller) {
			NewController(nil).Enter()
		}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := NewController(&fakeLine{enabled: true})
			expectTrap(t, func() {
				test.fn(c)
			})
		})
	}
}

func TestDoReleasesOnPanic(t *testing.T) {
	line := &fakeLine{enabled: true}
	c := NewController(line)

	func() {
		defer func() {
			recover()
		}()
		c.Do(func(crit *Section) {
			panic("boom")
		})
	}()

	if c.Depth() != 0 || !line.Enabled() {
		t.Errorf("section leaked: depth %d, enabled %v", c.Depth(), line.Enabled())
	}
}

func TestShared(t *testing.T) {
	c := NewController(&fakeLine{enabled: true})
	counter := NewShared(0)

	c.Do(func(crit *Section) {
		*counter.Borrow(crit) += 2
	})
	c.Do(func(crit *Section) {
		if v := *counter.Borrow(crit); v != 2 {
			t.Errorf("expected 2, got %d", v)
		}
	})

	s := c.Enter()
	s.Exit()
	expectTrap(t, func() {
		counter.Borrow(&s)
	})
}

func TestDefaultController(t *testing.T) {
	line := &fakeLine{enabled: true}
	Init(line)
	defer Init(nil)

	s := Disable()
	if Default().Depth() != 1 || line.Enabled() {
		t.Error("default controller did not enter")
	}
	s.Exit()
	if !line.Enabled() {
		t.Error("default controller did not exit")
	}

	// Rebinding starts over, even after a section was left open
	Disable()
	Init(line)
	if Default().Depth() != 0 {
		t.Errorf("expected depth 0 after Init, got %d", Default().Depth())
	}
}
