package demo

import (
	"fmt"
	"io"
	"strings"
	"time"

	"omibyte.io/halos/src/runtime/arm/cortexm"
	"omibyte.io/halos/src/runtime/hosted"
	"omibyte.io/halos/src/runtime/interrupt"
	"omibyte.io/halos/src/sync"
)

func init() {
	register(App{
		Name:        "handoff",
		Description: "two tasks pass a token back and forth through a mutex and a condition variable",
		Setup:       handoff,
	})
	register(App{
		Name:        "pipeline",
		Description: "a producer and a consumer share a bounded buffer",
		Setup:       pipeline,
	})
	register(App{
		Name:        "roundrobin",
		Description: "busy tasks share the core through SysTick preemption",
		TickPeriod:  500 * time.Microsecond,
		Setup:       roundRobin,
	})
	register(App{
		Name:        "blinky",
		Description: "a compare interrupt wakes a task that toggles an LED",
		TickPeriod:  500 * time.Microsecond,
		Setup:       blinky,
	})
}

const handoffRounds = 8

func handoff(s *hosted.System) (Report, error) {
	m := sync.NewMutex(s)
	turn := sync.NewCond(s)
	var (
		holder int
		trail  []string
	)

	player := func(arg uint32) {
		self := int(arg)
		for i := 0; i < handoffRounds; i++ {
			g := m.Lock()
			for holder != self {
				g = turn.WaitLocked(g)
			}
			trail = append(trail, s.CurrentName())
			holder = 1 - self
			turn.Signal()
			g.Unlock()
		}
		if self == 1 {
			s.Stop()
		}
		for {
			s.Yield()
		}
	}

	for i, name := range []string{"ping", "pong"} {
		if err := s.Spawn(name, player, uint32(i), 0); err != nil {
			return nil, err
		}
	}
	return func(w io.Writer) {
		fmt.Fprintf(w, "%d passes: %s\n", len(trail), strings.Join(trail, " "))
	}, nil
}

const (
	pipelineItems = 32
	pipelineSlots = 4
)

func pipeline(s *hosted.System) (Report, error) {
	m := sync.NewMutex(s)
	notFull := sync.NewCond(s)
	notEmpty := sync.NewCond(s)
	var (
		buf      []int
		sum      int
		maxFill  int
		producer int
		consumer int
	)

	produce := func(uint32) {
		for i := 1; i <= pipelineItems; i++ {
			g := m.Lock()
			for len(buf) == pipelineSlots {
				producer++
				g = notFull.WaitLocked(g)
			}
			buf = append(buf, i)
			if len(buf) > maxFill {
				maxFill = len(buf)
			}
			notEmpty.Signal()
			g.Unlock()
		}
		for {
			s.Yield()
		}
	}
	consume := func(uint32) {
		for n := 0; n < pipelineItems; n++ {
			g := m.Lock()
			for len(buf) == 0 {
				consumer++
				g = notEmpty.WaitLocked(g)
			}
			sum += buf[0]
			buf = buf[1:]
			notFull.Signal()
			g.Unlock()
		}
		s.Stop()
	}

	if err := s.Spawn("producer", produce, 0, 0); err != nil {
		return nil, err
	}
	if err := s.Spawn("consumer", consume, 0, 0); err != nil {
		return nil, err
	}
	return func(w io.Writer) {
		fmt.Fprintf(w, "consumed %d items, sum %d, buffer peaked at %d/%d\n", pipelineItems, sum, maxFill, pipelineSlots)
		fmt.Fprintf(w, "producer waited %d times, consumer waited %d times\n", producer, consumer)
	}, nil
}

const roundRobinTicks = 90

func roundRobin(s *hosted.System) (Report, error) {
	var spins [3]uint64

	spin := func(arg uint32) {
		for {
			spins[arg]++
			if s.Port.Ticks() >= roundRobinTicks {
				s.Stop()
			}
			s.Core.Checkpoint()
		}
	}
	for i := range spins {
		if err := s.Spawn(fmt.Sprintf("spin%d", i), spin, uint32(i), 0); err != nil {
			return nil, err
		}
	}
	return func(w io.Writer) {
		for i, n := range spins {
			fmt.Fprintf(w, "%s: %d iterations\n", s.Name(i), n)
		}
	}, nil
}

const (
	blinkyIRQ     = cortexm.Interrupt(2)
	blinkyPeriod  = 3
	blinkyToggles = 10
)

type blinkyState struct {
	pending int
	fired   int
}

func blinky(s *hosted.System) (Report, error) {
	state := interrupt.NewShared(blinkyState{})
	wake := sync.NewCond(s)
	var (
		ledLock sync.Lock
		led     bool
		toggles int
		busy    int
		lit     int
	)

	// The compare interrupt samples the LED without waiting for it.
	s.Core.Vectors().SetIRQ(blinkyIRQ, func() {
		s.Critical().Do(func(crit *interrupt.Section) {
			st := state.Borrow(crit)
			st.pending++
			st.fired++
		})
		if g, ok := ledLock.TryLock(); ok {
			if led {
				lit++
			}
			g.Unlock()
		} else {
			busy++
		}
		wake.Signal()
	})
	s.Core.Peripherals().NVIC.SetPriority(blinkyIRQ, 0x80)
	s.Core.Peripherals().NVIC.EnableIRQ(blinkyIRQ)

	compare := func(uint32) {
		next := s.Port.Ticks() + blinkyPeriod
		for {
			if s.Port.Ticks() >= next {
				next += blinkyPeriod
				s.Core.Raise(blinkyIRQ)
			}
			s.Core.Checkpoint()
		}
	}
	blink := func(uint32) {
		for toggles < blinkyToggles {
			crit := s.Critical().Enter()
			st := state.Borrow(&crit)
			n := st.pending
			st.pending = 0
			crit.Exit()

			if n == 0 {
				wake.Wait()
				continue
			}
			for ; n > 0 && toggles < blinkyToggles; n-- {
				g, _ := ledLock.TryLock()
				led = !led
				toggles++
				g.Unlock()
			}
		}
		s.Stop()
	}

	if err := s.Spawn("compare", compare, 0, 0); err != nil {
		return nil, err
	}
	if err := s.Spawn("blink", blink, 0, 0); err != nil {
		return nil, err
	}
	return func(w io.Writer) {
		fired := 0
		s.Critical().Do(func(crit *interrupt.Section) {
			fired = state.Borrow(crit).fired
		})
		fmt.Fprintf(w, "%d compare interrupts, %d toggles, LED %v\n", fired, toggles, onOff(led))
		fmt.Fprintf(w, "interrupt saw the LED lit %d times, busy %d times\n", lit, busy)
	}, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
