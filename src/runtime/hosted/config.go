package hosted

import (
	"fmt"
	"io"
	"log"
	"time"

	"omibyte.io/halos/targets"
)

const (
	defaultSRAMBase    = 0x2000_0000
	defaultSRAMSize    = 64 * 1024
	defaultNumIRQ      = 32
	defaultClockHz     = 16_000_000
	defaultTickHz      = 1000
	defaultIdleTimeout = time.Second
)

// Config describes the simulated core.
type Config struct {
	Name     string
	Core     string
	SRAMBase uint32
	SRAMSize int
	NumIRQ   int
	ClockHz  uint32

	// TickHz is the SysTick rate programmed into the timer.
	TickHz uint32

	// TickPeriod is the wall clock interval between simulated SysTick
	// interrupts. With zero, ticks are only delivered through Tick.
	TickPeriod time.Duration

	// IdleTimeout is how long every task may stay blocked before the core
	// reports a deadlock.
	IdleTimeout time.Duration

	Logger *log.Logger
}

// ConfigFor returns the configuration of a target chip.
func ConfigFor(t targets.TargetInfo) Config {
	name := t.Series
	if len(t.Chips) > 0 {
		name = t.Chips[0]
	}
	return Config{
		Name:     name,
		Core:     t.Core,
		SRAMBase: t.SRAMBase,
		SRAMSize: t.SRAMSize,
		NumIRQ:   t.NumIRQ,
		ClockHz:  t.ClockHz,
	}
}

func (cfg Config) withDefaults() Config {
	if cfg.Name == "" {
		cfg.Name = "hosted"
	}
	if cfg.Core == "" {
		cfg.Core = "cortex-m3"
	}
	if cfg.SRAMBase == 0 && cfg.SRAMSize == 0 {
		cfg.SRAMBase = defaultSRAMBase
	}
	if cfg.SRAMSize == 0 {
		cfg.SRAMSize = defaultSRAMSize
	}
	if cfg.NumIRQ == 0 {
		cfg.NumIRQ = defaultNumIRQ
	}
	if cfg.ClockHz == 0 {
		cfg.ClockHz = defaultClockHz
	}
	if cfg.TickHz == 0 {
		cfg.TickHz = defaultTickHz
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	return cfg
}

func (cfg Config) validate() error {
	if cfg.NumIRQ < 0 || cfg.NumIRQ > 496 {
		return fmt.Errorf("%w: %d interrupts", ErrConfig, cfg.NumIRQ)
	}
	if cfg.SRAMBase%8 != 0 || cfg.SRAMSize%8 != 0 {
		return fmt.Errorf("%w: SRAM 0x%08x+%d is not 8-byte aligned", ErrConfig, cfg.SRAMBase, cfg.SRAMSize)
	}
	if uint64(cfg.SRAMBase)+uint64(cfg.SRAMSize) > ppbBase {
		return fmt.Errorf("%w: SRAM 0x%08x+%d overlaps the private peripheral bus", ErrConfig, cfg.SRAMBase, cfg.SRAMSize)
	}
	if _, ok := cpuids[cfg.Core]; !ok {
		return fmt.Errorf("%w: unknown core %q", ErrConfig, cfg.Core)
	}
	if cfg.ClockHz < cfg.TickHz {
		return fmt.Errorf("%w: %d Hz clock cannot tick at %d Hz", ErrConfig, cfg.ClockHz, cfg.TickHz)
	}
	return nil
}

// CPUID values reported by each core.
var cpuids = map[string]uint32{
	"cortex-m0":     0x410CC200,
	"cortex-m0plus": 0x410CC601,
	"cortex-m3":     0x412FC231,
	"cortex-m4":     0x410FC241,
	"cortex-m7":     0x411FC272,
}
