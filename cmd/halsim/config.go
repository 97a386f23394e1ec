package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"omibyte.io/halos/src/runtime/hosted"
	"omibyte.io/halos/targets"
)

const defaultChip = "atsamd21g18a"

// simConfig is the content of the --config file.
type simConfig struct {
	Chip        string        `yaml:"chip"`
	TickHz      uint32        `yaml:"tickHz"`
	TickPeriod  time.Duration `yaml:"tickPeriod"`
	IdleTimeout time.Duration `yaml:"idleTimeout"`
	Timeout     time.Duration `yaml:"timeout"`
	SRAMSize    int           `yaml:"sramSize"`
	Trace       int           `yaml:"trace"`
}

func loadConfig(name string) (simConfig, error) {
	cfg := simConfig{
		Chip:    defaultChip,
		Timeout: 10 * time.Second,
	}
	if name == "" {
		return cfg, nil
	}

	f, err := os.Open(name)
	if err != nil {
		return cfg, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return cfg, fmt.Errorf("%s: %w", name, err)
	}
	return cfg, nil
}

// coreConfig builds the hosted core configuration for the chip.
func (c simConfig) coreConfig(logger *log.Logger) (hosted.Config, targets.TargetInfo, error) {
	target, err := targets.All().Find(c.Chip)
	if err != nil {
		return hosted.Config{}, target, err
	}

	cfg := hosted.ConfigFor(target)
	cfg.TickHz = c.TickHz
	cfg.TickPeriod = c.TickPeriod
	cfg.IdleTimeout = c.IdleTimeout
	if c.SRAMSize > 0 {
		cfg.SRAMSize = c.SRAMSize
	}
	cfg.Logger = logger
	return cfg, target, nil
}

func newLogger(w io.Writer) *log.Logger {
	if !verbose {
		w = io.Discard
	}
	return log.New(w, "halsim: ", log.Ltime|log.Lmicroseconds)
}
