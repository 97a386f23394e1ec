package targets

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

//go:embed targets.yaml
var rawTargets []byte

var targets Targets

var (
	ErrSeriesNotFound = errors.New("series not found")
	ErrChipNotFound   = errors.New("chip not found")
	ErrInvalidTarget  = errors.New("invalid target")
)

func All() Targets {
	return targets
}

type Targets []TargetInfo
type TargetInfo struct {
	Series       string   `yaml:"series"`
	Chips        []string `yaml:"chips"`
	Core         string   `yaml:"core"`
	Architecture string   `yaml:"architecture"`
	NumIRQ       int      `yaml:"irqs"`
	PriorityBits int      `yaml:"priorityBits"`
	SRAMBase     uint32   `yaml:"sramBase"`
	SRAMSize     int      `yaml:"sramSize"`
	ClockHz      uint32   `yaml:"clock"`
	Features     []string `yaml:"features"`
}

var cores = []string{"cortex-m0", "cortex-m0plus", "cortex-m3", "cortex-m4", "cortex-m7"}

func (t TargetInfo) HasFeature(feature string) bool {
	return slices.Contains(t.Features, feature)
}

// PriorityMask returns the bits of an 8-bit priority the NVIC implements.
func (t TargetInfo) PriorityMask() uint8 {
	return uint8(0xFF << (8 - t.PriorityBits))
}

func (t TargetInfo) Validate() error {
	var errs []error
	if len(t.Series) == 0 {
		errs = append(errs, errors.New("missing series"))
	}
	if len(t.Chips) == 0 {
		errs = append(errs, fmt.Errorf("%s: no chips", t.Series))
	}
	if !slices.Contains(cores, t.Core) {
		errs = append(errs, fmt.Errorf("%s: unknown core %q", t.Series, t.Core))
	}
	if t.NumIRQ <= 0 || t.NumIRQ > 496 {
		errs = append(errs, fmt.Errorf("%s: %d interrupts", t.Series, t.NumIRQ))
	}
	if t.PriorityBits < 2 || t.PriorityBits > 8 {
		errs = append(errs, fmt.Errorf("%s: %d priority bits", t.Series, t.PriorityBits))
	}
	if t.SRAMSize <= 0 || t.SRAMBase%4 != 0 {
		errs = append(errs, fmt.Errorf("%s: bad SRAM 0x%08x+%d", t.Series, t.SRAMBase, t.SRAMSize))
	}
	if t.ClockHz == 0 {
		errs = append(errs, fmt.Errorf("%s: no core clock", t.Series))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidTarget}, errs...)...)
	}
	return nil
}

func (t Targets) FindBySeries(name string) (TargetInfo, error) {
	for _, target := range t {
		if target.Series == strings.ToLower(name) {
			return target, nil
		}
	}
	return TargetInfo{}, fmt.Errorf("%w: %s", ErrSeriesNotFound, name)
}

func (t Targets) FindByChip(name string) (TargetInfo, error) {
	for _, target := range t {
		if slices.Contains(target.Chips, strings.ToLower(name)) {
			return target, nil
		}
	}
	return TargetInfo{}, fmt.Errorf("%w: %s", ErrChipNotFound, name)
}

// Find looks name up as a chip first and as a series second.
func (t Targets) Find(name string) (TargetInfo, error) {
	if target, err := t.FindByChip(name); err == nil {
		return target, nil
	}
	if target, err := t.FindBySeries(name); err == nil {
		return target, nil
	}
	return TargetInfo{}, fmt.Errorf("%w: %s", ErrChipNotFound, name)
}

// Sorted returns the targets ordered by series.
func (t Targets) Sorted() Targets {
	sorted := slices.Clone(t)
	slices.SortStableFunc(sorted, func(a, b TargetInfo) bool {
		return a.Series < b.Series
	})
	return sorted
}

func init() {
	var t struct {
		Elements []TargetInfo `yaml:"targets"`
	}
	if err := yaml.Unmarshal(rawTargets, &t); err != nil {
		panic(err)
	}

	for _, target := range t.Elements {
		if err := target.Validate(); err != nil {
			panic(err)
		}
	}

	targets = t.Elements
}
