package ioreg

import (
	"errors"
	"fmt"
	"regexp"
)

var identifier = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Validate reports every problem of the map at once.
func (m *Map) Validate() error {
	var errs []error
	if !identifier.MatchString(m.Package) {
		errs = append(errs, fmt.Errorf("%w: package name %q", ErrInvalidMap, m.Package))
	}
	if len(m.Groups) == 0 {
		errs = append(errs, fmt.Errorf("%w: no groups", ErrInvalidMap))
	}

	groups := map[string]bool{}
	for _, g := range m.Groups {
		if groups[g.Name] {
			errs = append(errs, fmt.Errorf("%w: group %s", ErrDuplicate, g.Name))
		}
		groups[g.Name] = true
		errs = append(errs, g.validate())
	}
	return errors.Join(errs...)
}

func (g Group) validate() error {
	var errs []error
	if !identifier.MatchString(g.Name) {
		errs = append(errs, fmt.Errorf("%w: group name %q", ErrInvalidMap, g.Name))
	}
	if g.DerivedFrom != "" {
		// The registers were checked on the group they come from
		return errors.Join(errs...)
	}

	names := map[string]bool{}
	for _, r := range g.Registers {
		if names[r.Name] {
			errs = append(errs, fmt.Errorf("%w: %s.%s", ErrDuplicate, g.Name, r.Name))
		}
		names[r.Name] = true
		errs = append(errs, r.validate(g.Name))
	}

	// Registers are checked for overlap in address order
	regs := sorted(g.Registers)
	for i := 1; i < len(regs); i++ {
		prev, r := regs[i-1], regs[i]
		if prev.Offset+prev.Bytes() > r.Offset {
			errs = append(errs, fmt.Errorf("%w: %s.%s at 0x%x and %s.%s at 0x%x", ErrOverlap, g.Name, prev.Name, prev.Offset, g.Name, r.Name, r.Offset))
		}
	}
	if n := len(regs); n > 0 && g.Size > 0 {
		last := regs[n-1]
		if last.Offset+last.Bytes() > g.Size {
			errs = append(errs, fmt.Errorf("%w: %s.%s ends past the group size 0x%x", ErrOverlap, g.Name, last.Name, g.Size))
		}
	}
	return errors.Join(errs...)
}

func (r Register) validate(group string) error {
	var errs []error
	name := group + "." + r.Name
	if !identifier.MatchString(r.Name) {
		errs = append(errs, fmt.Errorf("%w: register name %q", ErrInvalidMap, name))
	}
	switch r.Size {
	case 8, 16, 32:
		if r.Offset%uint32(r.Size/8) != 0 {
			errs = append(errs, fmt.Errorf("%w: %s at 0x%x", ErrUnaligned, name, r.Offset))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: %s is %d bits", ErrInvalidMap, name, r.Size))
	}
	if r.Count < 1 {
		errs = append(errs, fmt.Errorf("%w: %s count %d", ErrInvalidMap, name, r.Count))
	}
	if !r.Access.Readable() && !r.Access.Writable() {
		errs = append(errs, fmt.Errorf("%w: %s access %q", ErrInvalidMap, name, r.Access))
	}

	var used uint64
	fields := map[string]bool{}
	for _, f := range r.Fields {
		fname := name + "." + f.Name
		if fields[f.Name] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicate, fname))
		}
		fields[f.Name] = true
		if !identifier.MatchString(f.Name) {
			errs = append(errs, fmt.Errorf("%w: field name %q", ErrInvalidMap, fname))
		}
		if f.Offset < 0 || f.Width < 1 || f.Offset+f.Width > r.Size {
			errs = append(errs, fmt.Errorf("%w: %s bits %d+%d of %d", ErrFieldRange, fname, f.Offset, f.Width, r.Size))
			continue
		}
		bits := uint64(f.Mask()) << f.Offset
		if used&bits != 0 {
			errs = append(errs, fmt.Errorf("%w: field %s", ErrOverlap, fname))
		}
		used |= bits
		if !f.Access.Readable() && !f.Access.Writable() {
			errs = append(errs, fmt.Errorf("%w: %s access %q", ErrInvalidMap, fname, f.Access))
		}
		for _, v := range f.Values {
			if v.Value > f.Mask() {
				errs = append(errs, fmt.Errorf("%w: %s value %s=%d does not fit %d bits", ErrFieldRange, fname, v.Name, v.Value, f.Width))
			}
		}
	}
	return errors.Join(errs...)
}
