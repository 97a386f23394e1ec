// Package ioreg turns a YAML description of memory-mapped register groups
// into Go source built on volatile cells.
package ioreg

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidMap = errors.New("invalid register map")
	ErrOverlap    = errors.New("registers overlap")
	ErrUnaligned  = errors.New("register not aligned")
	ErrFieldRange = errors.New("field outside of register")
	ErrDuplicate  = errors.New("duplicate name")
)

// Map is one generated file.
type Map struct {
	Package     string  `yaml:"package"`
	Description string  `yaml:"description"`
	Groups      []Group `yaml:"groups"`
}

// Group is a peripheral: a block of registers at a base address. A group
// derived from another one shares its registers and its generated type.
type Group struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Base        uint32     `yaml:"base"`
	Size        uint32     `yaml:"size"`
	DerivedFrom string     `yaml:"derivedFrom"`
	Registers   []Register `yaml:"registers"`

	typeName string
}

type Register struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Offset      uint32  `yaml:"offset"`
	Size        int     `yaml:"size"`
	Count       int     `yaml:"count"`
	Access      Access  `yaml:"access"`
	Fields      []Field `yaml:"fields"`
}

type Field struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Offset      int     `yaml:"offset"`
	Width       int     `yaml:"width"`
	Access      Access  `yaml:"access"`
	Values      []Value `yaml:"values"`
}

// Value is a named value of a field.
type Value struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Value       uint32 `yaml:"value"`
}

type Access string

const (
	ReadWrite Access = "read-write"
	ReadOnly  Access = "read-only"
	WriteOnly Access = "write-only"
)

func (a Access) Readable() bool {
	return a == ReadWrite || a == ReadOnly
}

func (a Access) Writable() bool {
	return a == ReadWrite || a == WriteOnly
}

// Bytes returns the number of bytes all instances of the register occupy.
func (r Register) Bytes() uint32 {
	return uint32(r.Size/8) * uint32(r.Count)
}

// TypeName returns the name of the struct type generated for g.
func (g Group) TypeName() string {
	if g.typeName == "" {
		return g.Name + "_STR"
	}
	return g.typeName
}

// Mask returns the unshifted mask of the field.
func (f Field) Mask() uint32 {
	return uint32(1<<f.Width - 1)
}

// Parse decodes and validates a register map. Unknown keys are errors.
func Parse(r io.Reader) (*Map, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Map
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMap, err)
	}
	m.defaults()
	if err := m.resolve(); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func ParseFile(name string) (*Map, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return m, nil
}

func (m *Map) defaults() {
	for i := range m.Groups {
		g := &m.Groups[i]
		for j := range g.Registers {
			r := &g.Registers[j]
			if r.Size == 0 {
				r.Size = 32
			}
			if r.Count == 0 {
				r.Count = 1
			}
			if r.Access == "" {
				r.Access = ReadWrite
			}
			for k := range r.Fields {
				f := &r.Fields[k]
				if f.Width == 0 {
					f.Width = 1
				}
				if f.Access == "" {
					f.Access = r.Access
				}
			}
		}
	}
}
