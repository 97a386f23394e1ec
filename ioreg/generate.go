package ioreg

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/tools/imports"
)

const volatilePath = "omibyte.io/halos/src/volatile"

// Generate writes the Go source for m to w. name is the file name reported
// in formatting errors.
func (m *Map) Generate(w io.Writer, name string) error {
	var buf strings.Builder

	fmt.Fprintln(&buf, "// Code generated by ioreg-gen. DO NOT EDIT.")
	fmt.Fprintln(&buf)
	if len(m.Description) > 0 {
		fmt.Fprintf(&buf, "// Package %s %s\n", m.Package, m.Description)
	}
	fmt.Fprintf(&buf, "package %s\n\n", m.Package)

	fmt.Fprintln(&buf, "import (")
	fmt.Fprintln(&buf, `"unsafe"`)
	fmt.Fprintf(&buf, "%q\n", volatilePath)
	fmt.Fprintln(&buf, ")")
	fmt.Fprintln(&buf)

	for _, g := range m.Groups {
		generateGroup(&buf, g)
	}

	src, err := imports.Process(name, []byte(buf.String()), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return fmt.Errorf("error formatting %s: %w", name, err)
	}
	_, err = w.Write(src)
	return err
}

func generateGroup(w *strings.Builder, g Group) {
	typename := g.TypeName()
	derived := g.DerivedFrom != ""

	if !derived {
		generateStruct(w, g, typename)
	}

	fmt.Fprintf(w, "const %sBase = 0x%08X\n\n", g.Name, g.Base)

	// Binding goes through a bus mapping so the same code runs on the chip
	// and on a hosted core.
	fmt.Fprintf(w, "// Bind%s overlays the %s registers on their bus address.\n", g.Name, g.Name)
	fmt.Fprintf(w, "func Bind%s(mem interface {\nPointer(addr uint32, size uintptr) (unsafe.Pointer, error)\n}) (*%s, error) {\n", g.Name, typename)
	fmt.Fprintf(w, "p, err := mem.Pointer(%sBase, unsafe.Sizeof(%s{}))\n", g.Name, typename)
	fmt.Fprintln(w, "if err != nil {\nreturn nil, err\n}")
	fmt.Fprintf(w, "return (*%s)(p), nil\n", typename)
	fmt.Fprintln(w, "}")
	fmt.Fprintln(w)

	if derived {
		return
	}
	for _, r := range g.Registers {
		generateRegister(w, g, r)
	}
}

func generateStruct(w *strings.Builder, g Group, typename string) {
	if len(g.Description) > 0 {
		fmt.Fprintf(w, "// %s %s\n", typename, g.Description)
	}
	fmt.Fprintf(w, "type %s struct {\n", typename)
	for _, slot := range g.Layout() {
		if slot.Register == nil {
			fmt.Fprintf(w, "_ [%d]byte\n", slot.Padding)
			continue
		}
		r := slot.Register
		if r.Count > 1 {
			fmt.Fprintf(w, "%s [%d]%s\n", r.Name, r.Count, registerType(g, *r))
		} else {
			fmt.Fprintf(w, "%s %s\n", r.Name, registerType(g, *r))
		}
	}
	fmt.Fprintln(w, "}")
	fmt.Fprintln(w)
}

func registerType(g Group, r Register) string {
	if len(r.Fields) == 0 {
		return cellType(r.Size)
	}
	return g.Name + "_" + r.Name
}

func cellType(size int) string {
	return fmt.Sprintf("volatile.Register%d", size)
}

func dataType(bits int) string {
	switch {
	case bits <= 8:
		return "uint8"
	case bits <= 16:
		return "uint16"
	default:
		return "uint32"
	}
}

func generateRegister(w *strings.Builder, g Group, r Register) {
	if len(r.Fields) == 0 {
		return
	}
	typename := registerType(g, r)
	regType := dataType(r.Size)

	if len(r.Description) > 0 {
		fmt.Fprintf(w, "// %s %s\n", typename, r.Description)
	}
	fmt.Fprintf(w, "type %s struct{ %s }\n\n", typename, cellType(r.Size))

	for _, f := range r.Fields {
		valueType := dataType(f.Width)
		if f.Width == 1 && len(f.Values) == 0 {
			valueType = "bool"
		}
		if len(f.Values) > 0 {
			valueType = typename + "_" + f.Name
			generateValues(w, valueType, dataType(f.Width), f)
		}

		if f.Access.Readable() {
			if len(f.Description) > 0 {
				fmt.Fprintf(w, "// Get%s returns %s\n", f.Name, lowerFirst(f.Description))
			}
			fmt.Fprintf(w, "func (reg *%s) Get%s() %s {\n", typename, f.Name, valueType)
			if valueType == "bool" {
				fmt.Fprintf(w, "return reg.HasBits(0x1 << %d)\n", f.Offset)
			} else {
				fmt.Fprintf(w, "return %s(reg.Field(0x%X, %d))\n", valueType, f.Mask(), f.Offset)
			}
			fmt.Fprintln(w, "}")
			fmt.Fprintln(w)
		}

		if f.Access.Writable() {
			fmt.Fprintf(w, "func (reg *%s) Set%s(value %s) {\n", typename, f.Name, valueType)
			switch {
			case valueType == "bool" && r.Access == WriteOnly:
				// Write-only registers cannot be read back, so only the
				// field is written.
				fmt.Fprintf(w, "if value {\nreg.Set(0x1 << %d)\n}\n", f.Offset)
			case valueType == "bool":
				fmt.Fprintf(w, "if value {\nreg.SetBits(0x1 << %d)\n} else {\nreg.ClearBits(0x1 << %d)\n}\n", f.Offset, f.Offset)
			case r.Access == WriteOnly:
				fmt.Fprintf(w, "reg.Set((%s(value) & 0x%X) << %d)\n", regType, f.Mask(), f.Offset)
			default:
				fmt.Fprintf(w, "reg.ReplaceBits(%s(value), 0x%X, %d)\n", regType, f.Mask(), f.Offset)
			}
			fmt.Fprintln(w, "}")
			fmt.Fprintln(w)
		}
	}
}

func generateValues(w *strings.Builder, typename, base string, f Field) {
	fmt.Fprintf(w, "type %s %s\n\n", typename, base)
	fmt.Fprintln(w, "const (")
	for _, v := range f.Values {
		if len(v.Description) > 0 {
			fmt.Fprintf(w, "// %s_%s %s\n", typename, v.Name, v.Description)
		}
		fmt.Fprintf(w, "%s_%s %s = 0x%X\n", typename, v.Name, typename, v.Value)
	}
	fmt.Fprintln(w, ")")
	fmt.Fprintln(w)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
