//go:build !unix

package volatile

import (
	"fmt"
	"unsafe"
)

func Open(path string, base uint32, size int) (*Window, error) {
	return nil, fmt.Errorf("%s: %w", path, ErrUnsupported)
}

// Anonymous backs the window with word aligned heap memory.
func Anonymous(base uint32, size int) (*Window, error) {
	if base%4 != 0 {
		return nil, fmt.Errorf("%w: 0x%08x is not word aligned", ErrUnaligned, base)
	}
	words := make([]uint32, (size+3)/4)
	mem := unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size)
	return &Window{base: base, mem: mem}, nil
}
