//go:build unix

package volatile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Open maps size bytes of a memory device (/dev/mem, a uio node) starting
// at the bus address base. base must be page aligned.
func Open(path string, base uint32, size int) (*Window, error) {
	if int(base)%os.Getpagesize() != 0 {
		return nil, fmt.Errorf("%w: 0x%08x is not page aligned", ErrUnaligned, base)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0660)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	mem, err := unix.Mmap(int(f.Fd()), int64(base), size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Window{
		base: base,
		mem:  mem,
		unmap: func() error {
			return unix.Munmap(mem)
		},
	}, nil
}

// Anonymous maps size bytes of zeroed private memory standing in for the
// bus range starting at base.
func Anonymous(base uint32, size int) (*Window, error) {
	if base%4 != 0 {
		return nil, fmt.Errorf("%w: 0x%08x is not word aligned", ErrUnaligned, base)
	}
	mem, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("anonymous window at 0x%08x: %w", base, err)
	}
	return &Window{
		base: base,
		mem:  mem,
		unmap: func() error {
			return unix.Munmap(mem)
		},
	}, nil
}
