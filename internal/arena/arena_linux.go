//go:build linux

package arena

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// memfdBacking is a memfd_create + mmap(MAP_SHARED) region. The descriptor
// is kept open for the lifetime of the Arena so it can be duplicated into
// re-exec'd worker processes via exec.Cmd.ExtraFiles — Go's analogue of the
// C original's fork-inherited anonymous mapping.
type memfdBacking struct {
	file *os.File
	data []byte
}

func newBacking(size int) (backing, error) {
	fd, err := unix.MemfdCreate("stressgo-arena", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("memfd_create: %w", err)
	}
	file := os.NewFile(uintptr(fd), "stressgo-arena")

	if err := file.Truncate(int64(size)); err != nil {
		file.Close()
		return nil, fmt.Errorf("ftruncate arena: %w", err)
	}

	data, err := unix.Mmap(int(fd), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("mmap arena: %w", err)
	}

	return &memfdBacking{file: file, data: data}, nil
}

func (b *memfdBacking) bytes() []byte { return b.data }

func (b *memfdBacking) fd() (uintptr, bool) { return b.file.Fd(), true }

func (b *memfdBacking) close() error {
	if err := unix.Munmap(b.data); err != nil {
		b.file.Close()
		return fmt.Errorf("munmap arena: %w", err)
	}
	return b.file.Close()
}

// OpenFromFD reconstructs an Arena from a file descriptor inherited from the
// supervisor (fd 3+index in exec.Cmd.ExtraFiles convention). Used by a
// re-exec'd worker process to attach to the arena its parent created.
func OpenFromFD(fd uintptr, n int) (*Arena, error) {
	layout := NewLayout(n)
	file := os.NewFile(fd, "stressgo-arena")
	data, err := unix.Mmap(int(fd), 0, layout.Size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap inherited arena: %w", err)
	}
	return &Arena{layout: layout, back: &memfdBacking{file: file, data: data}}, nil
}
