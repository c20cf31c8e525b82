//go:build !linux

package arena

import "errors"

var errUnsupportedOpenFromFD = errors.New("arena: OpenFromFD requires memfd_create, unsupported on this platform")

// heapBacking is an in-process buffer used on platforms without
// memfd_create. Sufficient for tests and for single-process embedding of
// the supervisor and its workers (no real process isolation), but cannot
// be shared across a true fork/exec boundary.
type heapBacking struct {
	data []byte
}

func newBacking(size int) (backing, error) {
	return &heapBacking{data: make([]byte, size)}, nil
}

func (b *heapBacking) bytes() []byte { return b.data }

func (b *heapBacking) fd() (uintptr, bool) { return 0, false }

func (b *heapBacking) close() error { return nil }

// OpenFromFD is unsupported outside Linux: there is no inherited shared
// mapping to attach to, since newBacking never produces one here.
func OpenFromFD(fd uintptr, n int) (*Arena, error) {
	return nil, errUnsupportedOpenFromFD
}
