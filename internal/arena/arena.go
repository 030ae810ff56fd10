// Package arena implements a bump allocator over a single fixed byte region
// supplied by the caller, plus growable typed buffers carved from it.
// There is no free: the offset only ever moves forward, and a region that
// runs out produces ErrOutOfMemory rather than growing.
package arena

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfMemory is returned when a reservation does not fit in the
	// remaining capacity of the region.
	ErrOutOfMemory = errors.New("arena: out of memory")

	// ErrIndexOutOfRange is returned on out-of-bounds buffer access.
	ErrIndexOutOfRange = errors.New("arena: index out of range")
)

// Arena owns one contiguous byte region and hands out disjoint sub-regions
// from it. Not safe for concurrent use.
type Arena struct {
	buf []byte
	off int
}

// Region describes a reserved byte range inside an arena.
type Region struct {
	Off  int
	Size int
}

// New wraps the caller's buffer. The arena holds the buffer for its whole
// lifetime; the caller must not touch it afterwards.
func New(buf []byte) *Arena {
	return &Arena{buf: buf}
}

// Reserve returns a zeroed region of size bytes aligned to align, or
// ErrOutOfMemory. Reserved regions are never reissued.
func (a *Arena) Reserve(size, align int) (Region, error) {
	if size < 0 {
		return Region{}, fmt.Errorf("arena: negative size %d", size)
	}
	if align <= 0 || align&(align-1) != 0 {
		return Region{}, fmt.Errorf("arena: bad alignment %d", align)
	}
	off := (a.off + align - 1) &^ (align - 1)
	if off < a.off || off+size > len(a.buf) || off+size < 0 {
		return Region{}, fmt.Errorf("arena: reserve %d bytes with %d free: %w",
			size, len(a.buf)-a.off, ErrOutOfMemory)
	}
	a.off = off + size
	r := Region{Off: off, Size: size}
	clear(a.buf[r.Off : r.Off+r.Size])
	return r, nil
}

// Bytes returns the backing bytes of a region issued by this arena.
func (a *Arena) Bytes(r Region) []byte {
	return a.buf[r.Off : r.Off+r.Size : r.Off+r.Size]
}

// Len returns the number of bytes consumed so far, alignment padding and
// abandoned regions included.
func (a *Arena) Len() int { return a.off }

// Cap returns the total capacity of the region.
func (a *Arena) Cap() int { return len(a.buf) }

// Free returns the number of bytes still available.
func (a *Arena) Free() int { return len(a.buf) - a.off }
