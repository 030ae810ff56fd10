package arena

import (
	"fmt"
	"unsafe"
)

// Buffer is an append-only, randomly indexable sequence of T backed by an
// arena region. When capacity runs out it reserves a larger region and
// copies forward; the old region is abandoned inside the arena.
//
// T must not contain Go pointers: the backing region is untyped bytes and
// is invisible to the garbage collector. Store indices, not references.
type Buffer[T any] struct {
	a   *Arena
	off int
	n   int
	cap int
}

// NewBuffer returns an empty buffer with room for capacity elements.
func NewBuffer[T any](a *Arena, capacity int) (Buffer[T], error) {
	b := Buffer[T]{a: a}
	if capacity > 0 {
		r, err := a.Reserve(capacity*sizeOf[T](), alignOf[T]())
		if err != nil {
			return Buffer[T]{}, err
		}
		b.off = r.Off
		b.cap = capacity
	}
	return b, nil
}

// NewBufferLen returns a buffer of n zero-valued elements with no spare
// capacity, for fixed-size uses such as the frame buffer.
func NewBufferLen[T any](a *Arena, n int) (Buffer[T], error) {
	b, err := NewBuffer[T](a, n)
	if err != nil {
		return Buffer[T]{}, err
	}
	b.n = n
	return b, nil
}

// Push appends v, growing the backing region if needed.
func (b *Buffer[T]) Push(v T) error {
	if b.n == b.cap {
		if err := b.grow(); err != nil {
			return err
		}
	}
	b.view()[b.n] = v
	b.n++
	return nil
}

// Get returns the element at index i.
func (b *Buffer[T]) Get(i int) (T, error) {
	if i < 0 || i >= b.n {
		var zero T
		return zero, fmt.Errorf("arena: get %d of %d: %w", i, b.n, ErrIndexOutOfRange)
	}
	return b.view()[i], nil
}

// Set overwrites the element at index i.
func (b *Buffer[T]) Set(i int, v T) error {
	if i < 0 || i >= b.n {
		return fmt.Errorf("arena: set %d of %d: %w", i, b.n, ErrIndexOutOfRange)
	}
	b.view()[i] = v
	return nil
}

// Len returns the number of elements pushed.
func (b *Buffer[T]) Len() int { return b.n }

// Cap returns the current capacity in elements.
func (b *Buffer[T]) Cap() int { return b.cap }

// Slice returns a view of the buffer's elements. The view is invalidated
// by the next growing Push; take it only once the buffer stops changing.
func (b *Buffer[T]) Slice() []T {
	if b.cap == 0 {
		return nil
	}
	return b.view()[:b.n]
}

func (b *Buffer[T]) grow() error {
	newCap := b.cap * 2
	if newCap == 0 {
		newCap = 4
	}
	r, err := b.a.Reserve(newCap*sizeOf[T](), alignOf[T]())
	if err != nil {
		return err
	}
	old := b.view()[:b.n]
	oldCap := b.cap
	b.off = r.Off
	b.cap = newCap
	if oldCap > 0 {
		copy(b.view(), old)
	}
	return nil
}

func (b *Buffer[T]) view() []T {
	if b.cap == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&b.a.buf[b.off])), b.cap)
}

func sizeOf[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

func alignOf[T any]() int {
	var zero T
	return int(unsafe.Alignof(zero))
}
