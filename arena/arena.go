// Package arena implements a lock-free bump-pointer allocator. All memory
// handed out by an Arena comes from one preallocated buffer and is never
// individually freed; the whole arena is reclaimed at once on Close.
//
// Adapted from boulder's internal/arena, generalized with an explicit
// overflow check after the atomic bump, so a racing allocation that would
// overrun the backing buffer always reports ErrArenaFull instead of
// handing out an offset past the end of it.
package arena

import (
	"errors"
	"sync"
	"unsafe"

	"github.com/arcsine/memindex/internal/arch"
)

// ErrArenaFull is returned when an allocation would exceed the arena's
// fixed capacity. The arena performs no compaction or growth; callers must
// treat this as an unrecoverable condition for the arena in hand.
var ErrArenaFull = errors.New("arena: allocation exceeds capacity")

// pointerAlign is the alignment every allocation satisfies, matching the
// natural alignment of a machine pointer. The skip list relies on this: it
// casts the allocated address directly to a node struct holding atomic
// forward pointers.
const pointerAlign = uint32(unsafe.Sizeof(uintptr(0)))

// Arena is a lock-free arena allocator. Offset 0 is reserved so that it can
// double as a nil sentinel for offset-based references (the skip list uses
// this to mean "no next node" without a dedicated tail node).
type Arena struct {
	offset  arch.AtomicUint
	buf     []byte
	mmapped bool
	closed  sync.Once
}

// New allocates an arena backed by a buffer of the given size. It prefers
// an anonymous OS mapping so that a large arena is never scanned by the
// garbage collector; if the platform doesn't support one, it falls back to
// a plain heap-allocated slice.
func New(size uint32) *Arena {
	a := &Arena{mmapped: true}
	a.offset.Store(arch.UintToArchSize(1))

	buf, err := mmapAlloc(int(size))
	if err != nil {
		buf = make([]byte, size)
		a.mmapped = false
	}
	a.buf = buf
	return a
}

// Alloc returns the offset of a newly carved-out, pointer-aligned region of
// n bytes, permanently owned by the arena. It fails with ErrArenaFull once
// the arena's capacity is exhausted rather than silently overrunning the
// backing buffer.
func (a *Arena) Alloc(n uint32) (uint32, error) {
	padded := n + pointerAlign - 1

	pos := uint32(a.offset.Load())
	if uint64(pos)+uint64(padded) > uint64(len(a.buf)) {
		return 0, ErrArenaFull
	}

	newPos := uint32(a.offset.Add(arch.UintToArchSize(padded)))
	if uint64(newPos) > uint64(len(a.buf)) {
		return 0, ErrArenaFull
	}

	offset := (newPos - padded + pointerAlign - 1) &^ (pointerAlign - 1)
	return offset, nil
}

// Bytes returns the n-byte slice starting at offset. Offset 0 always
// yields nil, matching the nil-sentinel convention.
func (a *Arena) Bytes(offset, n uint32) []byte {
	if offset == 0 {
		return nil
	}
	return a.buf[offset : offset+n : offset+n]
}

// Pointer returns the address of the byte at offset, for casting into a
// node struct. Offset 0 always yields nil.
func (a *Arena) Pointer(offset uint32) unsafe.Pointer {
	if offset == 0 {
		return nil
	}
	return unsafe.Pointer(&a.buf[offset])
}

// PointerOffset is the inverse of Pointer.
func (a *Arena) PointerOffset(ptr unsafe.Pointer) uint32 {
	if ptr == nil {
		return 0
	}
	return uint32(uintptr(ptr) - uintptr(unsafe.Pointer(&a.buf[0])))
}

// Len returns the number of bytes allocated so far, excluding the reserved
// nil byte at offset 0.
func (a *Arena) Len() uint32 {
	return uint32(a.offset.Load()) - 1
}

// Cap returns the arena's total capacity.
func (a *Arena) Cap() uint32 {
	return uint32(len(a.buf))
}

// Close releases the arena's backing buffer. Nodes and handles drawn from
// this arena become invalid the moment Close returns; callers must not
// retain them across Close.
func (a *Arena) Close() error {
	var err error
	a.closed.Do(func() {
		if a.mmapped {
			err = mmapFree(a.buf)
		}
	})
	return err
}
