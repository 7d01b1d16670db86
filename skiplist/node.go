package skiplist

import (
	"sync/atomic"
	"unsafe"

	"github.com/arcsine/memindex/arena"
)

// Hmax is the hard ceiling on node height: no Options value may raise a
// skip list's configured height cap above it, and it is the fixed size of
// every node's forward-pointer tower allocation.
const Hmax = 32

type link struct {
	// next holds the arena offset of the next node at this level, or 0
	// (the arena's reserved nil offset) when there is none. Go's
	// sync/atomic only exposes atomic accessors for this type, so even
	// the spec's "relaxed, non-atomic" initializer write (§4.6) goes
	// through Store.
	next atomic.Uint32
}

// node is the on-arena record for one key/value entry. Height is immutable
// once allocated; key and value are immutable once written. tower is
// declared at its maximum size but a node's arena allocation is
// deliberately truncated to cover only tower[0:height] — levels at or above
// height physically belong to whatever is allocated next and must never be
// touched. This is the same truncation trick as boulder's
// internal/skiplist.node and danyalprout-pebble's batchskl.node.
type node struct {
	key    int32
	value  int32
	height uint8
	_      [3]byte // explicit padding, keeps tower 4-byte aligned for its uint32 links
	tower  [Hmax]link
}

const (
	nodeHeaderSize = uint32(unsafe.Sizeof(node{}) - Hmax*unsafe.Sizeof(link{}))
	linkSize       = uint32(unsafe.Sizeof(link{}))
)

// newNode carves a height-truncated node out of a, with key and value
// already written. The returned offset is the node's handle.
func newNode(a *arena.Arena, height uint32, key, value int32) (uint32, error) {
	if height < 1 || height > Hmax {
		panic("skiplist: height out of range")
	}

	size := nodeHeaderSize + height*linkSize
	off, err := a.Alloc(size)
	if err != nil {
		return 0, err
	}

	nd := (*node)(a.Pointer(off))
	nd.key = key
	nd.value = value
	nd.height = uint8(height)
	return off, nil
}

func nodeAt(a *arena.Arena, off uint32) *node {
	return (*node)(a.Pointer(off))
}

func (n *node) nextOffset(level uint32) uint32 {
	return n.tower[level].next.Load()
}

func (n *node) storeNext(level uint32, off uint32) {
	n.tower[level].next.Store(off)
}

func (n *node) casNext(level uint32, old, new uint32) bool {
	return n.tower[level].next.CompareAndSwap(old, new)
}
