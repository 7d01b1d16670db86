package skiplist

import "sync"

// splicePool backs InsertConcurrent's one-shot cursors with a dedicated
// lifecycle: a Splice holds no resource beyond its own memory, so a
// sync.Pool is sufficient rather than threading cursor ownership through
// the arena's own allocator.
var splicePool = sync.Pool{
	New: func() any { return &Splice{} },
}

// Splice is a per-writer cache of the predecessor/successor node at each
// level for the most recent insertion point. A writer that inserts keys in
// roughly ascending order can reuse a Splice across calls and skip the
// top-down search most of the time; a writer with no such locality should
// use a fresh one-shot Splice per call (see InsertConcurrent).
//
// A Splice is never shared between goroutines. It is sized Hmax+1 so that
// level Hmax itself can hold a seeded (head, nil) window when the cached
// height is stale (see Skiplist.validateSplice).
type Splice struct {
	cachedHeight uint32
	prev         [Hmax + 1]uint32
	next         [Hmax + 1]uint32
}

// NewSplice allocates a fresh, empty Splice for a caller that wants to hold
// its own persistent cursor across calls (see InsertWithHintConcurrent).
func NewSplice() *Splice {
	return &Splice{}
}

// reset clears a pooled Splice back to its zero state before reuse.
func (s *Splice) reset() {
	*s = Splice{}
}
