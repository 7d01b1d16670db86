// Package skiplist implements a lock-free, variable-height skip list whose
// node memory is drawn from a single arena.Arena: concurrent insertion from
// many writers via per-level CAS, a splice hint that amortizes repeated
// ordered inserts, and single-reader point lookup.
//
// Adapted from boulder's internal/skiplist (itself adapted from CockroachDB
// Pebble's internal/base skiplist, in turn adapted from RocksDB's
// InlineSkipList), generalized from byte-slice internal keys to plain int32
// key/value pairs, and simplified from a doubly-linked head/tail design to
// a single-head, nil-terminated forward list.
package skiplist

import (
	"fmt"
	"math"
	"strings"

	"github.com/arcsine/memindex/arena"
	"github.com/arcsine/memindex/internal/arch"
	"github.com/arcsine/memindex/internal/fastrand"
)

// Skiplist is a concurrent, ordered int32->int32 index. Keys are unique;
// Insert rejects duplicates rather than overwriting. There is no deletion.
// All node memory belongs to the Arena returned by Arena(), which the
// Skiplist does not own — the caller is responsible for closing it once
// done with the Skiplist (see the memindex package for a facade that ties
// the two together).
type Skiplist struct {
	arena *arena.Arena
	head  uint32

	// ceiling is the configured upper bound on node height for this
	// instance (Options.MaxHeight), distinct from the compile-time
	// Hmax: ceiling <= Hmax always, and randomHeight never returns more
	// than ceiling.
	ceiling uint32
	// height is the highest level currently occupied by any inserted
	// node. Starts at 1, grows monotonically via CAS, never exceeds
	// ceiling.
	height arch.AtomicUint

	probabilities [Hmax]uint32
}

// NewSkiplist constructs an empty skip list over a.
func NewSkiplist(a *arena.Arena, opts Options) (*Skiplist, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s := &Skiplist{
		arena:   a,
		ceiling: opts.MaxHeight,
	}
	s.precomputeProbabilities(opts.BranchingFactor)
	s.height.Store(arch.UintToArchSize(1))

	head, err := newNode(a, Hmax, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("skiplist: allocating head node: %w", err)
	}
	s.head = head

	return s, nil
}

// precomputeProbabilities fills in, for each height h, the threshold a
// fastrand.Uint32 draw must fall under for a node to be promoted to height
// h+1. This mirrors boulder's package-level probabilities table, but is
// computed per-instance since branching factor is now a runtime Options
// field rather than a compile-time constant.
func (s *Skiplist) precomputeProbabilities(branching uint32) {
	p := 1.0
	pValue := 1.0 / float64(branching)
	for i := 0; i < Hmax; i++ {
		s.probabilities[i] = uint32(float64(math.MaxUint32) * p)
		p *= pValue
	}
}

// Arena returns the arena backing this skip list.
func (s *Skiplist) Arena() *arena.Arena {
	return s.arena
}

// Height returns the current max_height: the highest level occupied by any
// node inserted so far.
func (s *Skiplist) Height() uint32 {
	return uint32(s.height.Load())
}

// Size returns the number of bytes allocated from the backing arena so far,
// including the head node.
func (s *Skiplist) Size() uint32 {
	return s.arena.Len()
}

// randomHeight picks a node height in [1, ceiling] from a geometric
// distribution with success probability 1/branching_factor.
func (s *Skiplist) randomHeight() uint32 {
	rnd := fastrand.Uint32()
	h := uint32(1)
	for h < s.ceiling && rnd < s.probabilities[h] {
		h++
	}
	return h
}

// nodeAt dereferences an arena offset into a *node.
func (s *Skiplist) nodeAt(off uint32) *node {
	return nodeAt(s.arena, off)
}

func (s *Skiplist) nextOffset(off, level uint32) uint32 {
	return s.nodeAt(off).nextOffset(level)
}

// keyIsAfterNode reports whether key is strictly greater than the key
// stored at the node at off.
func (s *Skiplist) keyIsAfterNode(key int32, off uint32) bool {
	return s.nodeAt(off).key < key
}

// keyIsBeforeNode reports whether key is strictly less than the key stored
// at the node at off.
func (s *Skiplist) keyIsBeforeNode(key int32, off uint32) bool {
	return key < s.nodeAt(off).key
}

// AllocateKeyAndValue picks a random height and allocates a node for
// (key, value) in the skip list's arena, returning a Handle that the
// caller then passes to Insert/InsertConcurrent/InsertWithHintConcurrent.
// It does not link the node into the list.
func (s *Skiplist) AllocateKeyAndValue(key, value int32) (Handle, error) {
	height := s.randomHeight()
	off, err := newNode(s.arena, height, key, value)
	if err != nil {
		return Handle{}, err
	}
	return Handle{list: s, offset: off}, nil
}

// findGEQ walks from the head and returns the offset of the first node
// whose key is >= k, or 0 if no such node exists. Descent on a nil next
// pointer is a pure level change with no key comparison, so a nil next is
// never dereferenced.
func (s *Skiplist) findGEQ(k int32) uint32 {
	level := int(s.Height()) - 1
	cur := s.head

	for {
		next := s.nextOffset(cur, uint32(level))
		if next == 0 {
			if level == 0 {
				return 0
			}
			level--
			continue
		}
		if k <= s.nodeAt(next).key {
			if level == 0 {
				return next
			}
			level--
			continue
		}
		cur = next
	}
}

// Search returns the Handle for k and true if k was successfully inserted
// at some earlier point, or the zero Handle and false otherwise.
func (s *Skiplist) Search(k int32) (Handle, bool) {
	off := s.findGEQ(k)
	if off == 0 {
		return Handle{}, false
	}
	nd := s.nodeAt(off)
	if nd.key != k {
		return Handle{}, false
	}
	return Handle{list: s, offset: off}, true
}

// findSpliceForLevel walks forward from before at level, stopping at the
// first node whose offset equals after or whose key is not strictly less
// than k, and returns that (prev, next) window.
func (s *Skiplist) findSpliceForLevel(k int32, before, after, level uint32) (prev, next uint32) {
	prev = before
	for {
		next = s.nextOffset(prev, level)
		if next == after || next == 0 {
			return
		}
		if s.nodeAt(next).key >= k {
			return
		}
		prev = next
	}
}

// recomputeSpliceLevels fills splice.prev[0:r]/splice.next[0:r] top-down,
// bounding each level's scan by the already-validated window one level up.
func (s *Skiplist) recomputeSpliceLevels(k int32, splice *Splice, r uint32) {
	for level := int(r) - 1; level >= 0; level-- {
		lvl := uint32(level)
		prev, next := s.findSpliceForLevel(k, splice.prev[lvl+1], splice.next[lvl+1], lvl)
		splice.prev[lvl] = prev
		splice.next[lvl] = next
	}
}

// validateSplice either discovers the cached height is behind the current
// max_height, in which case the whole cursor is stale, or checks each
// level in turn against three possible staleness causes (link changed
// since caching, predecessor now too large, successor now too small), with
// allowPartialFix controlling whether a single bad level is repaired in
// place or the entire cursor is discarded.
func (s *Skiplist) validateSplice(key int32, splice *Splice, m uint32, allowPartialFix bool) {
	var r uint32

	if splice.cachedHeight < m {
		splice.prev[m] = s.head
		splice.next[m] = 0
		splice.cachedHeight = m
		r = m
	} else {
		for r < m {
			if s.nextOffset(splice.prev[r], r) != splice.next[r] {
				// A concurrent insert landed between the cached
				// window at this level; keep climbing.
				r++
				continue
			}
			if splice.prev[r] != s.head && !s.keyIsAfterNode(key, splice.prev[r]) {
				if allowPartialFix {
					bad := splice.prev[r]
					for r < m && splice.prev[r] == bad {
						r++
					}
				} else {
					r = m
				}
				continue
			}
			if splice.next[r] != 0 && s.keyIsAfterNode(key, splice.next[r]) {
				if allowPartialFix {
					bad := splice.next[r]
					for r < m && splice.next[r] == bad {
						r++
					}
				} else {
					r = m
				}
				continue
			}
			break
		}
	}

	if r > 0 {
		s.recomputeSpliceLevels(key, splice, r)
	}
}

// Insert links h into every level it occupies, using splice as a
// predecessor/successor hint. allowPartialFix controls whether a stale
// hint is repaired level-by-level (true, for InsertWithHintConcurrent) or
// discarded wholesale on any staleness (false, for InsertConcurrent).
//
// Insert returns false, nil if a node with h's key is already present —
// this is the duplicate-rejection path, not an error.
func (s *Skiplist) Insert(h Handle, splice *Splice, allowPartialFix bool) (bool, error) {
	if h.list != s {
		return false, fmt.Errorf("skiplist: handle belongs to a different skip list")
	}

	nd := s.nodeAt(h.offset)
	height := uint32(nd.height)
	key := nd.key

	// Step 1: raise max_height if this node is taller than anything
	// inserted so far. Concurrent raisers serialize via CAS.
	m := s.Height()
	for height > m {
		if s.height.CompareAndSwap(arch.UintToArchSize(m), arch.UintToArchSize(height)) {
			m = height
			break
		}
		m = s.Height()
	}

	// Step 2: validate or recompute the splice against the (possibly
	// just-raised) max_height.
	s.validateSplice(key, splice, m, allowPartialFix)

	// Step 3: publish the node at every level it occupies, lowest first.
	var retried bool
	for level := uint32(0); level < height; level++ {
		for {
			if level == 0 {
				if splice.prev[0] != s.head && !s.keyIsAfterNode(key, splice.prev[0]) {
					return false, nil
				}
				if splice.next[0] != 0 && !s.keyIsBeforeNode(key, splice.next[0]) {
					return false, nil
				}
			}

			nd.storeNext(level, splice.next[level])
			if s.nodeAt(splice.prev[level]).casNext(level, splice.next[level], h.offset) {
				break
			}

			// Lost the race for this level: re-scan forward from
			// the known-good predecessor and retry. The upper
			// bound is unknown (0), so the duplicate check at
			// level 0 re-runs on the next iteration.
			prev, next := s.findSpliceForLevel(key, splice.prev[level], 0, level)
			splice.prev[level] = prev
			splice.next[level] = next
			retried = true
		}
	}

	// Step 4: update the cursor for the writer's next call.
	if retried {
		splice.cachedHeight = 0
	} else {
		for level := uint32(0); level < height; level++ {
			splice.prev[level] = h.offset
		}
	}

	return true, nil
}

// InsertConcurrent allocates a one-shot splice from an internal pool,
// inserts h with no partial-splice-fix (there's no cached state worth
// repairing for a cursor that's about to be discarded), and returns the
// splice to the pool.
func (s *Skiplist) InsertConcurrent(h Handle) (bool, error) {
	splice := splicePool.Get().(*Splice)
	defer func() {
		splice.reset()
		splicePool.Put(splice)
	}()
	return s.Insert(h, splice, false)
}

// InsertWithHintConcurrent lazily initializes *cursor on first use, then
// inserts h with partial-splice-fix enabled so a still-mostly-valid hint
// survives a concurrent writer touching one level. Cursor ownership stays
// with the caller across calls.
func (s *Skiplist) InsertWithHintConcurrent(h Handle, cursor **Splice) (bool, error) {
	if *cursor == nil {
		*cursor = NewSplice()
	}
	return s.Insert(h, *cursor, true)
}

// String renders the per-level node counts, in the spirit of
// danyalprout-pebble/batchskl's debug() helper: useful for asserting the
// level-consistency invariant in tests without exposing arena offsets.
func (s *Skiplist) String() string {
	var b strings.Builder
	height := s.Height()
	for level := uint32(0); level < height; level++ {
		count := 0
		for off := s.nextOffset(s.head, level); off != 0; off = s.nextOffset(off, level) {
			count++
		}
		fmt.Fprintf(&b, "%d: %d\n", level, count)
	}
	return b.String()
}

// Keys returns every key in the level-0 chain in ascending order. Intended
// for tests; there is no general range-iteration API.
func (s *Skiplist) Keys() []int32 {
	var keys []int32
	for off := s.nextOffset(s.head, 0); off != 0; off = s.nextOffset(off, 0) {
		keys = append(keys, s.nodeAt(off).key)
	}
	return keys
}
