// Package memindex is the facade over arena.Arena and skiplist.Skiplist: a
// concurrent in-memory ordered int32 index, bundled with a persistent
// insert hint so that a single writer inserting in roughly sorted order
// gets the splice shortcut for free.
//
// In the spirit of boulder's pkg/boulder.go Open/Close facade over its
// lower-level internal packages.
package memindex

import (
	"fmt"

	"github.com/hashicorp/errwrap"
	multierror "github.com/hashicorp/go-multierror"

	"github.com/arcsine/memindex/arena"
	"github.com/arcsine/memindex/skiplist"
)

// Index is a concurrent, ordered int32->int32 map backed by one arena and
// one skip list. It is safe for concurrent Insert/Search calls from many
// goroutines: a Search racing a concurrent Insert may miss a key it raced
// past, but will never observe a torn node.
type Index struct {
	opts  skiplist.Options
	arena *arena.Arena
	list  *skiplist.Skiplist

	// hint is a persistent splice shared by InsertOrdered callers. It is
	// only safe to use from a single goroutine at a time; concurrent
	// callers should use Insert instead, which allocates its own
	// one-shot cursor per call.
	hint *skiplist.Splice
}

// Option configures an Index at construction.
type Option func(*skiplist.Options)

// WithMaxHeight overrides the configured node-height ceiling.
func WithMaxHeight(h uint32) Option {
	return func(o *skiplist.Options) { o.MaxHeight = h }
}

// WithBranchingFactor overrides the height-promotion branching factor.
func WithBranchingFactor(b uint32) Option {
	return func(o *skiplist.Options) { o.BranchingFactor = b }
}

// WithArenaSize overrides the backing arena's capacity.
func WithArenaSize(n uint32) Option {
	return func(o *skiplist.Options) { o.ArenaSize = n }
}

// Open constructs a new, empty Index. The arena is sized and the skip list
// configured from skiplist.DefaultOptions(), adjusted by any Options
// passed in.
func Open(opts ...Option) (*Index, error) {
	options := skiplist.DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("memindex: opening index: %w", err)
	}

	a := arena.New(options.ArenaSize)
	list, err := skiplist.NewSkiplist(a, options)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("memindex: opening index: %w", err)
	}

	return &Index{opts: options, arena: a, list: list}, nil
}

// Insert adds key/value with a fresh one-shot splice, suitable for callers
// with no particular key ordering across calls or who call concurrently
// from many goroutines. It returns false if key is already present.
func (idx *Index) Insert(key, value int32) (bool, error) {
	h, err := idx.list.AllocateKeyAndValue(key, value)
	if err != nil {
		return false, err
	}
	return idx.list.InsertConcurrent(h)
}

// InsertOrdered adds key/value using the Index's persistent splice hint.
// Only safe to call from one goroutine at a time (the hint is not itself
// synchronized); callers issuing keys in roughly ascending order get the
// splice shortcut instead of a full top-down search on every call.
func (idx *Index) InsertOrdered(key, value int32) (bool, error) {
	h, err := idx.list.AllocateKeyAndValue(key, value)
	if err != nil {
		return false, err
	}
	return idx.list.InsertWithHintConcurrent(h, &idx.hint)
}

// InsertStrict is Insert, but reports a duplicate key as skiplist.ErrRecordExists
// instead of a false return, for callers that want error-based duplicate
// handling in the style of boulder's pkg/memtable.Set.
func (idx *Index) InsertStrict(key, value int32) error {
	ok, err := idx.Insert(key, value)
	if err != nil {
		return err
	}
	if !ok {
		return skiplist.ErrRecordExists
	}
	return nil
}

// Search returns the value stored for key and true, or 0 and false if key
// was never successfully inserted.
func (idx *Index) Search(key int32) (int32, bool) {
	h, ok := idx.list.Search(key)
	if !ok {
		return 0, false
	}
	return h.Value(), true
}

// Height returns the skip list's current max_height.
func (idx *Index) Height() uint32 {
	return idx.list.Height()
}

// Size returns the number of bytes allocated from the arena so far.
func (idx *Index) Size() uint32 {
	return idx.list.Size()
}

// Close tears down the Index's arena. All Handles and search results
// obtained before Close become invalid the moment it returns; there is no
// way to detect continued use of them.
//
// Close aggregates every teardown failure instead of stopping at the
// first, in case a future version of Index grows a second closeable
// resource alongside the arena — the same shape as boulder's
// pkg/boulder.go DB.Close, built here on the two hashicorp error-handling
// modules the teacher's go.mod already required but never exercised.
func (idx *Index) Close() error {
	var result *multierror.Error
	if err := idx.arena.Close(); err != nil {
		result = multierror.Append(result, errwrap.Wrapf("memindex: closing arena: {{err}}", err))
	}
	return result.ErrorOrNil()
}
