package skiplist

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arcsine/memindex/arena"
)

func newTestSkiplist(t *testing.T) *Skiplist {
	t.Helper()
	a := arena.New(1 << 22)
	s, err := NewSkiplist(a, DefaultOptions())
	require.NoError(t, err)
	return s
}

func insert(t *testing.T, s *Skiplist, key, value int32) bool {
	t.Helper()
	h, err := s.AllocateKeyAndValue(key, value)
	require.NoError(t, err)
	ok, err := s.InsertConcurrent(h)
	require.NoError(t, err)
	return ok
}

func TestOrderedSingleThreaded(t *testing.T) {
	s := newTestSkiplist(t)

	for i := int32(1); i <= 100; i++ {
		require.True(t, insert(t, s, i, i*10))
	}
	for i := int32(1); i <= 200; i++ {
		ok := insert(t, s, i, i*10)
		if i <= 100 {
			require.False(t, ok, "key %d should already exist", i)
		} else {
			require.True(t, ok, "key %d should be new", i)
		}
	}

	keys := s.Keys()
	require.Len(t, keys, 200)
	for i, k := range keys {
		require.Equal(t, int32(i+1), k)
	}
}

func TestDuplicateRejectionMidSequence(t *testing.T) {
	s := newTestSkiplist(t)

	results := []bool{
		insert(t, s, 5, 50),
		insert(t, s, 3, 30),
		insert(t, s, 5, 999),
		insert(t, s, 7, 70),
	}
	require.Equal(t, []bool{true, true, false, true}, results)
	require.Equal(t, []int32{3, 5, 7}, s.Keys())
}

func TestInsertThenSearchRoundTrip(t *testing.T) {
	s := newTestSkiplist(t)
	require.True(t, insert(t, s, 42, 4242))

	h, ok := s.Search(42)
	require.True(t, ok)
	require.Equal(t, int32(42), h.Key())
	require.Equal(t, int32(4242), h.Value())
}

func TestSizeGrowsWithInserts(t *testing.T) {
	s := newTestSkiplist(t)
	before := s.Size()
	require.True(t, insert(t, s, 1, 1))
	require.Greater(t, s.Size(), before)
}

func TestSearchMissingKey(t *testing.T) {
	s := newTestSkiplist(t)
	require.True(t, insert(t, s, 10, 1))

	_, ok := s.Search(11)
	require.False(t, ok)
}

func TestBoundaryInt32Extremes(t *testing.T) {
	s := newTestSkiplist(t)

	require.True(t, insert(t, s, math.MinInt32, 1))
	require.True(t, insert(t, s, math.MaxInt32, 2))
	require.True(t, insert(t, s, 0, 3))

	require.Equal(t, []int32{math.MinInt32, 0, math.MaxInt32}, s.Keys())

	h, ok := s.Search(math.MinInt32)
	require.True(t, ok)
	require.Equal(t, int32(1), h.Value())
}

func TestHeightBoundAndForcedMaxHeight(t *testing.T) {
	a := arena.New(1 << 20)
	opts := DefaultOptions()
	opts.MaxHeight = Hmax
	s, err := NewSkiplist(a, opts)
	require.NoError(t, err)

	// Force every node to the configured ceiling height, bypassing the
	// random generator, to exercise the "max_height reaches Hmax"
	// boundary.
	for i := int32(0); i < Hmax; i++ {
		off, err := newNode(a, Hmax, i, i)
		require.NoError(t, err)
		h := Handle{list: s, offset: off}
		ok, err := s.InsertConcurrent(h)
		require.NoError(t, err)
		require.True(t, ok)
	}

	require.Equal(t, uint32(Hmax), s.Height())
}

func TestOrderingInvariantAfterManyInserts(t *testing.T) {
	s := newTestSkiplist(t)
	keys := []int32{50, 10, 90, 30, 70, 20, 80, 40, 60, 1, 99}
	for _, k := range keys {
		require.True(t, insert(t, s, k, k))
	}

	got := s.Keys()
	for i := 1; i < len(got); i++ {
		require.Less(t, got[i-1], got[i])
	}
}

func TestLevelConsistencySubsequence(t *testing.T) {
	s := newTestSkiplist(t)
	for i := int32(0); i < 500; i++ {
		require.True(t, insert(t, s, i, i))
	}

	height := s.Height()
	require.GreaterOrEqual(t, height, uint32(1))

	levelKeys := make([][]int32, height)
	for level := uint32(0); level < height; level++ {
		for off := s.nextOffset(s.head, level); off != 0; off = s.nextOffset(off, level) {
			levelKeys[level] = append(levelKeys[level], s.nodeAt(off).key)
		}
	}

	for level := uint32(1); level < height; level++ {
		require.True(t, isSubsequence(levelKeys[level], levelKeys[level-1]),
			"level %d chain is not a subsequence of level %d", level, level-1)
	}
}

func isSubsequence(sub, full []int32) bool {
	i := 0
	for _, v := range full {
		if i < len(sub) && sub[i] == v {
			i++
		}
	}
	return i == len(sub)
}

func TestOptionsValidation(t *testing.T) {
	a := arena.New(4096)

	_, err := NewSkiplist(a, Options{MaxHeight: 0, BranchingFactor: 4, ArenaSize: 4096})
	require.Error(t, err)

	_, err = NewSkiplist(a, Options{MaxHeight: Hmax + 1, BranchingFactor: 4, ArenaSize: 4096})
	require.Error(t, err)

	_, err = NewSkiplist(a, Options{MaxHeight: 12, BranchingFactor: 1, ArenaSize: 4096})
	require.Error(t, err)
}

func TestArenaExhaustionSurfacesAsError(t *testing.T) {
	a := arena.New(256)
	s, err := NewSkiplist(a, Options{MaxHeight: 12, BranchingFactor: 4, ArenaSize: 256})
	require.NoError(t, err)

	var lastErr error
	for i := int32(0); i < 10000; i++ {
		_, err := s.AllocateKeyAndValue(i, i)
		if err != nil {
			lastErr = err
			break
		}
	}
	require.ErrorIs(t, lastErr, ErrArenaFull)
}
