package skiplist

import (
	"errors"

	"github.com/arcsine/memindex/arena"
)

var (
	// ErrArenaFull re-exports arena.ErrArenaFull so callers can check for
	// arena exhaustion without importing the arena package directly,
	// matching boulder's internal/skiplist (which re-exports
	// arena.ErrArenaFull as skiplist.ErrArenaFull for the same reason).
	ErrArenaFull = arena.ErrArenaFull

	// ErrRecordExists is the sentinel a caller wanting error-based
	// duplicate handling can compare against, for a key that Insert and
	// its variants otherwise report as a plain false return (see
	// memindex.Index.InsertStrict).
	ErrRecordExists = errors.New("skiplist: record with this key already exists")
)
