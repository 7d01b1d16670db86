package skiplist

import (
	"errors"
	"fmt"
	"io"

	"github.com/ncw/directio"
	"gopkg.in/yaml.v3"
)

// Options configures a Skiplist's construction-time parameters. All three
// have sensible defaults and bounds are enforced by Validate before a
// Skiplist is built.
type Options struct {
	// MaxHeight bounds the height any node may be allocated at. It must
	// be between 1 and Hmax inclusive.
	MaxHeight uint32 `yaml:"max_height"`
	// BranchingFactor is the inverse of the per-level promotion
	// probability: on average 1 in BranchingFactor nodes at height h
	// also reach height h+1. Must be >= 2.
	BranchingFactor uint32 `yaml:"branching_factor"`
	// ArenaSize is the number of bytes in the arena backing the skip
	// list. DefaultOptions and LoadOptions round it up to a multiple of
	// directio.BlockSize; a value assigned directly is used as given. The
	// rounding is the same
	// alignment boulder's memtable.New applies to its arena so that the
	// arena's footprint lines up with the block size the storage layer
	// eventually flushes with O_DIRECT.
	ArenaSize uint32 `yaml:"arena_size"`
}

// DefaultOptions returns a moderate set of defaults: MaxHeight 12,
// BranchingFactor 4, ArenaSize 1<<25 (32MB).
func DefaultOptions() Options {
	o := Options{
		MaxHeight:       12,
		BranchingFactor: 4,
		ArenaSize:       1 << 25,
	}
	return o.normalize()
}

// normalize rounds ArenaSize up to a directio block boundary. It does not
// touch MaxHeight or BranchingFactor; those are validated, not rewritten,
// by Validate.
func (o Options) normalize() Options {
	if rem := o.ArenaSize % directio.BlockSize; rem != 0 {
		o.ArenaSize += directio.BlockSize - rem
	}
	return o
}

// Validate reports whether o's fields are within the bounds a Skiplist can
// be built from. Callers that construct an arena or other resource from o
// before handing it to NewSkiplist should call Validate first, since
// NewSkiplist's own validation runs too late to prevent that resource from
// ever being allocated.
func (o Options) Validate() error {
	if o.MaxHeight < 1 || o.MaxHeight > Hmax {
		return fmt.Errorf("skiplist: max_height %d must be in [1, %d]", o.MaxHeight, Hmax)
	}
	if o.BranchingFactor < 2 {
		return fmt.Errorf("skiplist: branching_factor %d must be >= 2", o.BranchingFactor)
	}
	if o.ArenaSize == 0 {
		return errors.New("skiplist: arena_size must be > 0")
	}
	return nil
}

// LoadOptions reads a YAML document (the same three fields as Options, any
// subset) and overlays it on top of DefaultOptions. It is the module's only
// notion of configuration; there is no environment variable or flag
// support — this just lets a caller hand the module a config file instead
// of constructing Options by hand.
func LoadOptions(r io.Reader) (Options, error) {
	opts := DefaultOptions()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&opts); err != nil && err != io.EOF {
		return Options{}, fmt.Errorf("skiplist: decoding options: %w", err)
	}
	opts = opts.normalize()
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}
