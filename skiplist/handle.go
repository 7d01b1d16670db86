package skiplist

// Handle is the stable reference to an allocated node, returned by
// AllocateKeyAndValue and paired with the Splice passed to Insert. It is an
// opaque node reference plus accessors rather than a raw pointer into the
// arena, so that the only thing a caller needs to do with it is hold onto
// it and pass it to Insert.
type Handle struct {
	list   *Skiplist
	offset uint32
}

// IsZero reports whether h is the zero Handle (never allocated).
func (h Handle) IsZero() bool {
	return h.list == nil
}

// Key returns the key stored at h.
func (h Handle) Key() int32 {
	return h.list.nodeAt(h.offset).key
}

// Value returns the value stored at h.
func (h Handle) Value() int32 {
	return h.list.nodeAt(h.offset).value
}
