//go:build !unix

package arena

import "errors"

// errMmapUnsupported signals that this platform has no anonymous-mmap
// syscall; New falls back to a heap-allocated buffer in that case.
var errMmapUnsupported = errors.New("arena: anonymous mmap unsupported on this platform")

func mmapAlloc(size int) ([]byte, error) {
	return nil, errMmapUnsupported
}

func mmapFree(data []byte) error {
	return nil
}
