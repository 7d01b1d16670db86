//go:build unix

package arena

import "syscall"

// mmapAlloc carves out a large contiguous chunk of memory via an anonymous
// OS mapping, keeping it outside the Go runtime's garbage-collected heap so
// a 32MB+ arena is never scanned by the GC and its pages are lazily faulted
// in as the bump-pointer offset advances across them. The returned slice's
// length is exactly size, even though the OS maps whole pages.
func mmapAlloc(size int) ([]byte, error) {
	// fd is -1 because MAP_ANON means there is no backing file.
	return syscall.Mmap(-1, 0, size,
		syscall.PROT_READ|syscall.PROT_WRITE,
		syscall.MAP_ANON|syscall.MAP_PRIVATE,
	)
}

// mmapFree releases memory obtained from mmapAlloc. The exact slice
// mmapAlloc returned must be passed back; do not grow it with append first.
func mmapFree(data []byte) error {
	return syscall.Munmap(data)
}
