//go:build unix

package httpstate

import (
	"golang.org/x/sys/unix"
)

// mapFile opens path read-only and maps its first size bytes into
// memory, the Go rendering of do_requset's open()+mmap(PROT_READ,
// MAP_PRIVATE) pair. The fd is closed immediately after mapping, same
// as the original — the mapping keeps the pages resident regardless.
func mapFile(path string, size int64) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer unix.Close(fd)

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// unmapBytes releases a mapping returned by mapFile.
func unmapBytes(data []byte) {
	if len(data) == 0 {
		return
	}
	unix.Munmap(data)
}
