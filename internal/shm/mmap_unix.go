//go:build !windows

package shm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mapFile opens (creating if absent) and mmaps path as a shared read/write
// region of exactly size bytes, growing or truncating the backing file to
// match. Atomic stores into the mapping carry the seqlock/ring protocols;
// no file locking is involved.
func mapFile(path string, size int) ([]byte, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", path, err)
	}
	defer f.Close()

	if err := f.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("shm: truncate %s to %d: %w", path, size, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("shm: mmap %s: %w", path, err)
	}
	return data, nil
}

func unmapFile(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Munmap(data)
}
