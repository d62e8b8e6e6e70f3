//go:build windows

package shm

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// mapFile opens (creating if absent) path, grows it to size, and maps it
// via CreateFileMapping/MapViewOfFile, the Windows equivalent of the POSIX
// mmap path in mmap_unix.go.
func mapFile(path string, size int) ([]byte, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", path, err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: truncate %s to %d: %w", path, size, err)
	}

	handle, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, windows.PAGE_READWRITE, 0, uint32(size), nil)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: CreateFileMapping %s: %w", path, err)
	}

	addr, err := windows.MapViewOfFile(handle, windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		windows.CloseHandle(handle)
		f.Close()
		return nil, fmt.Errorf("shm: MapViewOfFile %s: %w", path, err)
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	mappingHandles[&data[0]] = mappingHandle{file: f, mapping: handle, addr: addr}
	return data, nil
}

type mappingHandle struct {
	file    *os.File
	mapping windows.Handle
	addr    uintptr
}

var mappingHandles = map[*byte]mappingHandle{}

func unmapFile(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	h, ok := mappingHandles[&data[0]]
	if !ok {
		return nil
	}
	delete(mappingHandles, &data[0])

	if err := windows.UnmapViewOfFile(h.addr); err != nil {
		return err
	}
	if err := windows.CloseHandle(h.mapping); err != nil {
		return err
	}
	return h.file.Close()
}
