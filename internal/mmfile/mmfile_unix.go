//go:build unix

package mmfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// pageSize is the alignment msync requires for the start of a flushed range.
const pageSize = 4096

// MapRW maps size bytes of f read-write and shared. The caller must Unmap
// the returned slice before truncating or closing the file.
func MapRW(f *os.File, size int) ([]byte, error) {
	if size == 0 {
		return []byte{}, nil
	}
	return unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

// Unmap releases a mapping returned by MapRW.
func Unmap(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Munmap(data)
}

// Flush writes the dirty range [off, off+length) of a mapping back to the
// file. The range is widened to page boundaries because msync rejects
// unaligned start addresses.
func Flush(_ *os.File, data []byte, off, length int) error {
	start := (off / pageSize) * pageSize
	end := off + length
	if end > len(data) {
		end = len(data)
	}
	if start >= end {
		return nil
	}
	return unix.Msync(data[start:end], unix.MS_SYNC)
}

// Sync forces written data to stable storage.
func Sync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
