//go:build !unix

// Package mmfile provides platform-specific helpers for memory-mapping
// store files read-write.
package mmfile

import "os"

// MapRW reads size bytes of f into a heap buffer when mmap is not
// available. Flush writes modified ranges back through the file handle.
func MapRW(f *os.File, size int) ([]byte, error) {
	data := make([]byte, size)
	if size == 0 {
		return data, nil
	}
	if _, err := f.ReadAt(data, 0); err != nil {
		return nil, err
	}
	return data, nil
}

// Unmap is a no-op for the buffered fallback.
func Unmap(_ []byte) error {
	return nil
}

// Flush writes the range [off, off+length) of the buffer back to the file.
func Flush(f *os.File, data []byte, off, length int) error {
	end := off + length
	if end > len(data) {
		end = len(data)
	}
	if off >= end {
		return nil
	}
	_, err := f.WriteAt(data[off:end], int64(off))
	return err
}

// Sync forces written data to stable storage.
func Sync(f *os.File) error {
	return f.Sync()
}
