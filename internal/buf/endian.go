// Package buf contains endian-safe encoding helpers and bounds checks
// shared by the on-disk codecs (store superblock, page images).
//
// All multi-byte integers in strata files are little-endian.
package buf

import "encoding/binary"

// U32 reads a little-endian uint32 at off. Returns 0 when b is too short.
func U32(b []byte, off int) uint32 {
	if off < 0 || off+4 > len(b) {
		return 0
	}
	return binary.LittleEndian.Uint32(b[off : off+4])
}

// U64 reads a little-endian uint64 at off. Returns 0 when b is too short.
func U64(b []byte, off int) uint64 {
	if off < 0 || off+8 > len(b) {
		return 0
	}
	return binary.LittleEndian.Uint64(b[off : off+8])
}

// PutU32 writes a little-endian uint32 at off. The caller guarantees bounds;
// a short buffer panics the same way a raw slice write would.
func PutU32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:off+4], v)
}

// PutU64 writes a little-endian uint64 at off.
func PutU64(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:off+8], v)
}
