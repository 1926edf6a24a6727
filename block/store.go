package block

import (
	"context"
	crand "crypto/rand"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"

	"github.com/strata-db/strata/internal/buf"
	"github.com/strata-db/strata/internal/mmfile"
)

const (
	// Magic identifies a strata store file ("STRB", little-endian).
	Magic = uint32(0x42525453)

	// Version is the current store format version.
	Version = uint32(1)

	// DefaultBlockSize is used when StoreOptions.BlockSize is zero.
	DefaultBlockSize = uint32(4096)

	// minBlockSize bounds configurable block sizes from below.
	minBlockSize = uint32(512)

	// trailerSize is the per-block checksum trailer length in bytes.
	trailerSize = uint32(8)

	// growBlocks is the minimum number of blocks added per file extension.
	growBlocks = uint32(64)

	// Superblock field offsets.
	superMagicOff    = 0
	superVersionOff  = 4
	superBlockSzOff  = 8
	superCountOff    = 12
	superSaltOff     = 16
	superChecksumOff = 24
	superLen         = 32
)

// StoreOptions configures Create.
type StoreOptions struct {
	// BlockSize is the on-disk block size in bytes: a power of two of at
	// least 512. Zero selects DefaultBlockSize.
	BlockSize uint32
}

// Store is a fixed-block-size file store, memory-mapped read-write.
// Block 0 is the superblock; every other block carries a payload area
// followed by an 8-byte checksum trailer.
//
// NOT thread-safe. Manager serializes access.
type Store struct {
	f         *os.File
	path      string
	data      []byte
	blockSize uint32
	count     uint32 // blocks in file, superblock included
	salt      uint64
	dirty     *dirtySet
	closed    bool
}

// Create creates a new store file at path. It fails if the file exists.
func Create(path string, opts StoreOptions) (*Store, error) {
	bs := opts.BlockSize
	if bs == 0 {
		bs = DefaultBlockSize
	}
	if bs < minBlockSize || bs&(bs-1) != 0 {
		return nil, errors.Errorf("block: block size %d is not a power of two >= %d", bs, minBlockSize)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	count := 1 + growBlocks
	size := int64(count) * int64(bs)
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, errors.WithStack(err)
	}
	data, err := mmfile.MapRW(f, int(size))
	if err != nil {
		f.Close()
		return nil, errors.WithStack(err)
	}

	var saltBytes [8]byte
	if _, err := crand.Read(saltBytes[:]); err != nil {
		mmfile.Unmap(data)
		f.Close()
		return nil, errors.WithStack(err)
	}

	s := &Store{
		f:         f,
		path:      path,
		data:      data,
		blockSize: bs,
		count:     count,
		salt:      buf.U64(saltBytes[:], 0),
		dirty:     newDirtySet(),
	}
	s.writeSuper()
	return s, nil
}

// Open maps an existing store file and validates its superblock.
func Open(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.WithStack(err)
	}
	size := info.Size()
	if size < int64(superLen) {
		f.Close()
		return nil, errors.WithStack(ErrBadMagic)
	}
	data, err := mmfile.MapRW(f, int(size))
	if err != nil {
		f.Close()
		return nil, errors.WithStack(err)
	}

	s := &Store{
		f:     f,
		path:  path,
		data:  data,
		dirty: newDirtySet(),
	}
	if err := s.readSuper(size); err != nil {
		mmfile.Unmap(data)
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) writeSuper() {
	sb := s.data[:s.blockSize]
	buf.PutU32(sb, superMagicOff, Magic)
	buf.PutU32(sb, superVersionOff, Version)
	buf.PutU32(sb, superBlockSzOff, s.blockSize)
	buf.PutU32(sb, superCountOff, s.count)
	buf.PutU64(sb, superSaltOff, s.salt)
	buf.PutU64(sb, superChecksumOff, xxhash.Sum64(sb[:superChecksumOff]))
	s.dirty.add(0, superLen)
}

func (s *Store) readSuper(fileSize int64) error {
	sb := s.data
	if buf.U32(sb, superMagicOff) != Magic {
		return errors.WithStack(ErrBadMagic)
	}
	if buf.U32(sb, superVersionOff) != Version {
		return errors.Wrapf(ErrBadVersion, "version %d", buf.U32(sb, superVersionOff))
	}
	if got, want := buf.U64(sb, superChecksumOff), xxhash.Sum64(sb[:superChecksumOff]); got != want {
		return errors.Wrap(ErrChecksum, "superblock")
	}
	s.blockSize = buf.U32(sb, superBlockSzOff)
	s.count = buf.U32(sb, superCountOff)
	s.salt = buf.U64(sb, superSaltOff)
	if int64(s.count)*int64(s.blockSize) != fileSize {
		return errors.Errorf("block: file size %d does not match %d blocks of %d bytes",
			fileSize, s.count, s.blockSize)
	}
	return nil
}

// BlockSize returns the on-disk block size in bytes.
func (s *Store) BlockSize() uint32 {
	return s.blockSize
}

// Count returns the number of blocks in the file, superblock included.
func (s *Store) Count() uint32 {
	return s.count
}

// Usable returns the payload bytes available per block.
func (s *Store) Usable() uint32 {
	return s.blockSize - trailerSize
}

// Path returns the store file's path.
func (s *Store) Path() string {
	return s.path
}

// Grow extends the file by at least need blocks (rounded up to the growth
// chunk) and returns the run of blocks added.
func (s *Store) Grow(need uint32) (Run, error) {
	if s.closed {
		return Run{}, errors.WithStack(ErrClosed)
	}
	added := need
	if added < growBlocks {
		added = growBlocks
	}

	// The mapping must be dropped before the file changes size.
	if err := mmfile.Unmap(s.data); err != nil {
		return Run{}, errors.WithStack(err)
	}
	s.data = nil

	newCount := s.count + added
	newSize := int64(newCount) * int64(s.blockSize)
	if err := s.f.Truncate(newSize); err != nil {
		return Run{}, errors.WithStack(err)
	}
	data, err := mmfile.MapRW(s.f, int(newSize))
	if err != nil {
		return Run{}, errors.WithStack(err)
	}

	run := Run{Start: Addr(s.count), Count: added}
	s.data = data
	s.count = newCount
	s.writeSuper()
	return run, nil
}

// checkAddr validates a data block address.
func (s *Store) checkAddr(addr Addr) error {
	if addr == 0 || uint32(addr) >= s.count {
		return errors.Wrapf(ErrBadAddr, "address %d of %d blocks", addr, s.count)
	}
	return nil
}

// blockChecksum hashes a block's full payload area, salted so checksums
// are unique to this store.
func (s *Store) blockChecksum(area []byte) uint64 {
	var saltBytes [8]byte
	buf.PutU64(saltBytes[:], 0, s.salt)
	h := xxhash.New()
	h.Write(saltBytes[:])
	h.Write(area)
	return h.Sum64()
}

// WriteBlock stores payload in the addressed block, zero-padding the rest
// of the payload area, and updates the block's checksum trailer.
func (s *Store) WriteBlock(addr Addr, payload []byte) error {
	if s.closed {
		return errors.WithStack(ErrClosed)
	}
	if err := s.checkAddr(addr); err != nil {
		return err
	}
	usable := int(s.Usable())
	if len(payload) > usable {
		return errors.Wrapf(ErrTooLarge, "%d bytes into %d-byte payload area", len(payload), usable)
	}

	off := int(addr) * int(s.blockSize)
	area := s.data[off : off+usable]
	n := copy(area, payload)
	for i := n; i < usable; i++ {
		area[i] = 0
	}
	buf.PutU64(s.data, off+usable, s.blockChecksum(area))
	s.dirty.add(off, int(s.blockSize))
	return nil
}

// ReadBlock verifies the addressed block's checksum and returns a copy of
// its payload area. Reading a block that was never written reports
// ErrChecksum.
func (s *Store) ReadBlock(addr Addr) ([]byte, error) {
	if s.closed {
		return nil, errors.WithStack(ErrClosed)
	}
	if err := s.checkAddr(addr); err != nil {
		return nil, err
	}
	usable := int(s.Usable())
	off := int(addr) * int(s.blockSize)
	area := s.data[off : off+usable]
	if buf.U64(s.data, off+usable) != s.blockChecksum(area) {
		return nil, errors.Wrapf(ErrChecksum, "block %d", addr)
	}
	out := make([]byte, usable)
	copy(out, area)
	return out, nil
}

// CheckBlock verifies the addressed block without copying it. A block that
// was never written (payload and trailer all zero) passes.
func (s *Store) CheckBlock(addr Addr) error {
	if s.closed {
		return errors.WithStack(ErrClosed)
	}
	if err := s.checkAddr(addr); err != nil {
		return err
	}
	off := int(addr) * int(s.blockSize)
	raw := s.data[off : off+int(s.blockSize)]
	zero := true
	for _, b := range raw {
		if b != 0 {
			zero = false
			break
		}
	}
	if zero {
		return nil
	}
	usable := int(s.Usable())
	if buf.U64(raw, usable) != s.blockChecksum(raw[:usable]) {
		return errors.Wrapf(ErrChecksum, "block %d", addr)
	}
	return nil
}

// Sync flushes all dirty ranges and then the file itself. The context is
// checked between ranges; cancellation may leave some ranges flushed and
// others not, which a later Sync completes.
func (s *Store) Sync(ctx context.Context) error {
	if s.closed {
		return errors.WithStack(ErrClosed)
	}
	for _, r := range s.dirty.coalesce() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := mmfile.Flush(s.f, s.data, r.off, r.n); err != nil {
			return errors.WithStack(err)
		}
	}
	s.dirty.reset()
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.WithStack(mmfile.Sync(s.f))
}

// Close unmaps and closes the store file. Unsynced changes are left to
// the OS to write back.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := mmfile.Unmap(s.data)
	s.data = nil
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return errors.WithStack(err)
}
