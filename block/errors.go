package block

import "errors"

var (
	// ErrBadMagic indicates the file is not a strata store.
	ErrBadMagic = errors.New("block: not a strata store file")

	// ErrBadVersion indicates a store written by an unsupported format version.
	ErrBadVersion = errors.New("block: unsupported store version")

	// ErrChecksum indicates block contents do not match their stored checksum.
	ErrChecksum = errors.New("block: checksum mismatch")

	// ErrBadAddr indicates an address outside the store, or the superblock.
	ErrBadAddr = errors.New("block: bad block address")

	// ErrTooLarge indicates a payload that does not fit the addressed extent.
	ErrTooLarge = errors.New("block: payload too large")

	// ErrNoSpace indicates no free run is large enough and growth failed.
	ErrNoSpace = errors.New("block: no free run large enough")

	// ErrFreeOverlap indicates a freed range that overlaps space already
	// free: a double free or an accounting bug in the caller.
	ErrFreeOverlap = errors.New("block: freed range overlaps free space")

	// ErrNotFree indicates a reservation of space that is not entirely free.
	ErrNotFree = errors.New("block: range is not free")

	// ErrClosed indicates use of a store after Close.
	ErrClosed = errors.New("block: store is closed")
)
