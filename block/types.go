package block

import "fmt"

// Addr is a block number within a store. The allocator defines and
// interprets addresses; every other layer treats them as opaque.
type Addr uint32

// AddrInvalid is the sentinel for "no block".
const AddrInvalid = ^Addr(0)

// Extent names a contiguous on-disk range: a starting block address and
// the payload byte count stored there.
type Extent struct {
	Addr Addr
	Size uint32
}

// Valid reports whether the extent names a real on-disk range.
func (e Extent) Valid() bool {
	return e.Addr != AddrInvalid && e.Size > 0
}

func (e Extent) String() string {
	return fmt.Sprintf("%d/%d", e.Addr, e.Size)
}

// Run is a contiguous range of whole blocks, used by the free list.
type Run struct {
	Start Addr
	Count uint32
}

func (r Run) end() Addr {
	return r.Start + Addr(r.Count)
}
