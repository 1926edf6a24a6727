// Package block implements the block manager: a fixed-block-size store
// file plus a transient extent allocator.
//
// # Overview
//
// A store is a single file divided into fixed-size blocks. Block 0 holds
// the superblock (magic, version, block size, block count, checksum salt);
// every other block carries a payload area and a trailing checksum. The
// file is memory-mapped read-write and grown in fixed chunks as
// allocations demand.
//
// Free space is managed by FreeList, an address-ordered set of free block
// runs. The free list is transient state: it is rebuilt when a store is
// opened and is never written to disk.
//
// # Manager
//
// Manager ties a Store and a FreeList together behind one mutex and is the
// type the rest of the engine talks to:
//
//   - Alloc(size): reserve an extent large enough for size payload bytes
//   - Write(ext, payload) / Read(ext): block-chunked payload I/O
//   - Free(addr, size): return an extent's blocks to the free list
//   - Sync(ctx): flush dirty ranges and the file to stable storage
//
// Free satisfies the ledger's BlockFreer interface, making Manager the
// concrete collaborator page reconciliation resolves against.
//
// # Durability
//
// Writes land in the mapping immediately and are tracked as dirty ranges;
// Sync coalesces the ranges, flushes each one, and then syncs the file
// descriptor. Closing without Sync leaves durability to the OS.
//
// # Thread Safety
//
// Store and FreeList are not thread-safe on their own. Manager serializes
// all access internally, so independent reconciliation goroutines may
// share one Manager.
//
// # Related Packages
//
//   - github.com/strata-db/strata/track: ledger that frees extents through Manager
//   - github.com/strata-db/strata/btree: page reconciliation built on Manager
//   - github.com/strata-db/strata/internal/mmfile: platform mapping helpers
package block
