package block

import "github.com/google/btree"

// freeListDegree is the branching factor of the free-run tree.
const freeListDegree = 16

// FreeListStats holds internal free-list statistics.
type FreeListStats struct {
	Allocs    int // Successful Alloc calls
	Frees     int // Successful Free calls
	Splits    int // Runs split by a partial allocation
	Coalesces int // Runs merged with a neighbor on Free
}

// FreeList tracks the free block runs of a store, ordered by address.
// Allocation is address-ordered first fit; freed runs coalesce with
// address-adjacent neighbors.
//
// The list is transient: rebuilt when a store is opened, never serialized.
//
// NOT thread-safe. Manager serializes access.
type FreeList struct {
	runs  *btree.BTreeG[Run]
	free  uint64 // total free blocks
	stats FreeListStats
}

// NewFreeList creates an empty free list.
func NewFreeList() *FreeList {
	return &FreeList{
		runs: btree.NewG(freeListDegree, func(a, b Run) bool { return a.Start < b.Start }),
	}
}

// Alloc removes count blocks from the lowest-addressed run that fits and
// returns the starting address. Returns ErrNoSpace when no run is large
// enough.
func (fl *FreeList) Alloc(count uint32) (Addr, error) {
	if count == 0 {
		return AddrInvalid, ErrNoSpace
	}
	var hit Run
	found := false
	fl.runs.Ascend(func(r Run) bool {
		if r.Count >= count {
			hit = r
			found = true
			return false
		}
		return true
	})
	if !found {
		return AddrInvalid, ErrNoSpace
	}
	fl.runs.Delete(hit)
	if hit.Count > count {
		fl.runs.ReplaceOrInsert(Run{Start: hit.Start + Addr(count), Count: hit.Count - count})
		fl.stats.Splits++
	}
	fl.free -= uint64(count)
	fl.stats.Allocs++
	return hit.Start, nil
}

// Free returns [start, start+count) to the list. Overlap with an existing
// free run reports ErrFreeOverlap and leaves the list unchanged.
func (fl *FreeList) Free(start Addr, count uint32) error {
	if count == 0 {
		return nil
	}
	merged := Run{Start: start, Count: count}

	var prev Run
	havePrev := false
	fl.runs.DescendLessOrEqual(Run{Start: start}, func(r Run) bool {
		prev = r
		havePrev = true
		return false
	})
	if havePrev && prev.end() > start {
		return ErrFreeOverlap
	}

	var next Run
	haveNext := false
	fl.runs.AscendGreaterOrEqual(Run{Start: start}, func(r Run) bool {
		next = r
		haveNext = true
		return false
	})
	if haveNext && merged.end() > next.Start {
		return ErrFreeOverlap
	}

	if havePrev && prev.end() == start {
		fl.runs.Delete(prev)
		merged.Start = prev.Start
		merged.Count += prev.Count
		fl.stats.Coalesces++
	}
	if haveNext && merged.end() == next.Start {
		fl.runs.Delete(next)
		merged.Count += next.Count
		fl.stats.Coalesces++
	}

	fl.runs.ReplaceOrInsert(merged)
	fl.free += uint64(count)
	fl.stats.Frees++
	return nil
}

// Reserve removes [start, start+count) from free space, failing with
// ErrNotFree when any part of the range is already allocated. Used to
// re-register live extents after a store is reopened.
func (fl *FreeList) Reserve(start Addr, count uint32) error {
	if count == 0 {
		return nil
	}
	var r Run
	have := false
	fl.runs.DescendLessOrEqual(Run{Start: start}, func(x Run) bool {
		r = x
		have = true
		return false
	})
	end := start + Addr(count)
	if !have || r.Start > start || r.end() < end {
		return ErrNotFree
	}
	fl.runs.Delete(r)
	if r.Start < start {
		fl.runs.ReplaceOrInsert(Run{Start: r.Start, Count: uint32(start - r.Start)})
	}
	if r.end() > end {
		fl.runs.ReplaceOrInsert(Run{Start: end, Count: uint32(r.end() - end)})
	}
	fl.free -= uint64(count)
	return nil
}

// FreeBlocks returns the total number of free blocks.
func (fl *FreeList) FreeBlocks() uint64 {
	return fl.free
}

// Runs returns a copy of the free runs in address order (for verification
// and tests).
func (fl *FreeList) Runs() []Run {
	out := make([]Run, 0, fl.runs.Len())
	fl.runs.Ascend(func(r Run) bool {
		out = append(out, r)
		return true
	})
	return out
}

// Stats returns current free-list statistics.
func (fl *FreeList) Stats() FreeListStats {
	return fl.stats
}
