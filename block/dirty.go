package block

import "sort"

// defaultRangeCapacity is the pre-allocated capacity for dirty ranges.
const defaultRangeCapacity = 64

// byteRange is a dirty byte range, in absolute file offsets.
type byteRange struct {
	off int
	n   int
}

// dirtySet accumulates dirty byte ranges between syncs. Ranges are
// coalesced lazily, when a flush asks for them.
//
// NOT thread-safe; the store's owner serializes.
type dirtySet struct {
	ranges []byteRange
}

func newDirtySet() *dirtySet {
	return &dirtySet{ranges: make([]byteRange, 0, defaultRangeCapacity)}
}

// add records a dirty range. Append-only and cheap; overlap is resolved
// at coalesce time.
func (d *dirtySet) add(off, n int) {
	d.ranges = append(d.ranges, byteRange{off: off, n: n})
}

// coalesce sorts the recorded ranges and merges overlapping or adjacent
// ones, returning a minimal set to flush.
func (d *dirtySet) coalesce() []byteRange {
	if len(d.ranges) == 0 {
		return nil
	}
	sorted := make([]byteRange, len(d.ranges))
	copy(sorted, d.ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].off < sorted[j].off })

	merged := make([]byteRange, 0, len(sorted))
	cur := sorted[0]
	for _, r := range sorted[1:] {
		if r.off <= cur.off+cur.n {
			if end := r.off + r.n; end > cur.off+cur.n {
				cur.n = end - cur.off
			}
			continue
		}
		merged = append(merged, cur)
		cur = r
	}
	return append(merged, cur)
}

// reset clears all tracked ranges.
func (d *dirtySet) reset() {
	d.ranges = d.ranges[:0]
}
