package track

import (
	"fmt"

	"github.com/strata-db/strata/block"
)

// PageID identifies the page whose reconciliation state owns a ledger.
type PageID uint64

// RefID is the opaque identity of the in-memory structure citing an
// overflow item. The ledger only ever compares it for equality; it is
// never dereferenced and carries no lifetime coupling.
type RefID uint64

// RefNone is the null reference.
const RefNone RefID = 0

const (
	// growChunk is the fixed number of slots added each time the ledger's
	// backing storage fills up.
	growChunk = 20

	// defaultMaxEntries bounds growth when Options.MaxEntries is zero.
	defaultMaxEntries = 1 << 20
)

// BlockFreer releases an on-disk extent back to the block allocator.
// block.Manager satisfies it.
type BlockFreer interface {
	Free(addr block.Addr, size uint32) error
}

// Entry is one tracked object: a block or overflow item the owning page
// cited at some point, pending eventual free or continued retention.
type Entry struct {
	kind Kind
	ref  RefID
	addr block.Addr
	size uint32
}

func (e Entry) Kind() Kind       { return e.kind }
func (e Entry) Ref() RefID       { return e.ref }
func (e Entry) Addr() block.Addr { return e.addr }
func (e Entry) Size() uint32     { return e.size }

// Stats counts ledger activity since creation.
type Stats struct {
	Adds          int // Entries recorded
	Dedups        int // Adds collapsed onto an existing entry
	Reactivations int // Discarded overflow entries reused
	Resets        int // Active entries demoted by ResetOverflow
	Frees         int // Entries freed by Resolve
	Grows         int // Storage growth events
}

// Options configures a Ledger.
type Options struct {
	// Sink receives one event per state change. Nil disables reporting;
	// the only cost of a nil sink is a nil check.
	Sink Sink

	// MaxEntries bounds storage growth. Zero selects a generous default;
	// an Add that would grow past the bound fails with ErrLedgerFull.
	MaxEntries int
}

// Ledger records the on-disk objects a page cited before its latest
// rewrite: plain blocks awaiting release and overflow items moving through
// the active/discarded lifecycle. It is owned by the page's mutable
// reconciliation state and persists across passes, because active overflow
// entries must survive from one pass to the next.
//
// NOT thread-safe. All calls for one page happen inside the reconciliation
// pass that holds exclusive access to that page.
type Ledger struct {
	page       PageID
	entries    []Entry // length is the current capacity; Empty slots are reused
	sink       Sink
	maxEntries int
	stats      Stats
}

// New creates an empty ledger for the given page.
func New(page PageID, opts Options) *Ledger {
	limit := opts.MaxEntries
	if limit <= 0 {
		limit = defaultMaxEntries
	}
	return &Ledger{page: page, sink: opts.Sink, maxEntries: limit}
}

// Add records that the page cites the given block or overflow item. The
// same fact may be reported many times within or across passes; duplicates
// of the exact (kind, ref, addr, size) quadruple collapse onto the
// existing entry.
//
// Adding a second active overflow entry for a reference that already has
// one is a caller defect and panics with InvariantError.
func (l *Ledger) Add(kind Kind, ref RefID, addr block.Addr, size uint32) error {
	if kind == KindEmpty {
		panic(&InvariantError{Page: l.page, Ref: ref, Msg: "Add with empty kind"})
	}

	slot := -1
	for i := range l.entries {
		e := &l.entries[i]
		if e.kind == KindEmpty {
			if slot < 0 {
				slot = i
			}
			continue
		}
		if e.kind == kind && e.ref == ref && e.addr == addr && e.size == size {
			l.stats.Dedups++
			return nil
		}
		if kind == KindOverflowActive && ref != RefNone &&
			e.kind == KindOverflowActive && e.ref == ref {
			panic(&InvariantError{
				Page: l.page, Ref: ref,
				Msg: "second active entry for one overflow reference",
			})
		}
	}

	if slot < 0 {
		var err error
		if slot, err = l.grow(); err != nil {
			return err
		}
	}
	e := &l.entries[slot]
	e.kind = kind
	e.ref = ref
	e.addr = addr
	e.size = size
	l.stats.Adds++
	l.emit(Event{Page: l.page, Op: OpTrack, Kind: kind, Ref: ref, Addr: addr, Size: size})
	return nil
}

// grow extends storage by one fixed chunk and returns the first new slot.
// On failure the ledger is unchanged.
func (l *Ledger) grow() (int, error) {
	if len(l.entries)+growChunk > l.maxEntries {
		return 0, ErrLedgerFull
	}
	grown := make([]Entry, len(l.entries)+growChunk)
	copy(grown, l.entries)
	// The Empty address sentinel is not the zero value, so new slots must
	// be initialized before any of them is handed out.
	for i := len(l.entries); i < len(grown); i++ {
		grown[i] = Entry{kind: KindEmpty, ref: RefNone, addr: block.AddrInvalid, size: 0}
	}
	first := len(l.entries)
	l.entries = grown
	l.stats.Grows++
	return first, nil
}

// ReactivateOverflow reports whether a previously written overflow item
// for ref can be reused verbatim instead of rewritten. On success the
// entry is active again and its extent is returned for reuse.
//
// ref == RefNone always misses: overflow keys are not tracked, only
// overflow values.
//
// Finding more than one entry for ref, or an entry that is not currently
// discarded, means the caller conflated two overflow items; both panic
// with InvariantError.
func (l *Ledger) ReactivateOverflow(ref RefID) (block.Extent, bool) {
	if ref == RefNone {
		return block.Extent{}, false
	}

	found := -1
	for i := range l.entries {
		e := &l.entries[i]
		if e.kind == KindEmpty || e.ref != ref {
			continue
		}
		if found >= 0 {
			panic(&InvariantError{
				Page: l.page, Ref: ref,
				Msg: "multiple entries for one overflow reference",
			})
		}
		found = i
	}
	if found < 0 {
		return block.Extent{}, false
	}

	e := &l.entries[found]
	if e.kind != KindOverflowDiscarded {
		panic(&InvariantError{
			Page: l.page, Ref: ref,
			Msg: fmt.Sprintf("reactivating %s entry", e.kind),
		})
	}
	e.kind = KindOverflowActive
	l.stats.Reactivations++
	l.emit(Event{Page: l.page, Op: OpReactivate, Kind: e.kind, Ref: ref, Addr: e.addr, Size: e.size})
	return block.Extent{Addr: e.addr, Size: e.size}, true
}

// ResetOverflow demotes every active overflow entry to discarded. Called
// once at the start of a reconciliation pass: unless the pass rediscovers
// an item and reactivates it, the item is no longer referenced and falls
// out at Resolve. Block and Empty entries are untouched.
func (l *Ledger) ResetOverflow() {
	for i := range l.entries {
		e := &l.entries[i]
		if e.kind != KindOverflowActive {
			continue
		}
		e.kind = KindOverflowDiscarded
		l.stats.Resets++
		l.emit(Event{Page: l.page, Op: OpReset, Kind: e.kind, Ref: e.ref, Addr: e.addr, Size: e.size})
	}
}

// Resolve frees every block and discarded overflow entry through freer,
// emptying each freed slot. Active overflow entries are kept for the next
// pass. This is the only point where on-disk resources are released.
//
// On a Free failure Resolve returns immediately: entries processed before
// the failure are already Empty, the failing entry and everything after it
// keep their state. Retrying is safe; Empty entries are skipped, so
// nothing is freed twice.
func (l *Ledger) Resolve(freer BlockFreer) error {
	for i := range l.entries {
		e := &l.entries[i]
		switch e.kind {
		case KindEmpty, KindOverflowActive:
			continue
		}
		if err := freer.Free(e.addr, e.size); err != nil {
			return fmt.Errorf("track: resolve page %d: free %d/%d: %w", l.page, e.addr, e.size, err)
		}
		ev := Event{Page: l.page, Op: OpDiscard, Kind: e.kind, Ref: e.ref, Addr: e.addr, Size: e.size}
		e.kind = KindEmpty
		e.ref = RefNone
		e.addr = block.AddrInvalid
		e.size = 0
		l.stats.Frees++
		l.emit(ev)
	}
	return nil
}

// Page returns the owning page's id.
func (l *Ledger) Page() PageID {
	return l.page
}

// Len returns the number of live (non-Empty) entries.
func (l *Ledger) Len() int {
	n := 0
	for i := range l.entries {
		if l.entries[i].kind != KindEmpty {
			n++
		}
	}
	return n
}

// Cap returns the current slot capacity.
func (l *Ledger) Cap() int {
	return len(l.entries)
}

// Entries returns a copy of the live entries in storage order. The order
// carries no meaning; callers must not rely on position.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, 0, len(l.entries))
	for i := range l.entries {
		if l.entries[i].kind != KindEmpty {
			out = append(out, l.entries[i])
		}
	}
	return out
}

// Stats returns a snapshot of activity counters.
func (l *Ledger) Stats() Stats {
	return l.stats
}

func (l *Ledger) emit(ev Event) {
	if l.sink != nil {
		l.sink.Emit(ev)
	}
}
