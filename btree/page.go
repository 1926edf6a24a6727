package btree

import (
	"bytes"
	"sort"

	"github.com/strata-db/strata/block"
	"github.com/strata-db/strata/track"
)

// Item is one key/value pair in a leaf page. Value always holds the
// current bytes; Overflow, when set, names where an overflow-sized value
// was last written on disk.
type Item struct {
	Key      []byte
	Value    []byte
	Overflow *OverflowRef
}

// OverflowRef cites an overflow value's on-disk location. Ref is the
// identity the page's ledger tracks the value under.
type OverflowRef struct {
	Ref    track.RefID
	Extent block.Extent
}

// Modify is a page's mutable reconciliation state: created lazily on
// first use and retained until the page itself is discarded, because the
// ledger inside it must survive between passes.
type Modify struct {
	// Track is the page's tracked-object ledger.
	Track *track.Ledger

	lastRef track.RefID
}

// newRef mints the next overflow identity for this page.
func (m *Modify) newRef() track.RefID {
	m.lastRef++
	return m.lastRef
}

// Page is a minimal leaf page: sorted key/value items plus the extent of
// the last written image. It carries just enough structure to drive
// reconciliation; search trees and cursors live elsewhere.
//
// NOT thread-safe. The reconciliation scheduler guarantees exclusive
// access to a page for the duration of a pass.
type Page struct {
	id     track.PageID
	extent block.Extent
	items  []Item
	mod    *Modify
}

// NewPage creates an empty page that has never been written.
func NewPage(id track.PageID) *Page {
	return &Page{id: id, extent: block.Extent{Addr: block.AddrInvalid}}
}

// ID returns the page's identity.
func (p *Page) ID() track.PageID {
	return p.id
}

// Extent returns where the page's current image lives on disk. Invalid
// until the first reconciliation pass completes.
func (p *Page) Extent() block.Extent {
	return p.extent
}

// Len returns the number of items.
func (p *Page) Len() int {
	return len(p.items)
}

// Items returns the page's items in key order. The slice is shared with
// the page; callers must not modify it.
func (p *Page) Items() []Item {
	return p.items
}

// Modify returns the page's mutable reconciliation state, creating it on
// first use with the given ledger options. Later calls return the same
// state regardless of options.
func (p *Page) Modify(opts track.Options) *Modify {
	if p.mod == nil {
		p.mod = &Modify{Track: track.New(p.id, opts)}
	}
	return p.mod
}

// search returns the index at which key lives or would be inserted.
func (p *Page) search(key []byte) (int, bool) {
	i := sort.Search(len(p.items), func(i int) bool {
		return bytes.Compare(p.items[i].Key, key) >= 0
	})
	return i, i < len(p.items) && bytes.Equal(p.items[i].Key, key)
}

// Set inserts or replaces the value for key. Replacing a value that was
// written as an overflow item drops the item's overflow reference; the
// superseded blocks stay in the ledger and fall out at the next Resolve.
func (p *Page) Set(key, value []byte) {
	i, ok := p.search(key)
	if ok {
		p.items[i].Value = append([]byte(nil), value...)
		p.items[i].Overflow = nil
		return
	}
	p.items = append(p.items, Item{})
	copy(p.items[i+1:], p.items[i:])
	p.items[i] = Item{
		Key:   append([]byte(nil), key...),
		Value: append([]byte(nil), value...),
	}
}

// Delete removes key and reports whether it was present. A deleted
// overflow value's blocks are released by the next reconciliation pass.
func (p *Page) Delete(key []byte) bool {
	i, ok := p.search(key)
	if !ok {
		return false
	}
	p.items = append(p.items[:i], p.items[i+1:]...)
	return true
}

// Get returns the in-memory value for key.
func (p *Page) Get(key []byte) ([]byte, bool) {
	i, ok := p.search(key)
	if !ok {
		return nil, false
	}
	return p.items[i].Value, true
}
