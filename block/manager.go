package block

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ManagerStats is a snapshot of allocator activity.
type ManagerStats struct {
	Allocs      int    // Extents handed out
	Frees       int    // Extents returned
	GrowCalls   int    // Store file extensions
	GrowBlocks  uint64 // Blocks added by extensions
	BytesOut    uint64 // Payload bytes written
	BytesIn     uint64 // Payload bytes read
	FreeBlocks  uint64 // Blocks currently free
	TotalBlocks uint32 // Blocks in the file, superblock included
	FreeList    FreeListStats
}

// Manager combines a store with its transient free list behind one mutex.
// Pages reconcile concurrently on independent goroutines; each page's
// ledger stays single-threaded while the shared allocator synchronizes
// itself here.
type Manager struct {
	mu    sync.Mutex
	store *Store
	fl    *FreeList
	stats ManagerStats
}

// CreateManager creates a store file and a manager over it, with every
// data block free.
func CreateManager(path string, opts StoreOptions) (*Manager, error) {
	s, err := Create(path, opts)
	if err != nil {
		return nil, err
	}
	return newManager(s)
}

// OpenManager opens an existing store. All data blocks start free: the
// free list is transient, so callers must Reserve the extents they know
// are live before allocating.
func OpenManager(path string) (*Manager, error) {
	s, err := Open(path)
	if err != nil {
		return nil, err
	}
	return newManager(s)
}

func newManager(s *Store) (*Manager, error) {
	fl := NewFreeList()
	if s.Count() > 1 {
		if err := fl.Free(1, s.Count()-1); err != nil {
			s.Close()
			return nil, err
		}
	}
	return &Manager{store: s, fl: fl}, nil
}

// blocksFor returns the number of blocks an extent of size payload bytes
// occupies.
func (m *Manager) blocksFor(size uint32) uint32 {
	u := m.store.Usable()
	return (size + u - 1) / u
}

// Alloc reserves an extent large enough for size payload bytes, growing
// the store file when the free list cannot satisfy the request.
func (m *Manager) Alloc(size uint32) (Extent, error) {
	if size == 0 {
		return Extent{}, errors.New("block: alloc of zero bytes")
	}
	need := m.blocksFor(size)

	m.mu.Lock()
	defer m.mu.Unlock()

	start, err := m.fl.Alloc(need)
	if errors.Is(err, ErrNoSpace) {
		added, gerr := m.store.Grow(need)
		if gerr != nil {
			return Extent{}, gerr
		}
		m.stats.GrowCalls++
		m.stats.GrowBlocks += uint64(added.Count)
		if ferr := m.fl.Free(added.Start, added.Count); ferr != nil {
			return Extent{}, ferr
		}
		start, err = m.fl.Alloc(need)
	}
	if err != nil {
		return Extent{}, err
	}
	m.stats.Allocs++
	return Extent{Addr: start, Size: size}, nil
}

// Free returns the extent's blocks to the free list. It satisfies the
// ledger's BlockFreer interface; each (addr, size) pair is expected at
// most once, and a repeat reports ErrFreeOverlap.
func (m *Manager) Free(addr Addr, size uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fl.Free(addr, m.blocksFor(size)); err != nil {
		return err
	}
	m.stats.Frees++
	return nil
}

// Reserve marks the extent's blocks as live. Used after OpenManager to
// re-register extents that survived a restart.
func (m *Manager) Reserve(ext Extent) error {
	if !ext.Valid() {
		return errors.WithStack(ErrBadAddr)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fl.Reserve(ext.Addr, m.blocksFor(ext.Size))
}

// Write stores payload across the extent's blocks. The payload length
// must equal ext.Size.
func (m *Manager) Write(ext Extent, payload []byte) error {
	if uint32(len(payload)) != ext.Size {
		return errors.Wrapf(ErrTooLarge, "%d bytes into extent %s", len(payload), ext)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	usable := int(m.store.Usable())
	addr := ext.Addr
	for off := 0; off < len(payload); off += usable {
		end := off + usable
		if end > len(payload) {
			end = len(payload)
		}
		if err := m.store.WriteBlock(addr, payload[off:end]); err != nil {
			return err
		}
		addr++
	}
	m.stats.BytesOut += uint64(len(payload))
	return nil
}

// Read returns the extent's payload, verifying each block's checksum.
func (m *Manager) Read(ext Extent) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	usable := uint32(m.store.Usable())
	out := make([]byte, 0, ext.Size)
	addr := ext.Addr
	for remaining := ext.Size; remaining > 0; addr++ {
		area, err := m.store.ReadBlock(addr)
		if err != nil {
			return nil, err
		}
		n := remaining
		if n > usable {
			n = usable
		}
		out = append(out, area[:n]...)
		remaining -= n
	}
	m.stats.BytesIn += uint64(ext.Size)
	return out, nil
}

// Sync flushes all dirty store ranges to stable storage.
func (m *Manager) Sync(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Sync(ctx)
}

// Close closes the underlying store.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Close()
}

// Store exposes the underlying store for inspection tooling.
func (m *Manager) Store() *Store {
	return m.store
}

// FreeBlocks returns the number of currently free blocks.
func (m *Manager) FreeBlocks() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fl.FreeBlocks()
}

// Stats returns a snapshot of allocator statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := m.stats
	st.FreeBlocks = m.fl.FreeBlocks()
	st.TotalBlocks = m.store.Count()
	st.FreeList = m.fl.Stats()
	return st
}
