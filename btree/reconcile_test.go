package btree

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strata-db/strata/block"
	"github.com/strata-db/strata/track"
)

func newTestManager(t *testing.T) *block.Manager {
	t.Helper()
	mgr, err := block.CreateManager(filepath.Join(t.TempDir(), "test.strata"), block.StoreOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

// opsOf filters the recorded events down to their operation sequence.
func opsOf(events []track.Event) []track.Op {
	ops := make([]track.Op, len(events))
	for i, ev := range events {
		ops[i] = ev.Op
	}
	return ops
}

func TestReconcileInlineOnly(t *testing.T) {
	mgr := newTestManager(t)
	r := NewReconciler(mgr, Options{})

	p := NewPage(1)
	p.Set([]byte("a"), []byte("one"))
	p.Set([]byte("b"), []byte("two"))

	require.NoError(t, r.Reconcile(context.Background(), p))
	require.True(t, p.Extent().Valid())

	id, items, err := ReadImage(mgr, p.Extent())
	require.NoError(t, err)
	require.Equal(t, track.PageID(1), id)
	require.Len(t, items, 2)
	require.Equal(t, []byte("one"), items[0].Value)
	require.Equal(t, []byte("two"), items[1].Value)
}

func TestReconcileReplacesImage(t *testing.T) {
	mgr := newTestManager(t)
	rec := &track.Recorder{}
	r := NewReconciler(mgr, Options{Sink: rec})

	p := NewPage(1)
	p.Set([]byte("k"), []byte("v1"))
	require.NoError(t, r.Reconcile(context.Background(), p))
	first := p.Extent()

	p.Set([]byte("k"), []byte("v2"))
	rec.Reset()
	require.NoError(t, r.Reconcile(context.Background(), p))

	// The old image was tracked as a dead block and freed in the same pass.
	require.NotEqual(t, first.Addr, p.Extent().Addr)
	require.Equal(t, []track.Op{track.OpTrack, track.OpDiscard}, opsOf(rec.Events()))

	// Its blocks really went back to the allocator: a write-back of the
	// same address range must not double-free.
	require.ErrorIs(t, mgr.Free(first.Addr, first.Size), block.ErrFreeOverlap)
}

// TestReconcileOverflowLifecycle walks the two-pass overflow scenario:
// a big value is written once, reused verbatim while it survives, and
// released in the pass after it disappears.
func TestReconcileOverflowLifecycle(t *testing.T) {
	requireT := require.New(t)
	mgr := newTestManager(t)
	rec := &track.Recorder{}
	r := NewReconciler(mgr, Options{OverflowThreshold: 512, Sink: rec})
	ctx := context.Background()

	big := bytes.Repeat([]byte("ov"), 1024) // 2048 bytes, above threshold

	// Pass 1: overflow value written to its own blocks.
	p := NewPage(1)
	p.Set([]byte("small"), []byte("inline"))
	p.Set([]byte("large"), big)
	requireT.NoError(r.Reconcile(ctx, p))

	ovf := p.Items()[0].Overflow // "large" sorts first
	requireT.NotNil(ovf)
	firstExt := ovf.Extent
	requireT.True(firstExt.Valid())

	// Pass 2: nothing changed, so the overflow blocks are reused verbatim.
	rec.Reset()
	requireT.NoError(r.Reconcile(ctx, p))
	requireT.Equal(firstExt, p.Items()[0].Overflow.Extent)
	requireT.Contains(opsOf(rec.Events()), track.OpReactivate)

	id, items, err := ReadImage(mgr, p.Extent())
	requireT.NoError(err)
	requireT.Equal(track.PageID(1), id)
	requireT.Equal(big, items[0].Value)
	requireT.Equal([]byte("inline"), items[1].Value)

	// Pass 3: the big value is deleted; its blocks come back.
	freeBefore := mgr.FreeBlocks()
	requireT.True(p.Delete([]byte("large")))
	rec.Reset()
	requireT.NoError(r.Reconcile(ctx, p))

	var discarded []track.Event
	for _, ev := range rec.Events() {
		if ev.Op == track.OpDiscard && ev.Kind == track.KindOverflowDiscarded {
			discarded = append(discarded, ev)
		}
	}
	requireT.Len(discarded, 1)
	requireT.Equal(firstExt.Addr, discarded[0].Addr)
	requireT.Greater(mgr.FreeBlocks(), freeBefore)

	// Pass 4: steady state; only the image block cycles.
	requireT.NoError(r.Reconcile(ctx, p))
	_, items, err = ReadImage(mgr, p.Extent())
	requireT.NoError(err)
	requireT.Len(items, 1)
}

func TestReconcileReplacedOverflowFreed(t *testing.T) {
	mgr := newTestManager(t)
	r := NewReconciler(mgr, Options{OverflowThreshold: 512})
	ctx := context.Background()

	p := NewPage(1)
	p.Set([]byte("k"), bytes.Repeat([]byte{1}, 1024))
	require.NoError(t, r.Reconcile(ctx, p))
	oldExt := p.Items()[0].Overflow.Extent

	// Replacing the value severs the overflow reference; the old blocks
	// are gone after the next pass.
	p.Set([]byte("k"), bytes.Repeat([]byte{2}, 1024))
	require.NoError(t, r.Reconcile(ctx, p))
	newExt := p.Items()[0].Overflow.Extent
	require.NotEqual(t, oldExt, newExt)
	require.ErrorIs(t, mgr.Free(oldExt.Addr, oldExt.Size), block.ErrFreeOverlap)

	_, items, err := ReadImage(mgr, p.Extent())
	require.NoError(t, err)
	require.Equal(t, bytes.Repeat([]byte{2}, 1024), items[0].Value)
}

// TestReconcileNoLeaks runs a mixed workload over several passes and then
// checks block accounting: every data block is either free or cited by
// the final images.
func TestReconcileNoLeaks(t *testing.T) {
	requireT := require.New(t)
	mgr := newTestManager(t)
	r := NewReconciler(mgr, Options{OverflowThreshold: 256})
	ctx := context.Background()

	pages := make([]*Page, 4)
	for i := range pages {
		pages[i] = NewPage(track.PageID(i + 1))
	}

	for pass := 0; pass < 6; pass++ {
		for pi, p := range pages {
			for k := 0; k < 8; k++ {
				key := []byte(fmt.Sprintf("p%d-k%d", pi, k))
				if (pass+k)%3 == 0 {
					p.Set(key, bytes.Repeat([]byte{byte(pass)}, 300+97*k))
				} else {
					p.Set(key, []byte(fmt.Sprintf("small-%d-%d", pass, k)))
				}
			}
			if pass%2 == 1 {
				p.Delete([]byte(fmt.Sprintf("p%d-k%d", pi, pass%8)))
			}
			requireT.NoError(r.Reconcile(ctx, p))
		}
	}

	usable := uint64(mgr.Store().Usable())
	blocksFor := func(size uint32) uint64 {
		return (uint64(size) + usable - 1) / usable
	}
	live := uint64(0)
	for _, p := range pages {
		live += blocksFor(p.Extent().Size)
		for _, it := range p.Items() {
			if it.Overflow != nil {
				live += blocksFor(it.Overflow.Extent.Size)
			}
		}
	}
	st := mgr.Stats()
	requireT.Equal(uint64(st.TotalBlocks-1), st.FreeBlocks+live,
		"leaked or double-freed blocks")
}

// TestReconcileConcurrentPages reconciles distinct pages from separate
// goroutines against one shared manager.
func TestReconcileConcurrentPages(t *testing.T) {
	mgr := newTestManager(t)
	r := NewReconciler(mgr, Options{OverflowThreshold: 512})
	ctx := context.Background()

	const numPages = 8
	pages := make([]*Page, numPages)
	for i := range pages {
		pages[i] = NewPage(track.PageID(i + 1))
	}

	var wg sync.WaitGroup
	errs := make([]error, numPages)
	for i, p := range pages {
		wg.Add(1)
		go func(i int, p *Page) {
			defer wg.Done()
			for pass := 0; pass < 5; pass++ {
				p.Set([]byte(fmt.Sprintf("key-%d", pass)), bytes.Repeat([]byte{byte(i)}, 800))
				p.Set([]byte("counter"), []byte{byte(pass)})
				if err := r.Reconcile(ctx, p); err != nil {
					errs[i] = err
					return
				}
			}
		}(i, p)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "page %d", i)
	}
	for i, p := range pages {
		id, items, err := ReadImage(mgr, p.Extent())
		require.NoError(t, err)
		require.Equal(t, track.PageID(i+1), id)
		require.Len(t, items, 6) // 5 overflow keys + counter
		for _, it := range items {
			if it.Overflow != nil {
				require.Equal(t, bytes.Repeat([]byte{byte(i)}, 800), it.Value)
			}
		}
	}
	require.NoError(t, mgr.Sync(ctx))
}

func TestReconcileCancelledContext(t *testing.T) {
	mgr := newTestManager(t)
	r := NewReconciler(mgr, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPage(1)
	p.Set([]byte("k"), []byte("v"))
	require.ErrorIs(t, r.Reconcile(ctx, p), context.Canceled)
	require.False(t, p.Extent().Valid())
}
