package btree

import (
	"context"

	"github.com/strata-db/strata/block"
	"github.com/strata-db/strata/track"
)

// DefaultOverflowThreshold is the smallest value size written as an
// overflow item when Options.OverflowThreshold is zero.
const DefaultOverflowThreshold = 1024

// Options configures a Reconciler.
type Options struct {
	// OverflowThreshold is the smallest value size, in bytes, stored in
	// its own blocks instead of inline in the page image. Zero selects
	// DefaultOverflowThreshold.
	OverflowThreshold int

	// Sink observes ledger events for every page this reconciler touches.
	Sink track.Sink
}

// Reconciler rewrites page images to new blocks and drives each page's
// ledger through a full pass: reset, rewrite, resolve.
type Reconciler struct {
	mgr  *block.Manager
	opts Options
}

// NewReconciler creates a reconciler writing through mgr.
func NewReconciler(mgr *block.Manager, opts Options) *Reconciler {
	if opts.OverflowThreshold <= 0 {
		opts.OverflowThreshold = DefaultOverflowThreshold
	}
	return &Reconciler{mgr: mgr, opts: opts}
}

// Reconcile writes the page's current contents to new blocks and frees
// everything the rewrite made obsolete. Overflow values already on disk
// are reused verbatim when the ledger still has them; everything else is
// written fresh. The caller guarantees exclusive access to the page for
// the duration of the pass.
//
// On error the pass is abandoned: the ledger keeps its state and the next
// pass continues from it.
func (r *Reconciler) Reconcile(ctx context.Context, p *Page) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mod := p.Modify(track.Options{Sink: r.opts.Sink})
	led := mod.Track

	led.ResetOverflow()

	for i := range p.items {
		it := &p.items[i]
		if len(it.Value) < r.opts.OverflowThreshold {
			it.Overflow = nil
			continue
		}
		if it.Overflow != nil {
			if ext, ok := led.ReactivateOverflow(it.Overflow.Ref); ok {
				it.Overflow.Extent = ext
				continue
			}
		}

		// Not reusable: write the value to fresh blocks under a new
		// identity. The old identity, if any, stays discarded in the
		// ledger and is freed below.
		ext, err := r.mgr.Alloc(uint32(len(it.Value)))
		if err != nil {
			return err
		}
		if err := r.mgr.Write(ext, it.Value); err != nil {
			return err
		}
		ref := mod.newRef()
		if err := led.Add(track.KindOverflowActive, ref, ext.Addr, ext.Size); err != nil {
			return err
		}
		it.Overflow = &OverflowRef{Ref: ref, Extent: ext}
	}

	img := EncodeImage(p)
	ext, err := r.mgr.Alloc(uint32(len(img)))
	if err != nil {
		return err
	}
	if err := r.mgr.Write(ext, img); err != nil {
		return err
	}

	// The previous image, when there is one, is garbage now.
	if p.extent.Valid() {
		if err := led.Add(track.KindBlock, track.RefNone, p.extent.Addr, p.extent.Size); err != nil {
			return err
		}
	}
	p.extent = ext

	return led.Resolve(r.mgr)
}

// ReadImage loads and decodes the page image at ext, and resolves any
// overflow references through the manager so the returned items carry
// complete values.
func ReadImage(mgr *block.Manager, ext block.Extent) (track.PageID, []Item, error) {
	img, err := mgr.Read(ext)
	if err != nil {
		return 0, nil, err
	}
	id, items, err := DecodeImage(img)
	if err != nil {
		return 0, nil, err
	}
	for i := range items {
		if items[i].Overflow == nil {
			continue
		}
		value, err := mgr.Read(items[i].Overflow.Extent)
		if err != nil {
			return 0, nil, err
		}
		items[i].Value = value
	}
	return id, items, nil
}
