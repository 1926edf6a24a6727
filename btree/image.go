package btree

import (
	stderrors "errors"

	"github.com/pkg/errors"

	"github.com/strata-db/strata/block"
	"github.com/strata-db/strata/internal/buf"
	"github.com/strata-db/strata/track"
)

// ErrBadImage indicates a page image that cannot be decoded.
var ErrBadImage = stderrors.New("btree: malformed page image")

// Page image layout, all little-endian:
//
//	[magic u32][page id u64][item count u32]
//	per item: [klen u32][key][flag u8]
//	  inline:   [vlen u32][value]
//	  overflow: [addr u32][size u32][ref u64]
const (
	imageMagic = uint32(0x49475053) // "SPGI"

	flagInline   = byte(0)
	flagOverflow = byte(1)

	imageHeaderLen = 16
)

// EncodeImage serializes a page's items into an on-disk image. Overflow
// values are recorded as references; their bytes live in their own blocks.
func EncodeImage(p *Page) []byte {
	size := imageHeaderLen
	for i := range p.items {
		it := &p.items[i]
		size += 4 + len(it.Key) + 1
		if it.Overflow != nil {
			size += 4 + 4 + 8
		} else {
			size += 4 + len(it.Value)
		}
	}

	img := make([]byte, size)
	buf.PutU32(img, 0, imageMagic)
	buf.PutU64(img, 4, uint64(p.id))
	buf.PutU32(img, 12, uint32(len(p.items)))

	off := imageHeaderLen
	for i := range p.items {
		it := &p.items[i]
		buf.PutU32(img, off, uint32(len(it.Key)))
		off += 4
		off += copy(img[off:], it.Key)
		if it.Overflow != nil {
			img[off] = flagOverflow
			off++
			buf.PutU32(img, off, uint32(it.Overflow.Extent.Addr))
			buf.PutU32(img, off+4, it.Overflow.Extent.Size)
			buf.PutU64(img, off+8, uint64(it.Overflow.Ref))
			off += 16
		} else {
			img[off] = flagInline
			off++
			buf.PutU32(img, off, uint32(len(it.Value)))
			off += 4
			off += copy(img[off:], it.Value)
		}
	}
	return img
}

// DecodeImage parses an image produced by EncodeImage. Overflow values
// come back as references only; callers read their bytes through the
// block manager when needed.
func DecodeImage(img []byte) (track.PageID, []Item, error) {
	if !buf.Has(img, 0, imageHeaderLen) {
		return 0, nil, errors.Wrap(ErrBadImage, "short header")
	}
	if buf.U32(img, 0) != imageMagic {
		return 0, nil, errors.Wrap(ErrBadImage, "bad magic")
	}
	id := track.PageID(buf.U64(img, 4))
	count := int(buf.U32(img, 12))

	items := make([]Item, 0, count)
	off := imageHeaderLen
	for i := 0; i < count; i++ {
		if !buf.Has(img, off, 4) {
			return 0, nil, errors.Wrapf(ErrBadImage, "item %d: truncated key length", i)
		}
		klen := int(buf.U32(img, off))
		off += 4
		key, ok := buf.Slice(img, off, klen)
		if !ok {
			return 0, nil, errors.Wrapf(ErrBadImage, "item %d: truncated key", i)
		}
		off += klen

		if !buf.Has(img, off, 1) {
			return 0, nil, errors.Wrapf(ErrBadImage, "item %d: truncated flag", i)
		}
		flag := img[off]
		off++

		it := Item{Key: append([]byte(nil), key...)}
		switch flag {
		case flagInline:
			if !buf.Has(img, off, 4) {
				return 0, nil, errors.Wrapf(ErrBadImage, "item %d: truncated value length", i)
			}
			vlen := int(buf.U32(img, off))
			off += 4
			value, ok := buf.Slice(img, off, vlen)
			if !ok {
				return 0, nil, errors.Wrapf(ErrBadImage, "item %d: truncated value", i)
			}
			off += vlen
			it.Value = append([]byte(nil), value...)
		case flagOverflow:
			if !buf.Has(img, off, 16) {
				return 0, nil, errors.Wrapf(ErrBadImage, "item %d: truncated overflow reference", i)
			}
			it.Overflow = &OverflowRef{
				Ref: track.RefID(buf.U64(img, off+8)),
				Extent: block.Extent{
					Addr: block.Addr(buf.U32(img, off)),
					Size: buf.U32(img, off+4),
				},
			}
			off += 16
		default:
			return 0, nil, errors.Wrapf(ErrBadImage, "item %d: unknown flag %d", i, flag)
		}
		items = append(items, it)
	}
	return id, items, nil
}
