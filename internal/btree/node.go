package btree

import (
	"github.com/tuannm99/coredb/internal/storage"
	"github.com/tuannm99/coredb/pkg/bx"
)

// LeafEntry is a decoded (key, value) slot of a leaf node.
type LeafEntry[K, V any] struct {
	Key   K
	Value V
}

// InternalEntry is a decoded (separator key, child page) slot of an
// internal node. Key is an inclusive upper bound on every key reachable
// through Child.
type InternalEntry[K any] struct {
	Key   K
	Child storage.PageID
}

// LeafNode is a decode/encode view over one page's bytes, interpreted as a
// leaf. It holds no state of its own beyond the codecs; the page bytes are
// the only authoritative storage.
type LeafNode[K, V any] struct {
	buf  []byte
	kc   KeyCodec[K]
	vc   ValueCodec[V]
	ksz  int
	vsz  int
}

func newLeafNode[K, V any](buf []byte, kc KeyCodec[K], vc ValueCodec[V]) *LeafNode[K, V] {
	return &LeafNode[K, V]{buf: buf, kc: kc, vc: vc, ksz: kc.Size(), vsz: vc.Size()}
}

func (n *LeafNode[K, V]) slotSize() int { return slotSize(n.ksz, n.vsz) }

// Header decodes the node's header. It fails with ErrCorruptPage if the
// kind byte doesn't say "leaf".
func (n *LeafNode[K, V]) Header() (header, error) {
	h, err := decodeHeader(n.buf)
	if err != nil {
		return header{}, err
	}
	if h.kind != kindLeaf {
		return header{}, ErrCorruptPage
	}
	return h, nil
}

// Entries decodes every slot in order.
func (n *LeafNode[K, V]) Entries() ([]LeafEntry[K, V], error) {
	h, err := n.Header()
	if err != nil {
		return nil, err
	}
	ss := n.slotSize()
	out := make([]LeafEntry[K, V], 0, h.count)
	off := headerSize
	for i := int32(0); i < h.count; i++ {
		if off+ss > len(n.buf) {
			return nil, ErrCorruptPage
		}
		slot := n.buf[off : off+ss]
		if slot[n.ksz] != flagValue {
			return nil, ErrCorruptPage
		}
		out = append(out, LeafEntry[K, V]{
			Key:   n.kc.Decode(slot[:n.ksz]),
			Value: n.vc.Decode(slot[n.ksz+1:]),
		})
		off += ss
	}
	return out, nil
}

// Rebuild zeroes the page and re-encodes it from entries, which the caller
// must have already sorted and deduplicated by key. entries must not
// exceed maxSlot.
func (n *LeafNode[K, V]) Rebuild(entries []LeafEntry[K, V], id, next storage.PageID, isRoot bool, maxSlot int32) error {
	if int32(len(entries)) > maxSlot {
		return ErrCorruptPage
	}
	for i := range n.buf {
		n.buf[i] = 0
	}
	encodeHeader(n.buf, header{
		kind: kindLeaf, isRoot: isRoot, id: id,
		count: int32(len(entries)), next: next, maxSlot: maxSlot,
	})
	ss := n.slotSize()
	off := headerSize
	for _, e := range entries {
		slot := n.buf[off : off+ss]
		n.kc.Encode(e.Key, slot[:n.ksz])
		slot[n.ksz] = flagValue
		n.vc.Encode(e.Value, slot[n.ksz+1:])
		off += ss
	}
	return nil
}

// InternalNode is a decode/encode view over one page's bytes, interpreted
// as an internal node. Its value side is always a 4-byte big-endian
// storage.PageID, never routed through a ValueCodec.
type InternalNode[K any] struct {
	buf []byte
	kc  KeyCodec[K]
	ksz int
}

func newInternalNode[K any](buf []byte, kc KeyCodec[K]) *InternalNode[K] {
	return &InternalNode[K]{buf: buf, kc: kc, ksz: kc.Size()}
}

const ptrSize = 4

func (n *InternalNode[K]) slotSize() int { return slotSize(n.ksz, ptrSize) }

func (n *InternalNode[K]) Header() (header, error) {
	h, err := decodeHeader(n.buf)
	if err != nil {
		return header{}, err
	}
	if h.kind != kindInternal {
		return header{}, ErrCorruptPage
	}
	return h, nil
}

func (n *InternalNode[K]) Entries() ([]InternalEntry[K], error) {
	h, err := n.Header()
	if err != nil {
		return nil, err
	}
	ss := n.slotSize()
	out := make([]InternalEntry[K], 0, h.count)
	off := headerSize
	for i := int32(0); i < h.count; i++ {
		if off+ss > len(n.buf) {
			return nil, ErrCorruptPage
		}
		slot := n.buf[off : off+ss]
		if slot[n.ksz] != flagPointer {
			return nil, ErrCorruptPage
		}
		child := storage.PageID(bx.I32(slot[n.ksz+1:]))
		out = append(out, InternalEntry[K]{
			Key:   n.kc.Decode(slot[:n.ksz]),
			Child: child,
		})
		off += ss
	}
	return out, nil
}

func (n *InternalNode[K]) Rebuild(entries []InternalEntry[K], id storage.PageID, isRoot bool, maxSlot int32) error {
	if int32(len(entries)) > maxSlot {
		return ErrCorruptPage
	}
	for i := range n.buf {
		n.buf[i] = 0
	}
	encodeHeader(n.buf, header{
		kind: kindInternal, isRoot: isRoot, id: id,
		count: int32(len(entries)), next: storage.InvalidPageID, maxSlot: maxSlot,
	})
	ss := n.slotSize()
	off := headerSize
	for _, e := range entries {
		slot := n.buf[off : off+ss]
		n.kc.Encode(e.Key, slot[:n.ksz])
		slot[n.ksz] = flagPointer
		bx.PutI32(slot[n.ksz+1:], int32(e.Child))
		off += ss
	}
	return nil
}
