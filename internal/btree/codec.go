package btree

import (
	"github.com/tuannm99/coredb/internal/storage"
	"github.com/tuannm99/coredb/pkg/bx"
)

// Node kinds, stored as the header's first byte.
const (
	kindLeaf     byte = 0
	kindInternal byte = 1
)

// Per-slot flag byte: 0 for a value slot (leaf), 1 for a pointer slot
// (internal). Retained per slot even though a node is homogeneous, per the
// node format's forward-compatibility note.
const (
	flagValue   byte = 0
	flagPointer byte = 1
)

// header layout: kind(1) | is_root(1) | id(4) | count(4) | next(4) | max(4)
const headerSize = 1 + 1 + 4 + 4 + 4 + 4

type header struct {
	kind    byte
	isRoot  bool
	id      storage.PageID
	count   int32
	next    storage.PageID // leaves only; InvalidPageID for internal nodes
	maxSlot int32
}

func encodeHeader(buf []byte, h header) {
	buf[0] = h.kind
	if h.isRoot {
		buf[1] = 1
	} else {
		buf[1] = 0
	}
	bx.PutI32(buf[2:6], int32(h.id))
	bx.PutI32(buf[6:10], h.count)
	bx.PutI32(buf[10:14], int32(h.next))
	bx.PutI32(buf[14:18], h.maxSlot)
}

func decodeHeader(buf []byte) (header, error) {
	if len(buf) < headerSize {
		return header{}, ErrCorruptPage
	}
	kind := buf[0]
	if kind != kindLeaf && kind != kindInternal {
		return header{}, ErrCorruptPage
	}
	h := header{
		kind:    kind,
		isRoot:  buf[1] != 0,
		id:      storage.PageID(bx.I32(buf[2:6])),
		count:   bx.I32(buf[6:10]),
		next:    storage.PageID(bx.I32(buf[10:14])),
		maxSlot: bx.I32(buf[14:18]),
	}
	if h.count < 0 || h.count > h.maxSlot {
		return header{}, ErrCorruptPage
	}
	return h, nil
}

// slotSize returns the encoded width of one slot given a key width and a
// value-or-pointer width.
func slotSize(keySize, valSize int) int { return keySize + 1 + valSize }

// capacity returns how many slots of the given size fit in a page after
// the header, leaving room for the "almost full" reservation is the tree's
// concern, not the codec's.
func capacity(pageSize, keySize, valSize int) int {
	avail := pageSize - headerSize
	ss := slotSize(keySize, valSize)
	if ss <= 0 {
		return 0
	}
	return avail / ss
}
