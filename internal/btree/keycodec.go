package btree

import "github.com/tuannm99/coredb/pkg/bx"

// KeyCodec serializes a fixed-width key type to/from the bytes stored in a
// node slot. Size must be constant for a given codec instance: it
// determines the tree's per-page slot capacity at construction time.
type KeyCodec[K any] interface {
	Size() int
	Encode(k K, buf []byte)
	Decode(buf []byte) K
}

// Int64KeyCodec encodes int64 keys as 8-byte big-endian integers, offset so
// that byte order matches numeric order for negative values too.
type Int64KeyCodec struct{}

func (Int64KeyCodec) Size() int { return 8 }

func (Int64KeyCodec) Encode(k int64, buf []byte) {
	bx.PutU64(buf, uint64(k)^signBit)
}

func (Int64KeyCodec) Decode(buf []byte) int64 {
	return int64(bx.U64(buf) ^ signBit)
}

const signBit = uint64(1) << 63

// CompositeKeyCodec encodes a CompositeKey into a fixed-width slot of
// width bytes, right-padding with zeros (and truncating on encode, which
// should never happen if the row codec respects the schema's declared key
// width). A fixed width is required because slot sizes are fixed per page.
type CompositeKeyCodec struct {
	Width int
}

func (c CompositeKeyCodec) Size() int { return c.Width }

func (c CompositeKeyCodec) Encode(k CompositeKey, buf []byte) {
	n := copy(buf, k)
	for i := n; i < c.Width; i++ {
		buf[i] = 0
	}
}

func (c CompositeKeyCodec) Decode(buf []byte) CompositeKey {
	out := make(CompositeKey, len(buf))
	copy(out, buf)
	return out
}
