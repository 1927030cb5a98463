package btree

import (
	"github.com/tuannm99/coredb/internal/rowid"
	"github.com/tuannm99/coredb/pkg/bx"
)

// ValueCodec serializes a fixed-width leaf value. Like KeyCodec, Size must
// be constant for a given instance.
type ValueCodec[V any] interface {
	Size() int
	Encode(v V, buf []byte)
	Decode(buf []byte) V
}

// RowIDValueCodec stores a rowid.RowID as a leaf's value: the common case
// of an index over a table heap.
type RowIDValueCodec struct{}

func (RowIDValueCodec) Size() int { return rowid.Size }

func (RowIDValueCodec) Encode(v rowid.RowID, buf []byte) { v.Encode(buf) }

func (RowIDValueCodec) Decode(buf []byte) rowid.RowID { return rowid.Decode(buf) }

// Int64ValueCodec stores a plain int64 as a leaf's value, used by tests and
// by trees that index a scalar directly rather than a row id.
type Int64ValueCodec struct{}

func (Int64ValueCodec) Size() int { return 8 }

func (Int64ValueCodec) Encode(v int64, buf []byte) { bx.PutU64(buf, uint64(v)) }

func (Int64ValueCodec) Decode(buf []byte) int64 { return int64(bx.U64(buf)) }
