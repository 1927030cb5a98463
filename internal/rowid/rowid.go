// Package rowid defines the row identifier shared by the table heap and any
// index built over it, kept standalone so neither package must import the
// other just to name a value type.
package rowid

import (
	"github.com/tuannm99/coredb/internal/storage"
	"github.com/tuannm99/coredb/pkg/bx"
)

// Size is the fixed on-disk encoding width of a RowID: a PageId plus a slot
// number.
const Size = 6

// RowID locates a tuple: the page it lives on and its slot within that
// page's slot directory.
type RowID struct {
	PageID storage.PageID
	Slot   uint16
}

// Encode writes r into buf[:Size].
func (r RowID) Encode(buf []byte) {
	bx.PutU32(buf[0:4], uint32(r.PageID))
	bx.PutU16(buf[4:6], r.Slot)
}

// Decode reads a RowID out of buf[:Size].
func Decode(buf []byte) RowID {
	return RowID{
		PageID: storage.PageID(bx.U32(buf[0:4])),
		Slot:   bx.U16(buf[4:6]),
	}
}
