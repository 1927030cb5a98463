// Package storage implements the disk provider (file-backed and in-memory)
// and the two page formats built on top of it: the generic fixed-size page
// buffer that both the btree and the heap interpret, and the slotted-page
// layout used by the heap for variable-length rows.
package storage

import (
	"errors"

	"github.com/tuannm99/coredb/pkg/bx"
)

// PageSize is the fixed size of every page, on disk and in the buffer
// pool's frames.
const PageSize = 4096

// PageID identifies a page in backing storage. InvalidPageID ("-1",
// encoded on disk as all-ones) means "no page".
type PageID int32

const InvalidPageID PageID = -1

func (id PageID) Valid() bool { return id != InvalidPageID }

const (
	pageHeaderSize = 8 // pageID(4) | lower(2) | upper(2)
	// SlotSize is the size in bytes of one slot-array entry:
	// offset(2) | length(2) | flags(1) | pad(1).
	SlotSize = 6

	slotFlagDeleted = 1
)

var (
	ErrNoSpace = errors.New("storage: page has no room for tuple")
	ErrBadSlot = errors.New("storage: slot is out of range or deleted")
)

// Page is a thin, non-owning view over a slotted page buffer (typically a
// buffer-pool frame's bytes). Layout:
//
//	[ pageID(4) | lower(2) | upper(2) ]   fixed header
//	[ slot array, grows upward from the header   ]
//	[ free space                                 ]
//	[ tuple bytes, grow downward from PageSize    ]
//
// This is the heap's row format; the btree's node format (see the btree
// package) is encoded directly into frame bytes and does not use this type.
type Page struct {
	Buf []byte
}

// NewPage wraps buf (which must be exactly PageSize bytes) as a page,
// initializing it if it looks uninitialized.
func NewPage(buf []byte, id PageID) *Page {
	p := &Page{Buf: buf}
	if p.isUninitialized() {
		p.Reset(id)
	}
	return p
}

func (p *Page) isUninitialized() bool {
	return bx.U16(p.Buf[4:6]) == 0 && bx.U16(p.Buf[6:8]) == 0
}

// Reset reinitializes the page as empty and owned by id, discarding any
// prior contents.
func (p *Page) Reset(id PageID) {
	for i := range p.Buf {
		p.Buf[i] = 0
	}
	bx.PutU32(p.Buf[0:4], uint32(id))
	bx.PutU16(p.Buf[4:6], uint16(pageHeaderSize))
	bx.PutU16(p.Buf[6:8], uint16(PageSize))
}

func (p *Page) PageID() PageID { return PageID(bx.U32(p.Buf[0:4])) }

func (p *Page) lower() int      { return int(bx.U16(p.Buf[4:6])) }
func (p *Page) setLower(v int)  { bx.PutU16(p.Buf[4:6], uint16(v)) }
func (p *Page) upper() int      { return int(bx.U16(p.Buf[6:8])) }
func (p *Page) setUpper(v int)  { bx.PutU16(p.Buf[6:8], uint16(v)) }

// NumSlots returns the number of slot-array entries, including deleted
// ones (their indices remain reserved, per the slotted-page convention).
func (p *Page) NumSlots() int {
	return (p.lower() - pageHeaderSize) / SlotSize
}

func (p *Page) slotOffset(i int) int { return pageHeaderSize + i*SlotSize }

func (p *Page) getSlot(i int) (offset, length int, flags byte) {
	o := p.slotOffset(i)
	return int(bx.U16(p.Buf[o : o+2])), int(bx.U16(p.Buf[o+2 : o+4])), p.Buf[o+4]
}

func (p *Page) putSlot(i, offset, length int, flags byte) {
	o := p.slotOffset(i)
	bx.PutU16(p.Buf[o:o+2], uint16(offset))
	bx.PutU16(p.Buf[o+2:o+4], uint16(length))
	p.Buf[o+4] = flags
}

// InsertTuple appends data as a new tuple, returning its slot index.
func (p *Page) InsertTuple(data []byte) (slot int, err error) {
	need := len(data) + SlotSize
	if p.upper()-p.lower() < need {
		return -1, ErrNoSpace
	}
	newUpper := p.upper() - len(data)
	copy(p.Buf[newUpper:], data)
	p.setUpper(newUpper)

	slot = p.NumSlots()
	p.putSlot(slot, newUpper, len(data), 0)
	p.setLower(p.lower() + SlotSize)
	return slot, nil
}

// ReadTuple returns the bytes stored at slot. The returned slice aliases
// the page buffer and must be copied before the page is reused.
func (p *Page) ReadTuple(slot int) ([]byte, error) {
	if slot < 0 || slot >= p.NumSlots() {
		return nil, ErrBadSlot
	}
	offset, length, flags := p.getSlot(slot)
	if flags&slotFlagDeleted != 0 {
		return nil, ErrBadSlot
	}
	return p.Buf[offset : offset+length], nil
}

// UpdateTuple replaces the tuple at slot. If the new value is larger than
// the original, it is relocated within the page (failing with ErrNoSpace
// if there is no room).
func (p *Page) UpdateTuple(slot int, data []byte) error {
	if slot < 0 || slot >= p.NumSlots() {
		return ErrBadSlot
	}
	offset, length, flags := p.getSlot(slot)
	if flags&slotFlagDeleted != 0 {
		return ErrBadSlot
	}
	if len(data) <= length {
		copy(p.Buf[offset:], data)
		p.putSlot(slot, offset, len(data), flags)
		return nil
	}
	if p.upper()-p.lower() < len(data) {
		return ErrNoSpace
	}
	newUpper := p.upper() - len(data)
	copy(p.Buf[newUpper:], data)
	p.setUpper(newUpper)
	p.putSlot(slot, newUpper, len(data), flags)
	return nil
}

// DeleteTuple tombstones slot; the slot index remains reserved.
func (p *Page) DeleteTuple(slot int) error {
	if slot < 0 || slot >= p.NumSlots() {
		return ErrBadSlot
	}
	offset, length, _ := p.getSlot(slot)
	p.putSlot(slot, offset, length, slotFlagDeleted)
	return nil
}
