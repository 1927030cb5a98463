package heap

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tuannm99/coredb/internal/bufferpool"
	"github.com/tuannm99/coredb/internal/record"
	"github.com/tuannm99/coredb/internal/rowid"
	"github.com/tuannm99/coredb/internal/storage"
)

var ErrTableClosed = errors.New("heap: table is closed")

// Table is a heap file: an unordered, append-mostly collection of rows on
// slotted pages, addressed by rowid.RowID. It owns no pages directly —
// every access goes through the shared page cache.
type Table struct {
	Name   string
	Schema record.Schema
	Cache  *bufferpool.Cache

	mu        sync.Mutex
	pageCount uint32

	closed atomic.Bool
}

// NewTable creates a table over an existing or brand-new set of pages.
// pageCount is the number of pages already allocated for this table
// (0 for a brand-new table).
func NewTable(name string, schema record.Schema, cache *bufferpool.Cache, pageCount uint32) *Table {
	return &Table{Name: name, Schema: schema, Cache: cache, pageCount: pageCount}
}

func (t *Table) ensureOpen() error {
	if t.closed.Load() {
		return ErrTableClosed
	}
	return nil
}

// PageCount returns the number of pages currently allocated to this
// table.
func (t *Table) PageCount() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pageCount
}

// Insert appends a row, allocating a new page via the cache whenever the
// last page has no room.
func (t *Table) Insert(values []any) (rowid.RowID, error) {
	if err := t.ensureOpen(); err != nil {
		return rowid.RowID{}, err
	}

	data, err := record.EncodeRow(t.Schema, values)
	if err != nil {
		return rowid.RowID{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pageCount == 0 {
		pp, err := t.Cache.NewPage()
		if err != nil {
			return rowid.RowID{}, err
		}
		w := pp.Write()
		storage.NewPage(w.Bytes(), pp.PageID())
		w.Release()
		pp.Unpin(true)
		t.pageCount = 1
	}

	for {
		pageID := storage.PageID(t.pageCount - 1)
		pp, err := t.Cache.FetchPage(pageID)
		if err != nil {
			return rowid.RowID{}, err
		}
		w := pp.Write()
		page := storage.NewPage(w.Bytes(), pageID)
		slot, err := page.InsertTuple(data)
		if errors.Is(err, storage.ErrNoSpace) {
			w.Release()
			pp.Unpin(false)

			newPP, err := t.Cache.NewPage()
			if err != nil {
				return rowid.RowID{}, err
			}
			nw := newPP.Write()
			storage.NewPage(nw.Bytes(), newPP.PageID())
			nw.Release()
			newPP.Unpin(true)
			t.pageCount++
			continue
		}
		if err != nil {
			w.Release()
			pp.Unpin(false)
			return rowid.RowID{}, err
		}

		w.Release()
		pp.Unpin(true)
		slog.Debug("heap.Insert", "table", t.Name, "pageID", pageID, "slot", slot)
		return rowid.RowID{PageID: pageID, Slot: uint16(slot)}, nil
	}
}

// Get reads a single row by its RowID.
func (t *Table) Get(id rowid.RowID) ([]any, error) {
	if err := t.ensureOpen(); err != nil {
		return nil, err
	}
	pp, err := t.Cache.FetchPage(id.PageID)
	if err != nil {
		return nil, err
	}
	r := pp.Read()
	page := storage.NewPage(r.Bytes(), id.PageID)
	raw, err := page.ReadTuple(int(id.Slot))
	r.Release()
	pp.Unpin(false)
	if err != nil {
		return nil, err
	}
	return record.DecodeRow(t.Schema, raw)
}

// Update overwrites the row at id in place (relocating within the page if
// the new encoding grew).
func (t *Table) Update(id rowid.RowID, values []any) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	data, err := record.EncodeRow(t.Schema, values)
	if err != nil {
		return err
	}
	pp, err := t.Cache.FetchPage(id.PageID)
	if err != nil {
		return err
	}
	w := pp.Write()
	page := storage.NewPage(w.Bytes(), id.PageID)
	err = page.UpdateTuple(int(id.Slot), data)
	w.Release()
	pp.Unpin(err == nil)
	return err
}

// Delete tombstones the row at id.
func (t *Table) Delete(id rowid.RowID) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	pp, err := t.Cache.FetchPage(id.PageID)
	if err != nil {
		return err
	}
	w := pp.Write()
	page := storage.NewPage(w.Bytes(), id.PageID)
	err = page.DeleteTuple(int(id.Slot))
	w.Release()
	pp.Unpin(err == nil)
	return err
}

// Scan visits every live (non-deleted) row in page/slot order. fn
// returning an error stops the scan and propagates it.
func (t *Table) Scan(fn func(id rowid.RowID, row []any) error) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	pageCount := t.PageCount()

	for i := uint32(0); i < pageCount; i++ {
		pageID := storage.PageID(i)
		pp, err := t.Cache.FetchPage(pageID)
		if err != nil {
			return err
		}
		r := pp.Read()
		page := storage.NewPage(r.Bytes(), pageID)
		numSlots := page.NumSlots()

		for slot := 0; slot < numSlots; slot++ {
			raw, err := page.ReadTuple(slot)
			if errors.Is(err, storage.ErrBadSlot) {
				continue
			}
			if err != nil {
				r.Release()
				pp.Unpin(false)
				return err
			}
			row, err := record.DecodeRow(t.Schema, raw)
			if err != nil {
				r.Release()
				pp.Unpin(false)
				return err
			}
			if err := fn(rowid.RowID{PageID: pageID, Slot: uint16(slot)}, row); err != nil {
				r.Release()
				pp.Unpin(false)
				return err
			}
		}
		r.Release()
		pp.Unpin(false)
	}
	return nil
}

// Close flushes every dirty page through the cache. Idempotent.
func (t *Table) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.Cache.FlushAllPages()
}
