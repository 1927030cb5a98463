// Package heap implements the table heap: row storage on slotted pages,
// fetched and pinned through the shared page cache. A HeapPage pairs a
// cache-owned page buffer with a schema so callers operate on row values
// rather than raw bytes.
package heap

import (
	"github.com/tuannm99/coredb/internal/record"
	"github.com/tuannm99/coredb/internal/storage"
)

// HeapPage wraps a page buffer with a schema so rows can be inserted and
// read as []any rather than raw bytes.
type HeapPage struct {
	Pg     *storage.Page
	Schema record.Schema
}

func NewHeapPage(p *storage.Page, s record.Schema) HeapPage {
	return HeapPage{Pg: p, Schema: s}
}

func (hp *HeapPage) InsertRow(values []any) (int, error) {
	data, err := record.EncodeRow(hp.Schema, values)
	if err != nil {
		return -1, err
	}
	return hp.Pg.InsertTuple(data)
}

func (hp *HeapPage) ReadRow(slot int) ([]any, error) {
	data, err := hp.Pg.ReadTuple(slot)
	if err != nil {
		return nil, err
	}
	return record.DecodeRow(hp.Schema, data)
}
