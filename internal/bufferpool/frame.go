package bufferpool

import (
	"sync"

	"github.com/tuannm99/coredb/internal/storage"
)

// FrameID is a 0-based index into the cache's frame array.
type FrameID int

// Frame is an in-memory slot holding one page's bytes plus metadata. bytesMu
// guards Data; every other field is owned by the Cache and must only be
// touched while holding Cache.mu.
type Frame struct {
	id      FrameID
	bytesMu sync.RWMutex
	Data    []byte

	pageID   storage.PageID
	occupied bool
	dirty    bool
	pinCount int32
}

func newFrame(id FrameID) *Frame {
	return &Frame{id: id, Data: make([]byte, storage.PageSize), pageID: storage.InvalidPageID}
}
