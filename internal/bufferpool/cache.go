// Package bufferpool implements the page cache (buffer pool): it maps page
// ids to in-memory frames, pins frames against eviction, enforces
// reader/writer access per page via the frame's lock, and flushes dirty
// frames to the disk provider. Victim selection on a full pool is
// delegated to a Replacer (see replacer.go), backed by LRU-K (pkg/lruk).
package bufferpool

import (
	"log/slog"
	"sync"

	"github.com/tuannm99/coredb/internal/storage"
)

// DefaultK is the LRU-K history depth used when callers don't need to tune
// it.
const DefaultK = 2

// Cache is a fixed-size buffer pool bound to one DiskManager.
type Cache struct {
	mu sync.Mutex

	disk     storage.DiskManager
	replacer Replacer

	frames    []*Frame
	pageTable map[storage.PageID]FrameID
	freeList  []FrameID
}

// NewCache creates a cache with numFrames frames, backed by disk, using an
// LRU-K replacer with history depth k.
func NewCache(disk storage.DiskManager, numFrames, k int) *Cache {
	if numFrames <= 0 {
		numFrames = 1
	}
	if k <= 0 {
		k = DefaultK
	}

	frames := make([]*Frame, numFrames)
	free := make([]FrameID, numFrames)
	for i := range frames {
		frames[i] = newFrame(FrameID(i))
		free[i] = FrameID(i)
	}

	return &Cache{
		disk:      disk,
		replacer:  newLRUKReplacer(k),
		frames:    frames,
		pageTable: make(map[storage.PageID]FrameID),
		freeList:  free,
	}
}

// acquireFrame returns a frame to repurpose for a new page: a never-used
// frame if one is free, otherwise an eviction victim (flushing it first if
// dirty). A victim's previous page is removed from pageTable and its
// replacer history dropped; callers install the new page's mapping
// themselves.
func (c *Cache) acquireFrame() (*Frame, error) {
	if n := len(c.freeList); n > 0 {
		id := c.freeList[n-1]
		c.freeList = c.freeList[:n-1]
		return c.frames[id], nil
	}

	victimID, ok := c.replacer.Evict(func(id FrameID) bool { return c.frames[id].pinCount > 0 })
	if !ok {
		return nil, ErrNoFreeFrame
	}
	victim := c.frames[victimID]

	if victim.dirty {
		if err := c.disk.WritePage(victim.pageID, victim.Data); err != nil {
			return nil, err
		}
		victim.dirty = false
	}

	delete(c.pageTable, victim.pageID)
	c.replacer.Remove(victimID)
	return victim, nil
}

func (c *Cache) pinLocked(f *Frame) {
	f.pinCount++
}

// NewPage allocates a fresh page id via the disk provider, installs it in
// a frame (free-list first, then eviction), zeroes the buffer, and returns
// a pinned handle.
func (c *Cache) NewPage() (*PinnedPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := c.acquireFrame()
	if err != nil {
		return nil, err
	}

	id, err := c.disk.AllocatePage()
	if err != nil {
		c.freeList = append(c.freeList, f.id)
		return nil, err
	}

	f.bytesMu.Lock()
	for i := range f.Data {
		f.Data[i] = 0
	}
	f.bytesMu.Unlock()

	f.pageID = id
	f.occupied = true
	f.dirty = false
	f.pinCount = 0

	c.pageTable[id] = f.id
	c.pinLocked(f)
	c.replacer.RecordAccess(f.id, AccessGet)

	slog.Debug("bufferpool.NewPage", "pageID", id, "frameID", f.id)
	return &PinnedPage{cache: c, frame: f}, nil
}

// FetchPage pins and returns the page, loading it from disk first if it is
// not already resident.
func (c *Cache) FetchPage(id storage.PageID) (*PinnedPage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if frameID, ok := c.pageTable[id]; ok {
		f := c.frames[frameID]
		c.pinLocked(f)
		c.replacer.RecordAccess(f.id, AccessGet)
		slog.Debug("bufferpool.FetchPage.hit", "pageID", id, "frameID", f.id)
		return &PinnedPage{cache: c, frame: f}, nil
	}

	f, err := c.acquireFrame()
	if err != nil {
		return nil, err
	}

	f.bytesMu.Lock()
	readErr := c.disk.ReadPage(id, f.Data)
	f.bytesMu.Unlock()
	if readErr != nil {
		c.freeList = append(c.freeList, f.id)
		return nil, readErr
	}

	f.pageID = id
	f.occupied = true
	f.dirty = false
	f.pinCount = 0

	c.pageTable[id] = f.id
	c.pinLocked(f)
	c.replacer.RecordAccess(f.id, AccessGet)

	slog.Debug("bufferpool.FetchPage.miss", "pageID", id, "frameID", f.id)
	return &PinnedPage{cache: c, frame: f}, nil
}

// unpin decrements a frame's pin count; once it reaches zero the frame
// becomes a candidate for Evict again (pinCount is consulted directly,
// not mirrored into the replacer). dirty, if true, marks the frame dirty
// (OR'd with its current state); WriteGuard.Release already does this, so
// most callers pass false here and rely on the guard.
func (c *Cache) unpin(f *Frame, dirty bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if dirty {
		f.dirty = true
	}
	if f.pinCount > 0 {
		f.pinCount--
	}
}

// FlushPage writes the page's bytes back to disk if resident and dirty.
func (c *Cache) FlushPage(id storage.PageID) error {
	c.mu.Lock()
	frameID, ok := c.pageTable[id]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	f := c.frames[frameID]
	c.mu.Unlock()

	f.bytesMu.RLock()
	defer f.bytesMu.RUnlock()

	c.mu.Lock()
	dirty := f.dirty
	c.mu.Unlock()
	if !dirty {
		return nil
	}

	if err := c.disk.WritePage(id, f.Data); err != nil {
		return err
	}

	c.mu.Lock()
	f.dirty = false
	c.mu.Unlock()
	return nil
}

// FlushAllPages writes every dirty resident page back to disk.
func (c *Cache) FlushAllPages() error {
	c.mu.Lock()
	ids := make([]storage.PageID, 0, len(c.pageTable))
	for id := range c.pageTable {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	for _, id := range ids {
		if err := c.FlushPage(id); err != nil {
			return err
		}
	}
	return nil
}
