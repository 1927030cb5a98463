package bufferpool

import "github.com/tuannm99/coredb/internal/storage"

// PinnedPage is an owned reference to a specific frame holding a specific
// page. Its pin must be released exactly once, via Unpin.
type PinnedPage struct {
	cache *Cache
	frame *Frame
}

// PageID returns the id of the page this handle pins.
func (p *PinnedPage) PageID() storage.PageID { return p.frame.pageID }

// Read acquires a read guard over the page's bytes. The guard must be
// released before the pin itself is released.
func (p *PinnedPage) Read() *ReadGuard {
	p.frame.bytesMu.RLock()
	return &ReadGuard{frame: p.frame}
}

// Write acquires a write guard over the page's bytes. Releasing the guard
// marks the frame dirty.
func (p *PinnedPage) Write() *WriteGuard {
	p.frame.bytesMu.Lock()
	return &WriteGuard{cache: p.cache, frame: p.frame}
}

// Unpin releases this handle's pin. dirty marks the frame dirty in
// addition to whatever WriteGuard.Release already did; pure readers pass
// false.
func (p *PinnedPage) Unpin(dirty bool) {
	p.cache.unpin(p.frame, dirty)
}

// ReadGuard is a read lock over a pinned page's bytes.
type ReadGuard struct {
	frame *Frame
}

func (g *ReadGuard) Bytes() []byte { return g.frame.Data }

func (g *ReadGuard) Release() {
	g.frame.bytesMu.RUnlock()
}

// WriteGuard is a write lock over a pinned page's bytes.
type WriteGuard struct {
	cache *Cache
	frame *Frame
}

func (g *WriteGuard) Bytes() []byte { return g.frame.Data }

// Release marks the frame dirty and unlocks its bytes. Any code path that
// acquired a write guard is assumed to have mutated the page.
func (g *WriteGuard) Release() {
	g.cache.mu.Lock()
	g.frame.dirty = true
	g.cache.mu.Unlock()
	g.frame.bytesMu.Unlock()
}
