package bufferpool

import "github.com/tuannm99/coredb/pkg/lruk"

// AccessType tags why a frame was touched; reserved for future policy
// tuning (see pkg/lruk).
type AccessType = lruk.AccessType

const (
	AccessGet  = lruk.Get
	AccessScan = lruk.Scan
)

// Replacer selects a frame to evict among those isPinned reports false
// for. The cache is the only caller, the sole authority on pin state (via
// each Frame's pinCount), and serializes access with its own lock, so
// implementations need not be internally thread-safe or track pinning
// themselves.
type Replacer interface {
	RecordAccess(frame FrameID, kind AccessType)
	Remove(frame FrameID)
	Evict(isPinned func(FrameID) bool) (FrameID, bool)
}

// lrukReplacer adapts pkg/lruk's int-keyed replacer to the cache's
// FrameID-keyed Replacer interface, the same way the teacher's CLOCK
// implementation was kept generic and wrapped by a small adapter.
type lrukReplacer struct {
	r *lruk.Replacer
}

func newLRUKReplacer(k int) Replacer {
	return &lrukReplacer{r: lruk.New(k)}
}

func (a *lrukReplacer) RecordAccess(frame FrameID, kind AccessType) { a.r.RecordAccess(int(frame), kind) }
func (a *lrukReplacer) Remove(frame FrameID)                        { a.r.Remove(int(frame)) }

func (a *lrukReplacer) Evict(isPinned func(FrameID) bool) (FrameID, bool) {
	id, ok := a.r.Evict(func(frame int) bool { return isPinned(FrameID(frame)) })
	return FrameID(id), ok
}
