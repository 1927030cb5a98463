package bufferpool

import "errors"

var (
	// ErrNoFreeFrame is returned when no unpinned frame is available for
	// replacement: every frame is currently pinned.
	ErrNoFreeFrame = errors.New("bufferpool: no free frame available (all pinned)")
)
