// Package lruk implements the LRU-K replacement policy used by the buffer
// pool: the victim frame is the unpinned frame with the largest backward
// K-distance (its most recent access timestamp minus its K-th most recent
// one), with frames that
// have fewer than K recorded accesses losing to the one with the oldest
// last access.
package lruk

// AccessType tags why a frame was touched. It is recorded for future
// policy tuning but does not currently affect victim selection.
type AccessType int

const (
	Get AccessType = iota
	Scan
)

type node struct {
	history []uint64
}

func (n *node) kDistance(k int) (uint64, bool) {
	if len(n.history) < k {
		return 0, false
	}
	last := n.history[len(n.history)-1]
	kth := n.history[len(n.history)-k]
	return last - kth, true
}

// Replacer tracks per-frame access history for any frame id it has seen
// an access for, and selects eviction victims among unpinned frames. It does not track
// pin state itself — the caller (the buffer pool) is the authority on
// which frames are pinned and tells Evict so via a predicate, avoiding a
// second, independently-mutated pin counter that could drift from the
// buffer pool's own.
//
// Replacer is not safe for concurrent use; callers are expected to
// serialize access with their own lock.
type Replacer struct {
	k     int
	clock uint64
	nodes map[int]*node
}

// New creates a replacer with history depth k. k must be >= 1.
func New(k int) *Replacer {
	if k < 1 {
		k = 1
	}
	return &Replacer{k: k, nodes: make(map[int]*node)}
}

// RecordAccess appends the current logical timestamp to frame's history,
// creating the frame's entry if this is its first access, and advances the
// clock.
func (r *Replacer) RecordAccess(frame int, _ AccessType) {
	n, ok := r.nodes[frame]
	if !ok {
		n = &node{}
		r.nodes[frame] = n
	}
	n.history = append(n.history, r.clock)
	r.clock++
}

// Remove drops frame's history entirely, e.g. when it is disassociated
// from its page.
func (r *Replacer) Remove(frame int) {
	delete(r.nodes, frame)
}

// Evict selects a victim frame among the frames with a recorded history
// for which isPinned reports false, per the K-distance algorithm:
//
//  1. Among frames with at least K samples, pick the one with the largest
//     K-distance (most recent access minus K-th most recent).
//  2. If none have K samples yet, pick among those with fewer samples the
//     one with the earliest last access.
//  3. If no unpinned frame has any history, ok is false.
//
// Ties are broken by the lowest frame id, so selection is deterministic.
func (r *Replacer) Evict(isPinned func(frame int) bool) (frame int, ok bool) {
	bestDist := uint64(0)
	bestFrame := -1

	earliestTS := uint64(0)
	earliestFrame := -1
	haveEarliest := false

	for id, n := range r.nodes {
		if len(n.history) == 0 || isPinned(id) {
			continue
		}
		if d, full := n.kDistance(r.k); full {
			if bestFrame == -1 || d > bestDist || (d == bestDist && id < bestFrame) {
				bestDist = d
				bestFrame = id
			}
			continue
		}
		last := n.history[len(n.history)-1]
		if !haveEarliest || last < earliestTS || (last == earliestTS && id < earliestFrame) {
			earliestTS = last
			earliestFrame = id
			haveEarliest = true
		}
	}

	if bestFrame != -1 {
		return bestFrame, true
	}
	if haveEarliest {
		return earliestFrame, true
	}
	return 0, false
}

// Size returns the number of frames currently tracked.
func (r *Replacer) Size() int { return len(r.nodes) }
