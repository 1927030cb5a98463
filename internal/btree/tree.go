// Package btree implements the ordered key/value index: point lookup,
// range scan, insert with preemptive node splitting, and delete (the leaf
// slot is removed; nodes are never merged or rebalanced), all operating on
// nodes materialised from bufferpool-cached
// pages. See comparator.go, keycodec.go and valuecodec.go for the
// polymorphism points, and node.go/codec.go for the on-page layout.
package btree

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/tuannm99/coredb/internal/bufferpool"
	"github.com/tuannm99/coredb/internal/storage"
)

// splitResult describes a node that split into two pages during insert:
// the separator pair the parent level must absorb in place of the single
// pointer it used to hold.
type splitResult[K any] struct {
	leftKey  K
	leftID   storage.PageID
	rightKey K
	rightID  storage.PageID
}

// Tree is a generic B+Tree over key type K and value type V, backed by a
// bufferpool.Cache. K and V are only ever touched through the comparator
// and codecs supplied at construction; the tree itself never inspects
// their structure.
type Tree[K, V any] struct {
	cache *bufferpool.Cache
	cmp   KeyComparator[K]
	kc    KeyCodec[K]
	vc    ValueCodec[V]

	maxLeaf int32
	maxInt  int32

	metaPath string

	mu     sync.Mutex
	root   storage.PageID
	height int

	closed atomic.Bool
}

// Open constructs a tree bound to cache. max caps the number of slots a
// node may hold before it splits; pass 0 to use every slot the page has
// room for (capacity(storage.PageSize, kc.Size(), ...)), or a smaller
// value to force splitting well below the page's physical limit — useful
// for exercising split/absorb logic against small trees in tests. The
// same max is applied to leaf and internal nodes, clamped down to
// whichever of the two the page can actually hold if it's set above the
// page-derived ceiling for either.
//
// If metaPath names an existing meta sidecar, the tree resumes at its
// recorded root/height (max only matters for nodes created from here on,
// so it is not persisted); otherwise a fresh single-leaf tree is created
// and, if metaPath is non-empty, its meta is persisted immediately. Pass
// metaPath "" for a purely in-memory tree (tests, or a cache over a
// MemoryDiskManager that isn't meant to survive the process).
func Open[K, V any](cache *bufferpool.Cache, cmp KeyComparator[K], kc KeyCodec[K], vc ValueCodec[V], metaPath string, max int32) (*Tree[K, V], error) {
	pageLeaf := int32(capacity(storage.PageSize, kc.Size(), vc.Size()))
	pageInt := int32(capacity(storage.PageSize, kc.Size(), ptrSize))
	if pageLeaf < 2 || pageInt < 2 {
		return nil, fmt.Errorf("btree: page size %d too small for key size %d", storage.PageSize, kc.Size())
	}

	maxLeaf, maxInt := pageLeaf, pageInt
	if max > 0 {
		if max < pageLeaf {
			maxLeaf = max
		}
		if max < pageInt {
			maxInt = max
		}
	}
	if maxLeaf < 2 || maxInt < 2 {
		return nil, fmt.Errorf("btree: max %d too small to hold a splittable node", max)
	}

	t := &Tree[K, V]{cache: cache, cmp: cmp, kc: kc, vc: vc, maxLeaf: maxLeaf, maxInt: maxInt, metaPath: metaPath}

	if m, ok, err := loadMeta(metaPath); err != nil {
		return nil, err
	} else if ok {
		t.root = m.Root
		t.height = m.Height
		slog.Debug("btree.Open.resumed", "root", t.root, "height", t.height)
		return t, nil
	}

	pp, err := cache.NewPage()
	if err != nil {
		return nil, wrapIOErr(err)
	}
	rootID := pp.PageID()
	w := pp.Write()
	leaf := newLeafNode[K, V](w.Bytes(), kc, vc)
	if err := leaf.Rebuild(nil, rootID, storage.InvalidPageID, true, maxLeaf); err != nil {
		w.Release()
		pp.Unpin(false)
		return nil, err
	}
	w.Release()
	pp.Unpin(true)

	t.root = rootID
	t.height = 1
	if err := saveMeta(metaPath, diskMeta{Root: t.root, Height: t.height}); err != nil {
		slog.Warn("btree.Open.saveMeta", "err", err)
	}
	slog.Debug("btree.Open.created", "root", t.root)
	return t, nil
}

func (t *Tree[K, V]) ensureOpen() error {
	if t.closed.Load() {
		return ErrTreeClosed
	}
	return nil
}

// Close flushes every dirty page through the cache. Idempotent.
func (t *Tree[K, V]) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.cache.FlushAllPages()
}

func wrapIOErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, bufferpool.ErrNoFreeFrame) {
		return ErrOutOfMemory
	}
	return fmt.Errorf("%w: %v", ErrIo, err)
}

// snapshotRoot reads the current root/height under the tree's own lock.
// This is the only latch the tree takes outside of per-page guards; it
// protects the two fields Insert mutates when the root itself splits.
func (t *Tree[K, V]) snapshotRoot() (storage.PageID, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.root, t.height
}

// ---- Insert ----

// Insert inserts or overwrites (key, value). Overwriting an existing key
// leaves tree structure unchanged.
func (t *Tree[K, V]) Insert(key K, value V) error {
	if err := t.ensureOpen(); err != nil {
		return err
	}
	root, height := t.snapshotRoot()

	slog.Debug("btree.Insert", "root", root, "height", height)

	result, err := t.insertAt(root, height, true, key, value)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}

	// The root itself split: build a new internal root one level above
	// the two halves.
	pp, err := t.cache.NewPage()
	if err != nil {
		return wrapIOErr(err)
	}
	newRootID := pp.PageID()
	w := pp.Write()
	newRoot := newInternalNode[K](w.Bytes(), t.kc)
	entries := []InternalEntry[K]{
		{Key: result.leftKey, Child: result.leftID},
		{Key: result.rightKey, Child: result.rightID},
	}
	if err := newRoot.Rebuild(entries, newRootID, true, t.maxInt); err != nil {
		w.Release()
		pp.Unpin(false)
		return err
	}
	w.Release()
	pp.Unpin(true)

	t.mu.Lock()
	t.root = newRootID
	t.height = height + 1
	meta := diskMeta{Root: t.root, Height: t.height}
	t.mu.Unlock()

	if err := saveMeta(t.metaPath, meta); err != nil {
		slog.Warn("btree.Insert.saveMeta", "err", err)
	}
	slog.Debug("btree.Insert.rootSplit", "newRoot", newRootID, "height", t.height)
	return nil
}

func (t *Tree[K, V]) insertAt(pageID storage.PageID, level int, isRoot bool, key K, value V) (*splitResult[K], error) {
	if level == 1 {
		return t.insertLeaf(pageID, isRoot, key, value)
	}
	return t.insertInternal(pageID, level, isRoot, key, value)
}

func (t *Tree[K, V]) insertLeaf(pageID storage.PageID, isRoot bool, key K, value V) (*splitResult[K], error) {
	pp, err := t.cache.FetchPage(pageID)
	if err != nil {
		return nil, wrapIOErr(err)
	}
	w := pp.Write()

	leaf := newLeafNode[K, V](w.Bytes(), t.kc, t.vc)
	h, err := leaf.Header()
	if err != nil {
		w.Release()
		pp.Unpin(false)
		return nil, err
	}
	entries, err := leaf.Entries()
	if err != nil {
		w.Release()
		pp.Unpin(false)
		return nil, err
	}

	if h.count == t.maxLeaf-1 {
		mid := len(entries) / 2
		if mid == 0 {
			mid = 1
		}
		leftEnts := append([]LeafEntry[K, V]{}, entries[:mid]...)
		rightEnts := append([]LeafEntry[K, V]{}, entries[mid:]...)

		if t.cmp.Compare(key, leftEnts[len(leftEnts)-1].Key) > 0 {
			rightEnts = insertLeafEntry(t.cmp, rightEnts, key, value)
		} else {
			leftEnts = insertLeafEntry(t.cmp, leftEnts, key, value)
		}

		rightPP, err := t.cache.NewPage()
		if err != nil {
			w.Release()
			pp.Unpin(false)
			return nil, wrapIOErr(err)
		}
		rightID := rightPP.PageID()
		rw := rightPP.Write()
		rightLeaf := newLeafNode[K, V](rw.Bytes(), t.kc, t.vc)
		if err := rightLeaf.Rebuild(rightEnts, rightID, h.next, false, t.maxLeaf); err != nil {
			rw.Release()
			rightPP.Unpin(false)
			w.Release()
			pp.Unpin(false)
			return nil, err
		}
		rw.Release()
		rightPP.Unpin(true)

		if err := leaf.Rebuild(leftEnts, pageID, rightID, false, t.maxLeaf); err != nil {
			w.Release()
			pp.Unpin(false)
			return nil, err
		}
		w.Release()
		pp.Unpin(true)

		slog.Debug("btree.insertLeaf.split", "left", pageID, "right", rightID)
		return &splitResult[K]{
			leftKey: leftEnts[len(leftEnts)-1].Key, leftID: pageID,
			rightKey: rightEnts[len(rightEnts)-1].Key, rightID: rightID,
		}, nil
	}

	entries = insertLeafEntry(t.cmp, entries, key, value)
	if err := leaf.Rebuild(entries, pageID, h.next, isRoot, t.maxLeaf); err != nil {
		w.Release()
		pp.Unpin(false)
		return nil, err
	}
	w.Release()
	pp.Unpin(true)
	return nil, nil
}

func insertLeafEntry[K, V any](cmp KeyComparator[K], entries []LeafEntry[K, V], key K, value V) []LeafEntry[K, V] {
	idx := sort.Search(len(entries), func(i int) bool { return cmp.Compare(entries[i].Key, key) >= 0 })
	if idx < len(entries) && cmp.Compare(entries[idx].Key, key) == 0 {
		entries[idx].Value = value
		return entries
	}
	entries = append(entries, LeafEntry[K, V]{})
	copy(entries[idx+1:], entries[idx:])
	entries[idx] = LeafEntry[K, V]{Key: key, Value: value}
	return entries
}

func (t *Tree[K, V]) insertInternal(pageID storage.PageID, level int, isRoot bool, key K, value V) (*splitResult[K], error) {
	pp, err := t.cache.FetchPage(pageID)
	if err != nil {
		return nil, wrapIOErr(err)
	}
	w := pp.Write()

	node := newInternalNode[K](w.Bytes(), t.kc)
	h, err := node.Header()
	if err != nil {
		w.Release()
		pp.Unpin(false)
		return nil, err
	}
	entries, err := node.Entries()
	if err != nil {
		w.Release()
		pp.Unpin(false)
		return nil, err
	}
	if len(entries) == 0 {
		w.Release()
		pp.Unpin(false)
		return nil, ErrCorruptPage
	}

	selfSplit := h.count == t.maxInt-1
	var leftEnts, rightEnts, active []InternalEntry[K]
	activeIsRight := false

	if selfSplit {
		mid := len(entries) / 2
		if mid == 0 {
			mid = 1
		}
		leftEnts = append([]InternalEntry[K]{}, entries[:mid]...)
		rightEnts = append([]InternalEntry[K]{}, entries[mid:]...)
		activeIsRight = t.cmp.Compare(key, leftEnts[len(leftEnts)-1].Key) > 0
		if activeIsRight {
			active = rightEnts
		} else {
			active = leftEnts
		}
	} else {
		active = entries
	}

	idx, found := findChildIndex(t.cmp, active, key)
	if !found {
		// Last-separator bump: the key exceeds every separator in this
		// node, so the rightmost slot's bound becomes key.next(), the
		// least key strictly greater than key under the comparator.
		idx = len(active) - 1
		active[idx].Key = t.cmp.Next(key)
	}
	childID := active[idx].Child

	slog.Debug("btree.insertInternal.descend", "pageID", pageID, "level", level, "child", childID, "bumped", !found)

	childSplit, err := t.insertAt(childID, level-1, false, key, value)
	if err != nil {
		w.Release()
		pp.Unpin(false)
		return nil, err
	}

	if childSplit != nil {
		replacement := []InternalEntry[K]{
			{Key: childSplit.leftKey, Child: childSplit.leftID},
			{Key: childSplit.rightKey, Child: childSplit.rightID},
		}
		merged := make([]InternalEntry[K], 0, len(active)+1)
		merged = append(merged, active[:idx]...)
		merged = append(merged, replacement...)
		merged = append(merged, active[idx+1:]...)
		active = merged
		if selfSplit {
			if activeIsRight {
				rightEnts = active
			} else {
				leftEnts = active
			}
		}
	}

	if selfSplit {
		rightPP, err := t.cache.NewPage()
		if err != nil {
			w.Release()
			pp.Unpin(false)
			return nil, wrapIOErr(err)
		}
		rightID := rightPP.PageID()
		rw := rightPP.Write()
		rightNode := newInternalNode[K](rw.Bytes(), t.kc)
		if err := rightNode.Rebuild(rightEnts, rightID, false, t.maxInt); err != nil {
			rw.Release()
			rightPP.Unpin(false)
			w.Release()
			pp.Unpin(false)
			return nil, err
		}
		rw.Release()
		rightPP.Unpin(true)

		if err := node.Rebuild(leftEnts, pageID, false, t.maxInt); err != nil {
			w.Release()
			pp.Unpin(false)
			return nil, err
		}
		w.Release()
		pp.Unpin(true)

		slog.Debug("btree.insertInternal.split", "left", pageID, "right", rightID)
		return &splitResult[K]{
			leftKey: leftEnts[len(leftEnts)-1].Key, leftID: pageID,
			rightKey: rightEnts[len(rightEnts)-1].Key, rightID: rightID,
		}, nil
	}

	if err := node.Rebuild(active, pageID, isRoot, t.maxInt); err != nil {
		w.Release()
		pp.Unpin(false)
		return nil, err
	}
	w.Release()
	pp.Unpin(true)
	return nil, nil
}

// findChildIndex returns the index of the first slot whose key is >= key.
// found is false when key exceeds every separator (the bump case for
// insert, "not found" for reads).
func findChildIndex[K any](cmp KeyComparator[K], entries []InternalEntry[K], key K) (idx int, found bool) {
	for i, e := range entries {
		if cmp.Compare(e.Key, key) >= 0 {
			return i, true
		}
	}
	return -1, false
}

// ---- Get ----

// Get performs a point lookup.
func (t *Tree[K, V]) Get(key K) (V, error) {
	var zero V
	if err := t.ensureOpen(); err != nil {
		return zero, err
	}
	root, height := t.snapshotRoot()

	pageID := root
	for level := height; level > 1; level-- {
		pp, err := t.cache.FetchPage(pageID)
		if err != nil {
			return zero, wrapIOErr(err)
		}
		r := pp.Read()
		node := newInternalNode[K](r.Bytes(), t.kc)
		entries, err := node.Entries()
		r.Release()
		if err != nil {
			pp.Unpin(false)
			return zero, err
		}
		idx, found := findChildIndex(t.cmp, entries, key)
		pp.Unpin(false)
		if !found {
			return zero, ErrKeyNotFound
		}
		pageID = entries[idx].Child
	}

	pp, err := t.cache.FetchPage(pageID)
	if err != nil {
		return zero, wrapIOErr(err)
	}
	r := pp.Read()
	leaf := newLeafNode[K, V](r.Bytes(), t.kc, t.vc)
	entries, err := leaf.Entries()
	r.Release()
	pp.Unpin(false)
	if err != nil {
		return zero, err
	}

	idx := sort.Search(len(entries), func(i int) bool { return t.cmp.Compare(entries[i].Key, key) >= 0 })
	if idx < len(entries) && t.cmp.Compare(entries[idx].Key, key) == 0 {
		return entries[idx].Value, nil
	}
	return zero, ErrKeyNotFound
}

// ---- Delete ----

// Delete removes the slot with the given key, if present, with no
// rebalancing. Returns whether a slot was removed.
func (t *Tree[K, V]) Delete(key K) (bool, error) {
	if err := t.ensureOpen(); err != nil {
		return false, err
	}
	root, height := t.snapshotRoot()

	pageID := root
	for level := height; level > 1; level-- {
		pp, err := t.cache.FetchPage(pageID)
		if err != nil {
			return false, wrapIOErr(err)
		}
		r := pp.Read()
		node := newInternalNode[K](r.Bytes(), t.kc)
		entries, err := node.Entries()
		r.Release()
		if err != nil {
			pp.Unpin(false)
			return false, err
		}
		idx, found := findChildIndex(t.cmp, entries, key)
		pp.Unpin(false)
		if !found {
			return false, nil
		}
		pageID = entries[idx].Child
	}

	pp, err := t.cache.FetchPage(pageID)
	if err != nil {
		return false, wrapIOErr(err)
	}
	w := pp.Write()
	leaf := newLeafNode[K, V](w.Bytes(), t.kc, t.vc)
	h, err := leaf.Header()
	if err != nil {
		w.Release()
		pp.Unpin(false)
		return false, err
	}
	entries, err := leaf.Entries()
	if err != nil {
		w.Release()
		pp.Unpin(false)
		return false, err
	}

	idx := sort.Search(len(entries), func(i int) bool { return t.cmp.Compare(entries[i].Key, key) >= 0 })
	if idx >= len(entries) || t.cmp.Compare(entries[idx].Key, key) != 0 {
		w.Release()
		pp.Unpin(false)
		return false, nil
	}

	entries = append(entries[:idx], entries[idx+1:]...)
	if err := leaf.Rebuild(entries, pageID, h.next, h.isRoot, t.maxLeaf); err != nil {
		w.Release()
		pp.Unpin(false)
		return false, err
	}
	w.Release()
	pp.Unpin(true)
	return true, nil
}

// ---- Scan / Range ----

func (t *Tree[K, V]) leftmostLeaf(root storage.PageID, height int) (storage.PageID, error) {
	pageID := root
	for level := height; level > 1; level-- {
		pp, err := t.cache.FetchPage(pageID)
		if err != nil {
			return 0, wrapIOErr(err)
		}
		r := pp.Read()
		node := newInternalNode[K](r.Bytes(), t.kc)
		entries, err := node.Entries()
		r.Release()
		pp.Unpin(false)
		if err != nil {
			return 0, err
		}
		if len(entries) == 0 {
			return 0, ErrCorruptPage
		}
		pageID = entries[0].Child
	}
	return pageID, nil
}

// leafForLowerBound descends to the leaf that would contain key, taking
// the last child on a bump-style miss so range scans starting past every
// separator still land on the rightmost leaf.
func (t *Tree[K, V]) leafForLowerBound(root storage.PageID, height int, key K) (storage.PageID, error) {
	pageID := root
	for level := height; level > 1; level-- {
		pp, err := t.cache.FetchPage(pageID)
		if err != nil {
			return 0, wrapIOErr(err)
		}
		r := pp.Read()
		node := newInternalNode[K](r.Bytes(), t.kc)
		entries, err := node.Entries()
		r.Release()
		pp.Unpin(false)
		if err != nil {
			return 0, err
		}
		if len(entries) == 0 {
			return 0, ErrCorruptPage
		}
		idx, found := findChildIndex(t.cmp, entries, key)
		if !found {
			idx = len(entries) - 1
		}
		pageID = entries[idx].Child
	}
	return pageID, nil
}

// walkLeaves visits entries leaf-by-leaf in ascending key order, starting
// at startID, until visit returns false or the chain ends. At most one
// leaf's read guard is held at a time.
func (t *Tree[K, V]) walkLeaves(startID storage.PageID, visit func(LeafEntry[K, V]) bool) error {
	pageID := startID
	for pageID.Valid() {
		pp, err := t.cache.FetchPage(pageID)
		if err != nil {
			return wrapIOErr(err)
		}
		r := pp.Read()
		leaf := newLeafNode[K, V](r.Bytes(), t.kc, t.vc)
		h, herr := leaf.Header()
		var entries []LeafEntry[K, V]
		if herr == nil {
			entries, herr = leaf.Entries()
		}
		r.Release()
		pp.Unpin(false)
		if herr != nil {
			return herr
		}

		for _, e := range entries {
			if !visit(e) {
				return nil
			}
		}
		pageID = h.next
	}
	return nil
}

// Scan returns every entry in ascending key order.
func (t *Tree[K, V]) Scan() ([]LeafEntry[K, V], error) {
	if err := t.ensureOpen(); err != nil {
		return nil, err
	}
	root, height := t.snapshotRoot()
	start, err := t.leftmostLeaf(root, height)
	if err != nil {
		return nil, err
	}

	var out []LeafEntry[K, V]
	err = t.walkLeaves(start, func(e LeafEntry[K, V]) bool {
		out = append(out, e)
		return true
	})
	return out, err
}

// Range returns every entry with lo <= key <= hi, inclusive on both
// bounds. Empty if lo > hi or nothing intersects.
func (t *Tree[K, V]) Range(lo, hi K) ([]LeafEntry[K, V], error) {
	if err := t.ensureOpen(); err != nil {
		return nil, err
	}
	if t.cmp.Compare(lo, hi) > 0 {
		return nil, nil
	}
	root, height := t.snapshotRoot()
	start, err := t.leafForLowerBound(root, height, lo)
	if err != nil {
		return nil, err
	}

	var out []LeafEntry[K, V]
	err = t.walkLeaves(start, func(e LeafEntry[K, V]) bool {
		if t.cmp.Compare(e.Key, lo) < 0 {
			return true
		}
		if t.cmp.Compare(e.Key, hi) > 0 {
			return false
		}
		out = append(out, e)
		return true
	})
	return out, err
}
