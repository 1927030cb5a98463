package btree

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/coredb/internal/bufferpool"
	"github.com/tuannm99/coredb/internal/storage"
)

func newTestTree(t *testing.T) *Tree[int64, int64] {
	t.Helper()
	disk := storage.NewMemoryDiskManager()
	cache := bufferpool.NewCache(disk, 128, 2)
	tree, err := Open[int64, int64](cache, Int64Comparator{}, Int64KeyCodec{}, Int64ValueCodec{}, "", 0)
	require.NoError(t, err)
	return tree
}

// newSplittingTestTree opens a tree with a small max so that inserting
// even a handful of keys forces leaf and internal splits, exercising
// insertLeaf/insertInternal's split, absorb and last-separator-bump
// branches that a page-sized max (hundreds of slots) never reaches.
func newSplittingTestTree(t *testing.T, max int32) *Tree[int64, int64] {
	t.Helper()
	disk := storage.NewMemoryDiskManager()
	cache := bufferpool.NewCache(disk, 128, 2)
	tree, err := Open[int64, int64](cache, Int64Comparator{}, Int64KeyCodec{}, Int64ValueCodec{}, "", max)
	require.NoError(t, err)
	return tree
}

func scanKeys(t *testing.T, tree *Tree[int64, int64]) []int64 {
	t.Helper()
	entries, err := tree.Scan()
	require.NoError(t, err)
	keys := make([]int64, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys
}

func shuffled(lo, hi int64) []int64 {
	keys := make([]int64, 0, hi-lo+1)
	for k := lo; k <= hi; k++ {
		keys = append(keys, k)
	}
	rand.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	return keys
}

func TestTree_InsertGetScan_OrderAndUniqueness(t *testing.T) {
	tree := newTestTree(t)

	for _, k := range shuffled(-50, 49) {
		require.NoError(t, tree.Insert(k, k+10))
	}

	for k := int64(-50); k <= 49; k++ {
		v, err := tree.Get(k)
		require.NoError(t, err)
		require.Equal(t, k+10, v)
	}

	keys := scanKeys(t, tree)
	require.Len(t, keys, 100)
	for i := 1; i < len(keys); i++ {
		require.Less(t, keys[i-1], keys[i])
	}
}

func TestTree_DeleteThenGet(t *testing.T) {
	tree := newTestTree(t)
	order := shuffled(-50, 49)
	for _, k := range order {
		require.NoError(t, tree.Insert(k, k+10))
	}

	deleted := order[:50]
	for _, k := range deleted {
		ok, err := tree.Delete(k)
		require.NoError(t, err)
		require.True(t, ok)
	}

	for _, k := range deleted {
		_, err := tree.Get(k)
		require.ErrorIs(t, err, ErrKeyNotFound)
	}
	for _, k := range order[50:] {
		v, err := tree.Get(k)
		require.NoError(t, err)
		require.Equal(t, k+10, v)
	}

	keys := scanKeys(t, tree)
	require.Len(t, keys, 50)
}

func TestTree_OverwriteWins(t *testing.T) {
	tree := newTestTree(t)
	require.NoError(t, tree.Insert(5, 1))
	require.NoError(t, tree.Insert(5, 2))

	v, err := tree.Get(5)
	require.NoError(t, err)
	require.Equal(t, int64(2), v)

	keys := scanKeys(t, tree)
	require.Len(t, keys, 1)
}

func TestTree_OverlappingInsertsLaterWins(t *testing.T) {
	tree := newTestTree(t)
	for _, k := range shuffled(-50, 49) {
		require.NoError(t, tree.Insert(k, k+10))
	}
	for _, k := range shuffled(-25, 99) {
		require.NoError(t, tree.Insert(k, k+100))
	}

	for k := int64(-50); k <= -26; k++ {
		v, err := tree.Get(k)
		require.NoError(t, err)
		require.Equal(t, k+10, v)
	}
	for k := int64(-25); k <= 99; k++ {
		v, err := tree.Get(k)
		require.NoError(t, err)
		require.Equal(t, k+100, v)
	}

	keys := scanKeys(t, tree)
	require.Len(t, keys, 150)
}

func TestTree_RangeCorrectness(t *testing.T) {
	tree := newTestTree(t)
	for _, k := range shuffled(-50, 49) {
		require.NoError(t, tree.Insert(k, k+10))
	}

	from, to := int64(-30), int64(20)
	entries, err := tree.Range(from, to)
	require.NoError(t, err)

	want := int(to-from) + 1
	require.Len(t, entries, want)
	for i, e := range entries {
		require.Equal(t, from+int64(i), e.Key)
		require.Equal(t, from+int64(i)+10, e.Value)
	}
}

func TestTree_RangeBeyondEveryKey(t *testing.T) {
	tree := newTestTree(t)
	for k := int64(-50); k <= 50; k++ {
		require.NoError(t, tree.Insert(k, k+10))
	}

	entries, err := tree.Range(-100, -50)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, int64(-50), entries[0].Key)
	require.Equal(t, int64(-40), entries[0].Value)
}

func TestTree_RangeEmptyWhenFromGreaterThanTo(t *testing.T) {
	tree := newTestTree(t)
	require.NoError(t, tree.Insert(1, 1))

	entries, err := tree.Range(5, 1)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// The tests below use max=8, matching the worked scenarios: small enough
// that a leaf splits on its 8th insert (once it holds max-1 = 7 slots) and
// the tree grows past height 1,
// so insertLeaf's and insertInternal's split/absorb/bump branches actually
// run instead of every key fitting in one page-sized node.

func TestTree_SmallMax_InsertGetScan_OrderAndUniqueness(t *testing.T) {
	tree := newSplittingTestTree(t, 8)

	for _, k := range shuffled(-50, 49) {
		require.NoError(t, tree.Insert(k, k+10))
	}

	for k := int64(-50); k <= 49; k++ {
		v, err := tree.Get(k)
		require.NoError(t, err)
		require.Equal(t, k+10, v)
	}

	keys := scanKeys(t, tree)
	require.Len(t, keys, 100)
	for i := 1; i < len(keys); i++ {
		require.Less(t, keys[i-1], keys[i])
	}
}

func TestTree_SmallMax_DeleteThenGet(t *testing.T) {
	tree := newSplittingTestTree(t, 8)
	order := shuffled(-50, 49)
	for _, k := range order {
		require.NoError(t, tree.Insert(k, k+10))
	}

	deleted := order[:50]
	for _, k := range deleted {
		ok, err := tree.Delete(k)
		require.NoError(t, err)
		require.True(t, ok)
	}

	for _, k := range deleted {
		_, err := tree.Get(k)
		require.ErrorIs(t, err, ErrKeyNotFound)
	}
	for _, k := range order[50:] {
		v, err := tree.Get(k)
		require.NoError(t, err)
		require.Equal(t, k+10, v)
	}

	keys := scanKeys(t, tree)
	require.Len(t, keys, 50)
}

func TestTree_SmallMax_OverlappingInsertsLaterWins(t *testing.T) {
	tree := newSplittingTestTree(t, 8)
	for _, k := range shuffled(-50, 49) {
		require.NoError(t, tree.Insert(k, k+10))
	}
	for _, k := range shuffled(-25, 99) {
		require.NoError(t, tree.Insert(k, k+100))
	}

	for k := int64(-50); k <= -26; k++ {
		v, err := tree.Get(k)
		require.NoError(t, err)
		require.Equal(t, k+10, v)
	}
	for k := int64(-25); k <= 99; k++ {
		v, err := tree.Get(k)
		require.NoError(t, err)
		require.Equal(t, k+100, v)
	}

	keys := scanKeys(t, tree)
	require.Len(t, keys, 150)
}

func TestTree_SmallMax_RangeCorrectness(t *testing.T) {
	tree := newSplittingTestTree(t, 8)
	for _, k := range shuffled(-50, 49) {
		require.NoError(t, tree.Insert(k, k+10))
	}

	from, to := int64(-30), int64(20)
	entries, err := tree.Range(from, to)
	require.NoError(t, err)

	want := int(to-from) + 1
	require.Len(t, entries, want)
	for i, e := range entries {
		require.Equal(t, from+int64(i), e.Key)
		require.Equal(t, from+int64(i)+10, e.Value)
	}
}

func TestTree_SmallMax_RangeBeyondEveryKey(t *testing.T) {
	tree := newSplittingTestTree(t, 8)
	for k := int64(-50); k <= 50; k++ {
		require.NoError(t, tree.Insert(k, k+10))
	}

	entries, err := tree.Range(-100, -50)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, int64(-50), entries[0].Key)
	require.Equal(t, int64(-40), entries[0].Value)
}

// TestTree_SmallMax_AscendingInsertTriggersLastSeparatorBump inserts keys
// in strictly increasing order, so after the first leaf split keys keep
// landing past every existing separator and take the last-separator-bump
// branch in insertInternal (idx = len(active)-1; active[idx].Key =
// cmp.Next(key)) over and over, not just the ordinary found case. A bump
// raises the bound to key+1, so the key right after it takes the found
// path; the two branches alternate rather than the bump firing every time.
func TestTree_SmallMax_AscendingInsertTriggersLastSeparatorBump(t *testing.T) {
	tree := newSplittingTestTree(t, 8)

	for k := int64(0); k < 200; k++ {
		require.NoError(t, tree.Insert(k, k*2))
	}

	for k := int64(0); k < 200; k++ {
		v, err := tree.Get(k)
		require.NoError(t, err)
		require.Equal(t, k*2, v)
	}

	keys := scanKeys(t, tree)
	require.Len(t, keys, 200)
	for i := 1; i < len(keys); i++ {
		require.Less(t, keys[i-1], keys[i])
	}
}

// TestTree_SmallMax_RootSplitsIntoMultipleLevels inserts enough keys past
// max=8 that the root itself must split at least twice, growing the tree
// past height 2 and exercising Insert's own root-split path (a fresh
// internal root built over the two halves) repeatedly rather than just
// once.
func TestTree_SmallMax_RootSplitsIntoMultipleLevels(t *testing.T) {
	tree := newSplittingTestTree(t, 8)

	for _, k := range shuffled(1, 500) {
		require.NoError(t, tree.Insert(k, k*10))
	}

	keys := scanKeys(t, tree)
	require.Len(t, keys, 500)
	for i := 1; i < len(keys); i++ {
		require.Less(t, keys[i-1], keys[i])
	}
	for _, k := range []int64{1, 2, 250, 499, 500} {
		v, err := tree.Get(k)
		require.NoError(t, err)
		require.Equal(t, k*10, v)
	}
}

func TestTree_SmallMax_Persistence_ReopenSameDisk(t *testing.T) {
	disk := storage.NewMemoryDiskManager()
	metaPath := t.TempDir() + "/idx.meta.json"

	cache := bufferpool.NewCache(disk, 64, 2)
	tree, err := Open[int64, int64](cache, Int64Comparator{}, Int64KeyCodec{}, Int64ValueCodec{}, metaPath, 8)
	require.NoError(t, err)
	for _, k := range shuffled(1, 200) {
		require.NoError(t, tree.Insert(k, k*2))
	}
	require.NoError(t, tree.Close())

	cache2 := bufferpool.NewCache(disk, 64, 2)
	reopened, err := Open[int64, int64](cache2, Int64Comparator{}, Int64KeyCodec{}, Int64ValueCodec{}, metaPath, 8)
	require.NoError(t, err)

	keys := scanKeys(t, reopened)
	require.Len(t, keys, 200)
	for i := 1; i < len(keys); i++ {
		require.Less(t, keys[i-1], keys[i])
	}
}

func TestTree_OpenRejectsMaxTooSmall(t *testing.T) {
	disk := storage.NewMemoryDiskManager()
	cache := bufferpool.NewCache(disk, 8, 2)
	_, err := Open[int64, int64](cache, Int64Comparator{}, Int64KeyCodec{}, Int64ValueCodec{}, "", 1)
	require.Error(t, err)
}

func TestTree_SmallCache_StillSucceeds(t *testing.T) {
	disk := storage.NewMemoryDiskManager()
	cache := bufferpool.NewCache(disk, 4, 2)
	tree, err := Open[int64, int64](cache, Int64Comparator{}, Int64KeyCodec{}, Int64ValueCodec{}, "", 0)
	require.NoError(t, err)

	for _, k := range shuffled(-50, 49) {
		require.NoError(t, tree.Insert(k, k+10))
	}

	keys := scanKeys(t, tree)
	require.Len(t, keys, 100)
}

func TestTree_Persistence_ReopenSameDisk(t *testing.T) {
	disk := storage.NewMemoryDiskManager()
	metaPath := t.TempDir() + "/idx.meta.json"

	cache := bufferpool.NewCache(disk, 64, 2)
	tree, err := Open[int64, int64](cache, Int64Comparator{}, Int64KeyCodec{}, Int64ValueCodec{}, metaPath, 0)
	require.NoError(t, err)
	for _, k := range shuffled(1, 200) {
		require.NoError(t, tree.Insert(k, k*2))
	}
	require.NoError(t, tree.Close())

	cache2 := bufferpool.NewCache(disk, 64, 2)
	reopened, err := Open[int64, int64](cache2, Int64Comparator{}, Int64KeyCodec{}, Int64ValueCodec{}, metaPath, 0)
	require.NoError(t, err)

	keys := scanKeys(t, reopened)
	require.Len(t, keys, 200)
	for i := 1; i < len(keys); i++ {
		require.Less(t, keys[i-1], keys[i])
	}
}
