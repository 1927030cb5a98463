package btree

// KeyComparator is the tree's sole key polymorphism point: a total order
// plus an "immediate successor" operation used by the last-separator bump
// (see tree.go). Two keys compare equal iff Compare returns 0, and equal
// keys must encode to identical bytes under the paired KeyCodec.
type KeyComparator[K any] interface {
	Compare(a, b K) int
	// Next returns the least key strictly greater than k under this
	// order. Used only to bump an internal node's last separator.
	Next(k K) K
}

// Int64Comparator orders plain int64 keys.
type Int64Comparator struct{}

func (Int64Comparator) Compare(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (Int64Comparator) Next(k int64) int64 { return k + 1 }

// CompositeKey is an opaque, schema-encoded multi-column key: the tree
// treats it as a byte range with an externally supplied comparator, never
// interpreting the columns itself.
type CompositeKey []byte

// CompositeComparator orders CompositeKey values lexicographically by byte,
// matching the byte-encoding a row codec produces for composite index keys.
// Next appends a zero byte, which is always strictly greater than its
// prefix under lexicographic order.
type CompositeComparator struct{}

func (CompositeComparator) Compare(a, b CompositeKey) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func (CompositeComparator) Next(k CompositeKey) CompositeKey {
	next := make(CompositeKey, len(k)+1)
	copy(next, k)
	return next
}
