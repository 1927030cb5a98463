package btree

import "errors"

var (
	// ErrIo wraps a disk-provider failure encountered while reading or
	// writing a page.
	ErrIo = errors.New("btree: io error")

	// ErrOutOfMemory is returned when the page cache has no unpinned
	// frame to hand out; the failing operation has no effect beyond
	// pages already written before the failure.
	ErrOutOfMemory = errors.New("btree: out of memory (no free frame)")

	// ErrCorruptPage is returned when decoding a node violates an
	// invariant: unknown kind byte, count exceeding max, or slot bytes
	// running off the page.
	ErrCorruptPage = errors.New("btree: corrupt page")

	// ErrTreeClosed is returned by any operation on a tree after Close.
	ErrTreeClosed = errors.New("btree: tree is closed")

	// ErrKeyNotFound is returned by Get when no matching key exists.
	ErrKeyNotFound = errors.New("btree: key not found")
)
