package storage

import "errors"

var (
	// ErrInvalidPageID is returned when an operation is asked to act on
	// InvalidPageID (-1). Other ids are not checked against the ids the
	// disk manager has issued.
	ErrInvalidPageID = errors.New("storage: invalid page id")

	// ErrShortIO is returned when a write to the backing file stores fewer
	// than PageSize bytes, and by MemoryDiskManager when the buffer is not
	// PageSize bytes. A short file read is zero-filled, not an error.
	ErrShortIO = errors.New("storage: short read or write against page-aligned storage")
)
