package storage

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// FileDiskManager is a DiskManager backed by a single growable file. Page
// id maps to byte offset id*PageSize; AllocatePage hands out ids in order
// starting from the current end of file.
type FileDiskManager struct {
	mu         sync.Mutex
	file       *os.File
	nextPageID PageID
}

var _ DiskManager = (*FileDiskManager)(nil)

// OpenFileDiskManager opens (creating if necessary) path and resumes page
// id allocation after however many whole pages it already contains.
func OpenFileDiskManager(path string) (*FileDiskManager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("storage: stat %s: %w", path, err)
	}
	return &FileDiskManager{
		file:       f,
		nextPageID: PageID(info.Size() / PageSize),
	}, nil
}

func (d *FileDiskManager) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.file.Close()
}

func (d *FileDiskManager) ReadPage(id PageID, buf []byte) error {
	if !id.Valid() {
		return ErrInvalidPageID
	}
	if len(buf) != PageSize {
		return fmt.Errorf("storage: read buffer must be %d bytes, got %d", PageSize, len(buf))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.file.ReadAt(buf, int64(id)*PageSize)
	if err != nil && err != io.EOF {
		return fmt.Errorf("storage: read page %d: %w", id, err)
	}
	for i := n; i < PageSize; i++ {
		buf[i] = 0
	}
	return nil
}

func (d *FileDiskManager) WritePage(id PageID, buf []byte) error {
	if !id.Valid() {
		return ErrInvalidPageID
	}
	if len(buf) != PageSize {
		return fmt.Errorf("storage: write buffer must be %d bytes, got %d", PageSize, len(buf))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	n, err := d.file.WriteAt(buf, int64(id)*PageSize)
	if err != nil {
		return fmt.Errorf("storage: write page %d: %w", id, err)
	}
	if n != PageSize {
		return ErrShortIO
	}
	return nil
}

func (d *FileDiskManager) AllocatePage() (PageID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextPageID
	d.nextPageID++
	return id, nil
}

func (d *FileDiskManager) PageCount() (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return uint32(d.nextPageID), nil
}
