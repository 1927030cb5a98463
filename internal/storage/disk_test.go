package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testDisks(t *testing.T) map[string]DiskManager {
	t.Helper()
	fdm, err := OpenFileDiskManager(filepath.Join(t.TempDir(), "data.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = fdm.Close() })
	return map[string]DiskManager{
		"file":   fdm,
		"memory": NewMemoryDiskManager(),
	}
}

func TestDiskManager_AllocateReadWrite(t *testing.T) {
	for name, d := range testDisks(t) {
		t.Run(name, func(t *testing.T) {
			id, err := d.AllocatePage()
			require.NoError(t, err)
			require.Equal(t, PageID(0), id)

			id2, err := d.AllocatePage()
			require.NoError(t, err)
			require.Equal(t, PageID(1), id2)

			buf := make([]byte, PageSize)
			require.NoError(t, d.ReadPage(id, buf))
			for _, b := range buf {
				require.Zero(t, b)
			}

			for i := range buf {
				buf[i] = byte(i)
			}
			require.NoError(t, d.WritePage(id, buf))

			out := make([]byte, PageSize)
			require.NoError(t, d.ReadPage(id, out))
			require.Equal(t, buf, out)

			count, err := d.PageCount()
			require.NoError(t, err)
			require.Equal(t, uint32(2), count)
		})
	}
}

func TestDiskManager_InvalidPageID(t *testing.T) {
	for name, d := range testDisks(t) {
		t.Run(name, func(t *testing.T) {
			buf := make([]byte, PageSize)
			require.ErrorIs(t, d.ReadPage(InvalidPageID, buf), ErrInvalidPageID)
			require.ErrorIs(t, d.WritePage(InvalidPageID, buf), ErrInvalidPageID)
		})
	}
}
