package btree

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tuannm99/coredb/internal/storage"
)

const metaVersion = 1

// diskMeta is the JSON sidecar persisted next to a tree's pages, recording
// just enough to reopen it: which page is the root and how tall the tree
// is. Page contents are the source of truth for everything else.
type diskMeta struct {
	Version int            `json:"version"`
	Root    storage.PageID `json:"root"`
	Height  int            `json:"height"`
}

func loadMeta(path string) (diskMeta, bool, error) {
	if path == "" {
		return diskMeta{}, false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return diskMeta{}, false, nil
		}
		return diskMeta{}, false, err
	}
	var m diskMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return diskMeta{}, false, err
	}
	return m, true, nil
}

func saveMeta(path string, m diskMeta) error {
	if path == "" {
		return nil
	}
	m.Version = metaVersion

	data, err := json.MarshalIndent(&m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return err
	}
	slog.Debug("btree.meta.saved", "path", path, "root", m.Root, "height", m.Height)
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	ok := false
	defer func() {
		_ = tmp.Close()
		if !ok {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("btree: atomic meta rename: %w", err)
	}
	ok = true
	return nil
}
