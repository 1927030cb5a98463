// Package catalog tracks the tables and indexes created over a data
// directory: their schemas, key columns, and the on-disk file names that
// back them. It is the directory a CLI or higher layer consults before it
// can open a heap or a tree by name.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tuannm99/coredb/internal/record"
)

var (
	ErrTableExists   = errors.New("catalog: table already exists")
	ErrIndexExists   = errors.New("catalog: index already exists")
	ErrTableNotFound = errors.New("catalog: table not found")
)

// OID is a catalog object id, allocated monotonically starting at 1.
type OID uint32

type TableInfo struct {
	OID      OID
	Name     string
	Schema   record.Schema
	HeapFile string
}

type IndexInfo struct {
	OID       OID
	Name      string
	TableOID  OID
	KeyCols   []int
	IndexFile string
}

// Catalog is the table/index directory for one data directory. It is
// persisted as a JSON sidecar next to the data it describes.
type Catalog struct {
	dir  string
	path string

	mu      sync.Mutex
	nextOID OID
	tables  map[string]TableInfo
	indexes map[string]IndexInfo
}

// Open loads the catalog sidecar from dir if present, or starts a fresh
// one. dir also serves as the base for heap/index file names handed back
// by CreateTable/CreateIndex.
func Open(dir string) (*Catalog, error) {
	c := &Catalog{
		dir:     dir,
		path:    filepath.Join(dir, "catalog.json"),
		nextOID: 1,
		tables:  make(map[string]TableInfo),
		indexes: make(map[string]IndexInfo),
	}

	raw, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", c.path, err)
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", c.path, err)
	}
	c.nextOID = snap.NextOID
	for _, t := range snap.Tables {
		c.tables[t.Name] = t
	}
	for _, i := range snap.Indexes {
		c.indexes[i.Name] = i
	}
	return c, nil
}

type snapshot struct {
	NextOID OID         `json:"next_oid"`
	Tables  []TableInfo `json:"tables"`
	Indexes []IndexInfo `json:"indexes"`
}

// CreateTable registers a new table and allocates its heap file name.
// Persists the catalog before returning.
func (c *Catalog) CreateTable(name string, schema record.Schema) (TableInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.tables[name]; ok {
		return TableInfo{}, ErrTableExists
	}

	oid := c.nextOID
	c.nextOID++

	info := TableInfo{
		OID:      oid,
		Name:     name,
		Schema:   schema,
		HeapFile: filepath.Join(c.dir, fmt.Sprintf("%s.heap", name)),
	}
	c.tables[name] = info

	if err := c.saveLocked(); err != nil {
		delete(c.tables, name)
		c.nextOID--
		return TableInfo{}, err
	}
	return info, nil
}

// CreateIndex registers a new index over table, allocating its index
// file name. Persists the catalog before returning.
func (c *Catalog) CreateIndex(name string, table OID, keyCols []int) (IndexInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.indexes[name]; ok {
		return IndexInfo{}, ErrIndexExists
	}
	if !c.tableExistsByOIDLocked(table) {
		return IndexInfo{}, ErrTableNotFound
	}

	oid := c.nextOID
	c.nextOID++

	cols := make([]int, len(keyCols))
	copy(cols, keyCols)

	info := IndexInfo{
		OID:       oid,
		Name:      name,
		TableOID:  table,
		KeyCols:   cols,
		IndexFile: filepath.Join(c.dir, fmt.Sprintf("%s.idx", name)),
	}
	c.indexes[name] = info

	if err := c.saveLocked(); err != nil {
		delete(c.indexes, name)
		c.nextOID--
		return IndexInfo{}, err
	}
	return info, nil
}

func (c *Catalog) tableExistsByOIDLocked(oid OID) bool {
	for _, t := range c.tables {
		if t.OID == oid {
			return true
		}
	}
	return false
}

// Table looks up a table by name.
func (c *Catalog) Table(name string) (TableInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[name]
	return t, ok
}

// Index looks up an index by name.
func (c *Catalog) Index(name string) (IndexInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.indexes[name]
	return i, ok
}

func (c *Catalog) saveLocked() error {
	snap := snapshot{NextOID: c.nextOID}
	for _, t := range c.tables {
		snap.Tables = append(snap.Tables, t)
	}
	for _, i := range c.indexes {
		snap.Indexes = append(snap.Indexes, i)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("catalog: mkdir %s: %w", c.dir, err)
	}
	return writeFileAtomic(c.path, data, 0o644)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
