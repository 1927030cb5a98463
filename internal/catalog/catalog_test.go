package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/coredb/internal/record"
)

func usersSchema() record.Schema {
	return record.Schema{Cols: []record.Column{
		{Name: "id", Type: record.ColInt64},
		{Name: "name", Type: record.ColText},
	}}
}

func TestCatalog_CreateAndLookupTable(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir)
	require.NoError(t, err)

	info, err := c.CreateTable("users", usersSchema())
	require.NoError(t, err)
	require.Equal(t, OID(1), info.OID)
	require.Equal(t, "users", info.Name)

	got, ok := c.Table("users")
	require.True(t, ok)
	require.Equal(t, info, got)

	_, ok = c.Table("missing")
	require.False(t, ok)
}

func TestCatalog_CreateTableDuplicateFails(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir)
	require.NoError(t, err)

	_, err = c.CreateTable("users", usersSchema())
	require.NoError(t, err)

	_, err = c.CreateTable("users", usersSchema())
	require.ErrorIs(t, err, ErrTableExists)
}

func TestCatalog_CreateIndexRequiresExistingTable(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(dir)
	require.NoError(t, err)

	_, err = c.CreateIndex("users_id_idx", OID(99), []int{0})
	require.ErrorIs(t, err, ErrTableNotFound)

	tbl, err := c.CreateTable("users", usersSchema())
	require.NoError(t, err)

	idx, err := c.CreateIndex("users_id_idx", tbl.OID, []int{0})
	require.NoError(t, err)
	require.Equal(t, tbl.OID, idx.TableOID)
	require.Equal(t, []int{0}, idx.KeyCols)

	_, err = c.CreateIndex("users_id_idx", tbl.OID, []int{0})
	require.ErrorIs(t, err, ErrIndexExists)
}

func TestCatalog_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	c1, err := Open(dir)
	require.NoError(t, err)
	tbl, err := c1.CreateTable("users", usersSchema())
	require.NoError(t, err)
	_, err = c1.CreateIndex("users_id_idx", tbl.OID, []int{0})
	require.NoError(t, err)

	c2, err := Open(dir)
	require.NoError(t, err)

	got, ok := c2.Table("users")
	require.True(t, ok)
	require.Equal(t, tbl, got)

	idx, ok := c2.Index("users_id_idx")
	require.True(t, ok)
	require.Equal(t, tbl.OID, idx.TableOID)

	next, err := c2.CreateTable("orders", usersSchema())
	require.NoError(t, err)
	require.Greater(t, next.OID, idx.OID)
}
