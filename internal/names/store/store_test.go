package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "names.db")
	db, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDB_UpsertAndGet(t *testing.T) {
	db := newTestDB(t)
	row := RecordRow{
		Name:         "shop.comp1234.rednet",
		NodeID:       1234,
		Subdomain:    "shop",
		RegisteredAt: time.Now().UTC().Truncate(time.Second),
		OwnerNodeID:  1234,
	}
	require.NoError(t, db.Upsert(row))

	got, found, err := db.Get(row.Name)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, row.NodeID, got.NodeID)
	assert.Equal(t, row.Subdomain, got.Subdomain)
}

func TestDB_UpsertUpdatesExisting(t *testing.T) {
	db := newTestDB(t)
	row := RecordRow{Name: "news", NodeID: 1, OwnerNodeID: 1, RegisteredAt: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, db.Upsert(row))

	row.Shadowed = true
	require.NoError(t, db.Upsert(row))

	got, found, err := db.Get("news")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.Shadowed)
}

func TestDB_Delete(t *testing.T) {
	db := newTestDB(t)
	row := RecordRow{Name: "news", NodeID: 1, OwnerNodeID: 1, RegisteredAt: time.Now().UTC()}
	require.NoError(t, db.Upsert(row))
	require.NoError(t, db.Delete("news"))

	_, found, err := db.Get("news")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDB_List(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Upsert(RecordRow{Name: "a", NodeID: 1, OwnerNodeID: 1, RegisteredAt: time.Now().UTC()}))
	require.NoError(t, db.Upsert(RecordRow{Name: "b", NodeID: 2, OwnerNodeID: 2, RegisteredAt: time.Now().UTC()}))

	rows, err := db.List()
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestDB_Get_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, found, err := db.Get("missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDB_NullableTimestamps(t *testing.T) {
	db := newTestDB(t)
	row := RecordRow{
		Name:         "a",
		NodeID:       1,
		OwnerNodeID:  1,
		RegisteredAt: time.Now().UTC().Truncate(time.Second),
		ExpiresAt:    sql.NullTime{},
		VerifiedAt:   sql.NullTime{},
	}
	require.NoError(t, db.Upsert(row))

	got, found, err := db.Get("a")
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, got.ExpiresAt.Valid)
	assert.False(t, got.VerifiedAt.Valid)
}
