package names

import (
	"path/filepath"
	"testing"

	"github.com/rednetexplorer/core/internal/names/store"
	"github.com/stretchr/testify/require"
)

func openTempStore(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "names.db")
	db, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}
