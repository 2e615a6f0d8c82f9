package datastore

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/quack-go/internal/conf"
	"github.com/tphakala/quack-go/internal/errors"
	"github.com/tphakala/quack-go/internal/logger"
)

// setupTestStore opens an in-memory SQLite store closed at test end.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	settings := conf.Defaults()
	settings.Storage.Type = "sqlite"
	settings.Storage.SQLite.Path = ":memory:"

	store, err := New(settings, logger.NewDiscardLogger())
	require.NoError(t, err)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	sqliteStore, ok := store.(*SQLiteStore)
	require.True(t, ok)
	return sqliteStore
}

func TestNew_UnsupportedType(t *testing.T) {
	t.Parallel()
	settings := conf.Defaults()
	settings.Storage.Type = "postgres"

	_, err := New(settings, logger.NewDiscardLogger())
	require.Error(t, err)
}

func TestNew_SelectsMySQL(t *testing.T) {
	t.Parallel()
	settings := conf.Defaults()
	settings.Storage.Type = "mysql"

	store, err := New(settings, logger.NewDiscardLogger())
	require.NoError(t, err)
	assert.IsType(t, &MySQLStore{}, store)
}

func TestMySQLStore_DSN(t *testing.T) {
	t.Parallel()
	settings := conf.Defaults()
	settings.Storage.MySQL.Username = "quack"
	settings.Storage.MySQL.Password = "p@ss"
	settings.Storage.MySQL.Host = "db.local"
	settings.Storage.MySQL.Port = 3306
	settings.Storage.MySQL.Database = "ducks"

	store := &MySQLStore{Settings: settings}
	dsn := store.dsn()

	assert.Contains(t, dsn, "quack:p@ss@tcp(db.local:3306)/ducks")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestGet_MissingKey(t *testing.T) {
	t.Parallel()
	store := setupTestStore(t)

	value, found, err := store.Get(t.Context(), "serverBaseUrl")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, value)
}

func TestSet_InsertThenReplace(t *testing.T) {
	t.Parallel()
	store := setupTestStore(t)
	ctx := t.Context()

	require.NoError(t, store.Set(ctx, "darkMode", "true"))
	value, found, err := store.Get(ctx, "darkMode")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "true", value)

	require.NoError(t, store.Set(ctx, "darkMode", "false"))
	value, found, err = store.Get(ctx, "darkMode")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "false", value)

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSet_EmptyValueIsStored(t *testing.T) {
	t.Parallel()
	store := setupTestStore(t)
	ctx := t.Context()

	require.NoError(t, store.Set(ctx, "dailyName", ""))
	value, found, err := store.Get(ctx, "dailyName")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, value)
}

func TestEmptyKeyRejected(t *testing.T) {
	t.Parallel()
	store := setupTestStore(t)
	ctx := t.Context()

	err := store.Set(ctx, "", "x")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, _, err = store.Get(ctx, "")
	require.Error(t, err)

	require.Error(t, store.Delete(ctx, ""))
}

func TestDelete(t *testing.T) {
	t.Parallel()
	store := setupTestStore(t)
	ctx := t.Context()

	require.NoError(t, store.Set(ctx, "dailyDate", "2024-05-01"))
	require.NoError(t, store.Delete(ctx, "dailyDate"))

	_, found, err := store.Get(ctx, "dailyDate")
	require.NoError(t, err)
	assert.False(t, found)

	// Deleting again is a no-op
	require.NoError(t, store.Delete(ctx, "dailyDate"))
}

func TestAll_ReturnsEveryEntry(t *testing.T) {
	t.Parallel()
	store := setupTestStore(t)
	ctx := t.Context()

	require.NoError(t, store.Set(ctx, "a", "1"))
	require.NoError(t, store.Set(ctx, "b", "2"))

	all, err := store.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, all)
}

func TestSet_ConcurrentWritersKeepOneValue(t *testing.T) {
	t.Parallel()
	store := setupTestStore(t)
	ctx := t.Context()

	var wg sync.WaitGroup
	for _, v := range []string{"x", "y", "z", "w"} {
		wg.Go(func() {
			assert.NoError(t, store.Set(ctx, "serverBaseUrl", v))
		})
	}
	wg.Wait()

	value, found, err := store.Get(ctx, "serverBaseUrl")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Contains(t, []string{"x", "y", "z", "w"}, value)
}

func TestSQLiteStore_FilePersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	settings := conf.Defaults()
	settings.Storage.Type = "sqlite"
	settings.Storage.SQLite.Path = filepath.Join(t.TempDir(), "nested", "quack.db")

	first, err := New(settings, logger.NewDiscardLogger())
	require.NoError(t, err)
	require.NoError(t, first.Open())
	require.NoError(t, first.Set(t.Context(), "dailyName", "Mallard"))
	require.NoError(t, first.Close())

	second, err := New(settings, logger.NewDiscardLogger())
	require.NoError(t, err)
	require.NoError(t, second.Open())
	t.Cleanup(func() { _ = second.Close() })

	value, found, err := second.Get(t.Context(), "dailyName")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Mallard", value)
}

func TestSQLiteStore_EmptyPath(t *testing.T) {
	t.Parallel()
	settings := conf.Defaults()
	settings.Storage.SQLite.Path = ""

	store := &SQLiteStore{DataStore: DataStore{Logger: logger.NewDiscardLogger()}, Settings: settings}
	require.Error(t, store.Open())
}

func TestClose_Uninitialized(t *testing.T) {
	t.Parallel()
	ds := &DataStore{}
	require.Error(t, ds.Close())
}
