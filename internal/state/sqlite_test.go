package state

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/leapdb/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore()
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore()
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Close())
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore()
	assert.ErrorIs(t, store.Migrate(), ErrNotOpened)
	_, err := store.ListConnections(context.Background())
	assert.ErrorIs(t, err, ErrNotOpened)
}

func TestSQLiteStore_MigrateOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")
	store := NewSQLiteStore()
	require.NoError(t, store.Open(path))
	defer store.Close()

	require.NoError(t, store.Migrate())
	// Running again is a no-op.
	require.NoError(t, store.Migrate())

	version, err := store.GetMigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	assert.Equal(t, path, store.Path())
}

func TestSQLiteStore_Connections(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	d := core.Descriptor{
		Name:     "prod",
		Type:     "postgres",
		Host:     "db.internal",
		Port:     5432,
		User:     "app",
		Password: "secret",
		SSH:      &core.SSHConfig{Host: "bastion", User: "deploy", Password: "hunter2"},
		Params:   map[string]any{"sslmode": "require"},
	}

	saved, err := store.SaveConnection(ctx, d)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, saved.ID, saved.Descriptor.ID)
	assert.Equal(t, "db.internal", saved.Descriptor.Host)
	require.NotNil(t, saved.Descriptor.SSH)
	assert.Equal(t, "bastion", saved.Descriptor.SSH.Host)

	// Saving by the same name updates in place.
	d.Host = "db2.internal"
	updated, err := store.SaveConnection(ctx, d)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, updated.ID)
	assert.Equal(t, "db2.internal", updated.Descriptor.Host)

	_, err = store.SaveConnection(ctx, core.Descriptor{Name: "local", Type: "sqlite", Socket: "app.db", Global: true})
	require.NoError(t, err)

	conns, err := store.ListConnections(ctx)
	require.NoError(t, err)
	require.Len(t, conns, 2)
	assert.Equal(t, "local", conns[0].Descriptor.Name)
	assert.True(t, conns[0].Global)
	assert.Equal(t, "prod", conns[1].Descriptor.Name)

	byName, err := store.GetConnection(ctx, "prod")
	require.NoError(t, err)
	assert.Equal(t, saved.ID, byName.ID)

	_, err = store.GetConnection(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.SaveConnection(ctx, core.Descriptor{Type: "postgres"})
	assert.Error(t, err)
}

func TestSQLiteStore_DeleteConnectionDropsQueries(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	saved, err := store.SaveConnection(ctx, core.Descriptor{Name: "prod", Type: "postgres"})
	require.NoError(t, err)
	_, err = store.SaveQuery(ctx, saved.Descriptor.Key(), "recent orders", "SELECT 1")
	require.NoError(t, err)

	require.NoError(t, store.DeleteConnection(ctx, "prod"))

	conns, err := store.ListConnections(ctx)
	require.NoError(t, err)
	assert.Empty(t, conns)

	queries, err := store.SavedQueries(ctx, saved.Descriptor.Key())
	require.NoError(t, err)
	assert.Empty(t, queries)

	assert.ErrorIs(t, store.DeleteConnection(ctx, "prod"), ErrNotFound)
}

func TestSQLiteStore_SavedQueries(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.SaveQuery(ctx, "prod", "b-report", "SELECT 2")
	require.NoError(t, err)
	_, err = store.SaveQuery(ctx, "prod", "a-report", "SELECT 1")
	require.NoError(t, err)
	_, err = store.SaveQuery(ctx, "other", "a-report", "SELECT 3")
	require.NoError(t, err)

	// Same name replaces the SQL.
	_, err = store.SaveQuery(ctx, "prod", "b-report", "SELECT 22")
	require.NoError(t, err)

	queries, err := store.SavedQueries(ctx, "prod")
	require.NoError(t, err)
	require.Len(t, queries, 2)
	assert.Equal(t, "a-report", queries[0].Name)
	assert.Equal(t, "SELECT 22", queries[1].SQL)

	require.NoError(t, store.DeleteQuery(ctx, "prod", "a-report"))
	assert.ErrorIs(t, store.DeleteQuery(ctx, "prod", "a-report"), ErrNotFound)

	_, err = store.SaveQuery(ctx, "prod", "", "SELECT 1")
	assert.Error(t, err)
}

func TestSQLiteStore_ExportConnections(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.SaveConnection(ctx, core.Descriptor{
		Name:     "prod",
		Type:     "postgres",
		Host:     "db",
		Password: "secret",
		SSH:      &core.SSHConfig{Host: "bastion", User: "deploy", Passphrase: "pp"},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, store.ExportConnections(ctx, &buf))
	assert.NotContains(t, buf.String(), "secret")
	assert.NotContains(t, buf.String(), "pp\n")

	var out struct {
		Connections []core.Descriptor `yaml:"connections"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out.Connections, 1)
	assert.Equal(t, "prod", out.Connections[0].Name)
	assert.Equal(t, "bastion", out.Connections[0].SSH.Host)
}
