package objectstore

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createStore(name string) UpgradeFunc {
	return func(ctx context.Context, u *Upgrade, _, _ int) error {
		return u.CreateObjectStore(ctx, name)
	}
}

func TestOpenCreatesStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := Open(ctx, dir, "evercookieDB", 2, createStore("store"))
	require.NoError(t, err)
	defer db.Close()

	names, err := db.ObjectStoreNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"store"}, names)
	assert.Equal(t, 2, db.Version())
	assert.FileExists(t, Path(dir, "evercookieDB"))
}

func TestPutGet(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, t.TempDir(), "evercookieDB", 2, createStore("store"))
	require.NoError(t, err)
	defer db.Close()

	tx, err := db.Transaction(ctx, "store", ReadWrite)
	require.NoError(t, err)
	_, found, err := tx.Get(ctx, "id")
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, tx.Put(ctx, "id", "abc123"))
	require.NoError(t, tx.Put(ctx, "id", "def456"))
	require.NoError(t, tx.Commit())

	tx, err = db.Transaction(ctx, "store", ReadOnly)
	require.NoError(t, err)
	defer tx.Rollback()
	value, found, err := tx.Get(ctx, "id")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "def456", value)

	assert.ErrorIs(t, tx.Put(ctx, "id", "x"), ErrReadOnly)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, t.TempDir(), "evercookieDB", 2, createStore("store"))
	require.NoError(t, err)
	defer db.Close()

	tx, err := db.Transaction(ctx, "store", ReadWrite)
	require.NoError(t, err)
	require.NoError(t, tx.Put(ctx, "id", "abc123"))
	require.NoError(t, tx.Rollback())
	assert.ErrorIs(t, tx.Commit(), ErrTxDone)

	tx, err = db.Transaction(ctx, "store", ReadOnly)
	require.NoError(t, err)
	defer tx.Rollback()
	_, found, err := tx.Get(ctx, "id")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDataSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := Open(ctx, dir, "evercookieDB", 2, createStore("store"))
	require.NoError(t, err)
	tx, err := db.Transaction(ctx, "store", ReadWrite)
	require.NoError(t, err)
	require.NoError(t, tx.Put(ctx, "id", "abc123"))
	require.NoError(t, tx.Commit())
	require.NoError(t, db.Close())

	upgraded := false
	db, err = Open(ctx, dir, "evercookieDB", 2, func(context.Context, *Upgrade, int, int) error {
		upgraded = true
		return nil
	})
	require.NoError(t, err)
	defer db.Close()
	assert.False(t, upgraded, "no upgrade at the same version")

	tx, err = db.Transaction(ctx, "store", ReadOnly)
	require.NoError(t, err)
	defer tx.Rollback()
	value, found, err := tx.Get(ctx, "id")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "abc123", value)
}

func TestUpgradeSeesVersions(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := Open(ctx, dir, "c", 1, createStore("a"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	var oldV, newV int
	db, err = Open(ctx, dir, "c", 3, func(ctx context.Context, u *Upgrade, o, n int) error {
		oldV, newV = o, n
		ok, err := u.HasObjectStore(ctx, "a")
		if err != nil || !ok {
			t.Errorf("expected object store a to exist: %v", err)
		}
		return u.CreateObjectStore(ctx, "b")
	})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 1, oldV)
	assert.Equal(t, 3, newV)
	names, err := db.ObjectStoreNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestFailedUpgradeKeepsVersion(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	_, err := Open(ctx, dir, "c", 2, func(ctx context.Context, u *Upgrade, _, _ int) error {
		require.NoError(t, u.CreateObjectStore(ctx, "store"))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	// the version change was rolled back, so the next open upgrades again
	upgraded := false
	db, err := Open(ctx, dir, "c", 2, func(ctx context.Context, u *Upgrade, oldVersion, _ int) error {
		upgraded = true
		assert.Equal(t, 0, oldVersion)
		return nil
	})
	require.NoError(t, err)
	defer db.Close()
	assert.True(t, upgraded)
}

func TestOpenLowerVersion(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := Open(ctx, dir, "evercookieDB", 3, createStore("store"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(ctx, dir, "evercookieDB", 2, createStore("store"))
	assert.ErrorIs(t, err, ErrVersion)
}

func TestMissingStore(t *testing.T) {
	ctx := context.Background()

	// version is stored but the object store was never created
	db, err := Open(ctx, t.TempDir(), "evercookieDB", 2, nil)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Transaction(ctx, "store", ReadOnly)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteDatabase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	db, err := Open(ctx, dir, "evercookieDB", 2, createStore("store"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	require.NoError(t, DeleteDatabase(dir, "evercookieDB"))
	_, err = os.Stat(Path(dir, "evercookieDB"))
	assert.True(t, os.IsNotExist(err))

	// deleting again is fine
	require.NoError(t, DeleteDatabase(dir, "evercookieDB"))
}

func TestClosed(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, t.TempDir(), "evercookieDB", 2, createStore("store"))
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err = db.Transaction(ctx, "store", ReadOnly)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestInvalidArguments(t *testing.T) {
	ctx := context.Background()
	_, err := Open(ctx, t.TempDir(), "", 1, nil)
	assert.Error(t, err)
	_, err = Open(ctx, t.TempDir(), "c", 0, nil)
	assert.Error(t, err)
}
