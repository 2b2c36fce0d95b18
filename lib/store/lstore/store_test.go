package lstore

import (
	"errors"
	"strings"
	"testing"

	"github.com/ValentinKolb/evercookie/lib/db"
	"github.com/ValentinKolb/evercookie/lib/db/engines/maple"
	"github.com/ValentinKolb/evercookie/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(opts *Options) store.IStore {
	return NewLocalStore(func() db.KVDB { return maple.NewMapleDB(nil) }, opts)
}

func TestItems(t *testing.T) {
	s := newStore(nil)
	defer s.Close()

	_, ok, err := s.GetItem("id")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetItem("id", "abc123"))
	value, ok, err := s.GetItem("id")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc123", value)

	n, err := s.Length()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.RemoveItem("id"))
	require.NoError(t, s.RemoveItem("id"))
	_, ok, _ = s.GetItem("id")
	assert.False(t, ok)
}

func TestClear(t *testing.T) {
	s := newStore(nil)
	defer s.Close()

	require.NoError(t, s.SetItem("a", "1"))
	require.NoError(t, s.SetItem("b", "2"))
	require.NoError(t, s.Clear())

	n, err := s.Length()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestQuota(t *testing.T) {
	s := newStore(&Options{QuotaBytes: 10})
	defer s.Close()

	require.NoError(t, s.SetItem("k", "123456789"))

	err := s.SetItem("x", "y")
	require.Error(t, err)
	assert.True(t, errors.Is(err, &store.Error{Code: store.RetCQuotaExceeded}))

	// overwriting with a value of equal size fits
	require.NoError(t, s.SetItem("k", "987654321"))

	// removing frees the space again
	require.NoError(t, s.RemoveItem("k"))
	require.NoError(t, s.SetItem("x", "y"))
}

func TestUnlimitedQuota(t *testing.T) {
	s := newStore(&Options{QuotaBytes: -1})
	defer s.Close()

	require.NoError(t, s.SetItem("big", strings.Repeat("x", DefaultQuotaBytes+1)))
}

func TestClosed(t *testing.T) {
	s := newStore(nil)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err := s.SetItem("id", "abc123")
	assert.True(t, errors.Is(err, &store.Error{Code: store.RetCClosed}))
}
