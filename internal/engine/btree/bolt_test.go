package btree

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arrowkv/kvs/internal/store"
)

func TestBoltEngineSetGetRemove(t *testing.T) {
	dir, err := os.MkdirTemp("", "kvs-bolt-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	e, err := Open(dir)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Set("k", "v1"))
	value, ok, err := e.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", value)

	require.NoError(t, e.Set("k", "v2"))
	value, ok, err = e.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", value)

	require.NoError(t, e.Remove("k"))
	_, ok, err = e.Get("k")
	require.NoError(t, err)
	require.False(t, ok)

	err = e.Remove("k")
	require.ErrorIs(t, err, store.ErrKeyNotFound)
}
