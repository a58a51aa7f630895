package server

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arrowkv/kvs/internal/client"
	"github.com/arrowkv/kvs/internal/engine"
	"github.com/arrowkv/kvs/internal/threadpool"
)

func startTestServer(t *testing.T) (*Server, string) {
	dir, err := os.MkdirTemp("", "kvs-server-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	eng, err := engine.Open(dir, engine.Config{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })

	pool := threadpool.NewSharedQueue(2, nil)
	t.Cleanup(pool.Shutdown)

	srv, err := New("127.0.0.1:0", eng, pool, nil)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	go srv.Serve()

	return srv, srv.Addr().String()
}

func TestServerSetGetRemoveOverWire(t *testing.T) {
	_, addr := startTestServer(t)

	c, err := client.Dial(addr)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set("k1", "v1"))

	value, err := c.Get("k1")
	require.NoError(t, err)
	require.Equal(t, "v1", value)

	// GET miss returns the preserved legacy "Key not found" string value,
	// not an error (spec §9).
	value, err = c.Get("missing")
	require.NoError(t, err)
	require.Equal(t, "Key not found", value)

	require.NoError(t, c.Remove("k1"))

	err = c.Remove("k1")
	require.Error(t, err)
	var srvErr *client.ErrServer
	require.ErrorAs(t, err, &srvErr)
	require.Equal(t, "Key not found", srvErr.Message)
}

func TestServerServesMultipleConnections(t *testing.T) {
	_, addr := startTestServer(t)

	c1, err := client.Dial(addr)
	require.NoError(t, err)
	defer c1.Close()
	c2, err := client.Dial(addr)
	require.NoError(t, err)
	defer c2.Close()

	require.NoError(t, c1.Set("a", "1"))
	require.NoError(t, c2.Set("b", "2"))

	v, err := c2.Get("a")
	require.NoError(t, err)
	require.Equal(t, "1", v)
}
