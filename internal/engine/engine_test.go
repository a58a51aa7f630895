package engine

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func tempDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "kvs-engine-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestSetGetRoundTrip(t *testing.T) {
	e, err := Open(tempDir(t), Config{}, nil)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Set("k1", "v1"))
	value, ok, err := e.Get("k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", value)

	_, ok, err = e.Get("k2")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestOverwriteThenRemove(t *testing.T) {
	e, err := Open(tempDir(t), Config{}, nil)
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Set("k", "a"))
	require.NoError(t, e.Set("k", "b"))
	require.NoError(t, e.Set("k", "c"))
	require.NoError(t, e.Remove("k"))

	_, ok, err := e.Get("k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRemoveAbsentKeyFails(t *testing.T) {
	e, err := Open(tempDir(t), Config{}, nil)
	require.NoError(t, err)
	defer e.Close()

	err = e.Remove("nope")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestRecoveryAfterRestart(t *testing.T) {
	dir := tempDir(t)

	e, err := Open(dir, Config{}, nil)
	require.NoError(t, err)
	require.NoError(t, e.Set("k", "a"))
	require.NoError(t, e.Set("k", "b"))
	require.NoError(t, e.Set("k", "c"))
	require.NoError(t, e.Remove("k"))
	require.NoError(t, e.Close())

	reopened, err := Open(dir, Config{}, nil)
	require.NoError(t, err)
	defer reopened.Close()

	_, ok, err := reopened.Get("k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRecoveryRebuildsLiveKeys(t *testing.T) {
	dir := tempDir(t)

	e, err := Open(dir, Config{}, nil)
	require.NoError(t, err)
	require.NoError(t, e.Set("a", "1"))
	require.NoError(t, e.Set("b", "2"))
	require.NoError(t, e.Set("a", "3"))
	require.NoError(t, e.Close())

	reopened, err := Open(dir, Config{}, nil)
	require.NoError(t, err)
	defer reopened.Close()

	value, ok, err := reopened.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "3", value)

	value, ok, err = reopened.Get("b")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "2", value)
}

func TestRecoveryStopsAtTornTail(t *testing.T) {
	dir := tempDir(t)

	e, err := Open(dir, Config{}, nil)
	require.NoError(t, err)
	require.NoError(t, e.Set("k1", "v1"))
	require.NoError(t, e.Close())

	segs, err := listSegments(dir)
	require.NoError(t, err)
	require.Len(t, segs, 1)

	f, err := os.OpenFile(segs[0].path, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	// Corrupt the tail with a few garbage bytes representing a partial
	// second record, simulating a crash mid-append.
	_, err = f.Write([]byte{0, 0, 0, 0, 0, 0, 0, 5, 1, 2})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, err := Open(dir, Config{}, nil)
	require.NoError(t, err)
	defer reopened.Close()

	value, ok, err := reopened.Get("k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v1", value)
}

func TestConcurrentSetsOnSharedKeys(t *testing.T) {
	e, err := Open(tempDir(t), Config{}, nil)
	require.NoError(t, err)
	defer e.Close()

	const numGoroutines = 10
	const numSets = 1000

	var wg sync.WaitGroup
	for g := 0; g < numGoroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < numSets; i++ {
				key := strconv.Itoa(i % 100)
				require.NoError(t, e.Set(key, key))
			}
		}()
	}
	wg.Wait()

	for i := 0; i < 100; i++ {
		key := strconv.Itoa(i)
		value, ok, err := e.Get(key)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, key, value)
	}
}

func TestCompactionReclaimsSegmentsAndPreservesValues(t *testing.T) {
	dir := tempDir(t)
	cfg := Config{}
	cfg.Segment.MaxBytes = 4096
	cfg.CompactionThresholdBytes = 8192

	e, err := Open(dir, cfg, nil)
	require.NoError(t, err)
	defer e.Close()

	bigValue := make([]byte, 256)
	for i := range bigValue {
		bigValue[i] = 'x'
	}
	for i := 0; i < 200; i++ {
		require.NoError(t, e.Set("hot", string(bigValue)))
	}

	value, ok, err := e.Get("hot")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, string(bigValue), value)

	segs, err := listSegments(dir)
	require.NoError(t, err)
	require.Less(t, len(segs), 200)
	// Compaction deletes its victims, so the original active segment
	// (id 0) is gone.
	require.NotEqual(t, uint64(0), segs[0].id)
}

func TestStatsReflectsUncompactedBytes(t *testing.T) {
	e, err := Open(tempDir(t), Config{}, nil)
	require.NoError(t, err)
	defer e.Close()

	before := e.Stats().UncompactedBytes
	require.NoError(t, e.Set("k", "v1"))
	require.NoError(t, e.Set("k", "v2"))
	after := e.Stats().UncompactedBytes
	require.Greater(t, after, before)
	require.False(t, e.Stats().CompactionActive)
}

func TestOpenEmptyDirectory(t *testing.T) {
	e, err := Open(tempDir(t), Config{}, nil)
	require.NoError(t, err)
	defer e.Close()

	_, ok, err := e.Get(fmt.Sprintf("anything-%d", 1))
	require.NoError(t, err)
	require.False(t, ok)
}
