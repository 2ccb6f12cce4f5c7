// ABOUTME: Tests for the concurrent agent location cache.
// ABOUTME: Covers register, lookup, host scoped queries, and bulk purge.

package directory

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectory_RegisterAndLookup(t *testing.T) {
	d := New(slog.Default())

	d.Register("worker-1", "node-a", "addr-1")

	entry, ok := d.Lookup("worker-1")
	require.True(t, ok)
	assert.Equal(t, Entry{Name: "worker-1", Host: "node-a", Addr: "addr-1"}, entry)

	_, ok = d.Lookup("ghost")
	assert.False(t, ok)
}

func TestDirectory_RegisterOverwrites(t *testing.T) {
	d := New(slog.Default())

	d.Register("worker-1", "node-a", "addr-1")
	d.Register("worker-1", "node-b", "addr-2")

	entry, ok := d.Lookup("worker-1")
	require.True(t, ok)
	assert.Equal(t, "node-b", entry.Host)
	assert.Equal(t, "addr-2", entry.Addr)
	assert.Equal(t, 1, d.Len())
}

func TestDirectory_Unregister(t *testing.T) {
	d := New(slog.Default())

	d.Register("worker-1", "node-a", "addr-1")
	d.Unregister("worker-1")

	_, ok := d.Lookup("worker-1")
	assert.False(t, ok)

	// Unregistering an absent name is a no-op.
	d.Unregister("worker-1")
}

func TestDirectory_AllEntriesSorted(t *testing.T) {
	d := New(slog.Default())

	d.Register("zeta", "node-a", "addr-3")
	d.Register("alpha", "node-b", "addr-1")
	d.Register("mid", "node-a", "addr-2")

	entries := d.AllEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, "alpha", entries[0].Name)
	assert.Equal(t, "mid", entries[1].Name)
	assert.Equal(t, "zeta", entries[2].Name)
}

func TestDirectory_EntriesOnHost(t *testing.T) {
	d := New(slog.Default())

	d.Register("a", "node-a", "addr-1")
	d.Register("b", "node-b", "addr-2")
	d.Register("c", "node-a", "addr-3")

	entries := d.EntriesOnHost("node-a")
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, "c", entries[1].Name)

	assert.Empty(t, d.EntriesOnHost("node-z"))
}

func TestDirectory_RemoveHostEntries(t *testing.T) {
	d := New(slog.Default())

	d.Register("a", "node-a", "addr-1")
	d.Register("b", "node-b", "addr-2")
	d.Register("c", "node-a", "addr-3")

	removed := d.RemoveHostEntries("node-a")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, d.Len())

	_, ok := d.Lookup("a")
	assert.False(t, ok)
	_, ok = d.Lookup("b")
	assert.True(t, ok)

	assert.Equal(t, 0, d.RemoveHostEntries("node-a"))
}

func TestDirectory_ConcurrentAccess(t *testing.T) {
	d := New(slog.Default())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				name := fmt.Sprintf("agent-%d-%d", i, j)
				d.Register(name, "node-a", "addr")
				d.Lookup(name)
				if j%2 == 0 {
					d.Unregister(name)
				}
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8*50, d.Len())
}
