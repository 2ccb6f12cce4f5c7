// ABOUTME: Directory is the cluster-wide agent name to (host, address) cache.
// ABOUTME: Lock-free concurrent reads over sync.Map; every write is independently atomic.

package directory

import (
	"log/slog"
	"sort"
	"sync"
)

// Entry maps an agent name to its last known location. Entries are
// advisory: a hit means "last known location", never proof of liveness.
type Entry struct {
	Name string `json:"name"`
	Host string `json:"host"`
	Addr string `json:"addr"`
}

// Directory is a concurrent-read name table. Lookups are the hottest path
// in the system and never funnel through a lock; writes are rare
// (agent start/stop, host join/leave) and each is independently atomic.
type Directory struct {
	entries sync.Map // name -> Entry
	logger  *slog.Logger
}

// New creates an empty Directory.
func New(logger *slog.Logger) *Directory {
	return &Directory{logger: logger.With("component", "directory")}
}

// Register upserts an entry. Last write wins; re-registering identical
// values is a no-op in effect.
func (d *Directory) Register(name, host, addr string) {
	d.entries.Store(name, Entry{Name: name, Host: host, Addr: addr})
	d.logger.Debug("registered agent location", "agent", name, "host", host, "addr", addr)
}

// Unregister removes the entry if present; no-op otherwise.
func (d *Directory) Unregister(name string) {
	d.entries.Delete(name)
}

// Lookup returns the cached location for a name. Safe under unbounded
// concurrent callers.
func (d *Directory) Lookup(name string) (Entry, bool) {
	v, ok := d.entries.Load(name)
	if !ok {
		return Entry{}, false
	}
	return v.(Entry), true
}

// AllEntries returns every cached entry, sorted by name.
func (d *Directory) AllEntries() []Entry {
	var out []Entry
	d.entries.Range(func(_, v any) bool {
		out = append(out, v.(Entry))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// EntriesOnHost returns every cached entry for the given host, sorted by name.
func (d *Directory) EntriesOnHost(host string) []Entry {
	var out []Entry
	d.entries.Range(func(_, v any) bool {
		e := v.(Entry)
		if e.Host == host {
			out = append(out, e)
		}
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RemoveHostEntries bulk-deletes all entries for a host, returning how
// many were removed. Used when the host is known to have left the cluster
// so lookups stop routing to it.
func (d *Directory) RemoveHostEntries(host string) int {
	removed := 0
	d.entries.Range(func(k, v any) bool {
		if v.(Entry).Host == host {
			d.entries.Delete(k)
			removed++
		}
		return true
	})
	if removed > 0 {
		d.logger.Info("evicted directory entries for host", "host", host, "removed", removed)
	}
	return removed
}

// Len returns the number of cached entries.
func (d *Directory) Len() int {
	n := 0
	d.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
