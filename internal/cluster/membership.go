// ABOUTME: Static cluster membership: this node's identity plus its known peers.
// ABOUTME: Leave notifications drive bulk eviction of directory entries.

package cluster

import (
	"log/slog"
	"sort"
	"sync"
)

// Peer describes one remote cluster member.
type Peer struct {
	Host string
	URL  string
}

// Membership tracks which hosts participate in the cluster. The peer set
// comes from configuration; hosts observed as unreachable can be removed,
// firing leave notifications so stale directory entries get evicted.
type Membership struct {
	self string

	mu      sync.RWMutex
	peers   map[string]Peer
	onLeave []func(host string)

	logger *slog.Logger
}

// NewMembership creates a membership view for this node.
func NewMembership(self string, peers []Peer, logger *slog.Logger) *Membership {
	m := &Membership{
		self:   self,
		peers:  make(map[string]Peer, len(peers)),
		logger: logger.With("component", "cluster"),
	}
	for _, p := range peers {
		if p.Host == self {
			continue
		}
		m.peers[p.Host] = p
	}
	return m
}

// Self returns this node's host identifier.
func (m *Membership) Self() string { return m.self }

// KnownHosts returns the remote member hosts, sorted for stable fan-out order.
func (m *Membership) KnownHosts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hosts := make([]string, 0, len(m.peers))
	for h := range m.peers {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}

// BaseURL returns the base URL for a member host.
func (m *Membership) BaseURL(host string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.peers[host]
	return p.URL, ok
}

// Add inserts or replaces a peer.
func (m *Membership) Add(p Peer) {
	if p.Host == m.self {
		return
	}
	m.mu.Lock()
	m.peers[p.Host] = p
	m.mu.Unlock()
	m.logger.Info("cluster member added", "host", p.Host, "url", p.URL)
}

// Remove drops a peer and fires leave notifications. Removing an unknown
// host is a no-op.
func (m *Membership) Remove(host string) {
	m.mu.Lock()
	_, ok := m.peers[host]
	if ok {
		delete(m.peers, host)
	}
	subs := make([]func(string), len(m.onLeave))
	copy(subs, m.onLeave)
	m.mu.Unlock()

	if !ok {
		return
	}
	m.logger.Info("cluster member removed", "host", host)
	for _, fn := range subs {
		fn(host)
	}
}

// NotifyLeave registers a callback fired when a member leaves the cluster.
func (m *Membership) NotifyLeave(fn func(host string)) {
	m.mu.Lock()
	m.onLeave = append(m.onLeave, fn)
	m.mu.Unlock()
}
