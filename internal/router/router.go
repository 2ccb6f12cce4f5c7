// ABOUTME: Router resolves agent names to concrete locations and acts on them.
// ABOUTME: Four-tier fallback: directory cache, local registry, local scan, remote fan-out.

package router

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/lyndonkl/agentmesh/internal/actor"
	"github.com/lyndonkl/agentmesh/internal/cluster"
	"github.com/lyndonkl/agentmesh/internal/directory"
	"github.com/lyndonkl/agentmesh/internal/supervisor"
	"github.com/lyndonkl/agentmesh/internal/telemetry"
)

// ErrAgentNotFound indicates resolution exhausted every tier. Callers only
// ever see "found" or "not found": an agent that never existed, crashed
// past its restart budget, or sits on an unreachable host all look the same.
var ErrAgentNotFound = errors.New("agent not found")

// MemberLister exposes the cluster hosts available for remote fan-out.
type MemberLister interface {
	KnownHosts() []string
}

// RemoteCaller performs remote invocations against a cluster member.
// Implementations must return cluster.ErrHostUnreachable for transport
// failures and cluster.ErrRemoteNotFound for clean negative answers.
type RemoteCaller interface {
	Lookup(ctx context.Context, host, name string) (addr string, found bool, err error)
	AgentState(ctx context.Context, host, name string) (actor.Snapshot, error)
	SubmitTask(ctx context.Context, host, name, action string, params map[string]string) (actor.Task, error)
	ProcessNext(ctx context.Context, host, name string) (actor.TaskResult, error)
	Agents(ctx context.Context, host string) ([]directory.Entry, error)
}

// Router hides whether a named agent is local or remote. Every operation
// resolves the name first, then dispatches in-process or forwards to the
// owning host.
type Router struct {
	host    string
	dir     *directory.Directory
	sup     *supervisor.Supervisor
	rt      *actor.Runtime
	members MemberLister
	remote  RemoteCaller

	fanoutTimeout time.Duration
	logger        *slog.Logger
}

// New creates a Router for this node.
func New(host string, dir *directory.Directory, sup *supervisor.Supervisor, rt *actor.Runtime,
	members MemberLister, remote RemoteCaller, fanoutTimeout time.Duration, logger *slog.Logger) *Router {
	return &Router{
		host:          host,
		dir:           dir,
		sup:           sup,
		rt:            rt,
		members:       members,
		remote:        remote,
		fanoutTimeout: fanoutTimeout,
		logger:        logger.With("component", "router"),
	}
}

// FindAgent resolves an agent name to its (host, address) location,
// evaluating the tiers in order and short-circuiting on the first hit.
// Every tier below the cache populates the directory for future hits.
func (r *Router) FindAgent(ctx context.Context, name string) (directory.Entry, error) {
	// Tier 1: directory cache. Remote entries are trusted without a
	// liveness probe; a local entry whose address is confirmed dead is
	// purged so the lower tiers can repair it.
	if entry, ok := r.dir.Lookup(name); ok {
		if entry.Host != r.host {
			telemetry.Resolutions.WithLabelValues(telemetry.TierCache).Inc()
			return entry, nil
		}
		if r.rt.IsAlive(entry.Addr) {
			telemetry.Resolutions.WithLabelValues(telemetry.TierCache).Inc()
			return entry, nil
		}
		r.logger.Debug("purging stale directory entry", "agent", name, "addr", entry.Addr)
		r.dir.Unregister(name)
	}

	// Tier 2: local supervisor lookup by exact name.
	if ref, ok := r.sup.Resolve(name); ok {
		entry := directory.Entry{Name: name, Host: r.host, Addr: ref.ID()}
		r.dir.Register(entry.Name, entry.Host, entry.Addr)
		telemetry.Resolutions.WithLabelValues(telemetry.TierLocal).Inc()
		return entry, nil
	}

	// Tier 3: exhaustive scan of local actors by reported name. Catches
	// actors running outside the supervisor's registry.
	for _, ref := range r.rt.List() {
		if ref.Name() == name {
			entry := directory.Entry{Name: name, Host: r.host, Addr: ref.ID()}
			r.dir.Register(entry.Name, entry.Host, entry.Addr)
			telemetry.Resolutions.WithLabelValues(telemetry.TierScan).Inc()
			return entry, nil
		}
	}

	// Tier 4: remote fan-out, first positive response wins.
	if entry, ok := r.findRemote(ctx, name); ok {
		telemetry.Resolutions.WithLabelValues(telemetry.TierRemote).Inc()
		return entry, nil
	}

	telemetry.ResolutionMisses.Inc()
	return directory.Entry{}, ErrAgentNotFound
}

// findRemote queries every known member concurrently under a shared
// deadline so a slow or dead member cannot stall resolution.
func (r *Router) findRemote(ctx context.Context, name string) (directory.Entry, bool) {
	hosts := r.members.KnownHosts()
	if len(hosts) == 0 {
		return directory.Entry{}, false
	}

	ctx, cancel := context.WithTimeout(ctx, r.fanoutTimeout)
	defer cancel()

	type hit struct {
		host string
		addr string
	}
	hits := make(chan hit, len(hosts))
	var wg sync.WaitGroup

	for _, host := range hosts {
		wg.Add(1)
		go func(host string) {
			defer wg.Done()
			addr, found, err := r.remote.Lookup(ctx, host, name)
			if err != nil {
				if errors.Is(err, cluster.ErrHostUnreachable) {
					telemetry.RemoteCallFailures.WithLabelValues(host).Inc()
				}
				return
			}
			if found {
				hits <- hit{host: host, addr: addr}
			}
		}(host)
	}

	go func() {
		wg.Wait()
		close(hits)
	}()

	h, ok := <-hits
	if !ok {
		return directory.Entry{}, false
	}
	r.dir.Register(name, h.host, h.addr)
	return directory.Entry{Name: name, Host: h.host, Addr: h.addr}, true
}

// ResolveLocal runs tiers 1-3 only, never fanning out. Served to remote
// peers through the cluster lookup endpoint so fan-out cannot loop.
func (r *Router) ResolveLocal(name string) (directory.Entry, bool) {
	if entry, ok := r.dir.Lookup(name); ok && entry.Host == r.host {
		if r.rt.IsAlive(entry.Addr) {
			return entry, true
		}
		r.dir.Unregister(name)
	}

	if ref, ok := r.sup.Resolve(name); ok {
		entry := directory.Entry{Name: name, Host: r.host, Addr: ref.ID()}
		r.dir.Register(entry.Name, entry.Host, entry.Addr)
		return entry, true
	}

	for _, ref := range r.rt.List() {
		if ref.Name() == name {
			entry := directory.Entry{Name: name, Host: r.host, Addr: ref.ID()}
			r.dir.Register(entry.Name, entry.Host, entry.Addr)
			return entry, true
		}
	}

	return directory.Entry{}, false
}

// GetAgentState returns the state snapshot of the named agent, wherever
// it lives.
func (r *Router) GetAgentState(ctx context.Context, name string) (actor.Snapshot, error) {
	entry, err := r.FindAgent(ctx, name)
	if err != nil {
		return actor.Snapshot{}, err
	}

	if entry.Host == r.host {
		ref, ok := r.rt.Resolve(entry.Addr)
		if !ok {
			r.dir.Unregister(name)
			return actor.Snapshot{}, ErrAgentNotFound
		}
		snap, err := r.rt.State(ctx, ref)
		if err != nil {
			return actor.Snapshot{}, r.localCallError(name, err)
		}
		return snap, nil
	}

	snap, err := r.remote.AgentState(ctx, entry.Host, name)
	if err != nil {
		return actor.Snapshot{}, r.remoteCallError(name, entry.Host, err)
	}
	return snap, nil
}

// SendTask queues a task for the named agent and returns the queued task.
func (r *Router) SendTask(ctx context.Context, name, action string, params map[string]string) (actor.Task, error) {
	entry, err := r.FindAgent(ctx, name)
	if err != nil {
		return actor.Task{}, err
	}

	if entry.Host == r.host {
		ref, ok := r.rt.Resolve(entry.Addr)
		if !ok {
			r.dir.Unregister(name)
			return actor.Task{}, ErrAgentNotFound
		}
		task, err := r.rt.Submit(ctx, ref, action, params)
		if err != nil {
			return actor.Task{}, r.localCallError(name, err)
		}
		return task, nil
	}

	task, err := r.remote.SubmitTask(ctx, entry.Host, name, action, params)
	if err != nil {
		return actor.Task{}, r.remoteCallError(name, entry.Host, err)
	}
	return task, nil
}

// ProcessNext has the named agent process the oldest task in its inbox.
func (r *Router) ProcessNext(ctx context.Context, name string) (actor.TaskResult, error) {
	entry, err := r.FindAgent(ctx, name)
	if err != nil {
		return actor.TaskResult{}, err
	}

	if entry.Host == r.host {
		ref, ok := r.rt.Resolve(entry.Addr)
		if !ok {
			r.dir.Unregister(name)
			return actor.TaskResult{}, ErrAgentNotFound
		}
		result, err := r.rt.ProcessNext(ctx, ref)
		if err != nil {
			return actor.TaskResult{}, r.localCallError(name, err)
		}
		telemetry.TasksProcessed.WithLabelValues(result.Status).Inc()
		return result, nil
	}

	result, err := r.remote.ProcessNext(ctx, entry.Host, name)
	if err != nil {
		return actor.TaskResult{}, r.remoteCallError(name, entry.Host, err)
	}
	return result, nil
}

// ListAllAgents returns the union of local agents and every reachable
// member's local agents. Unreachable members silently contribute nothing.
func (r *Router) ListAllAgents(ctx context.Context) []directory.Entry {
	entries := r.ListLocalAgents()

	hosts := r.members.KnownHosts()
	if len(hosts) > 0 {
		ctx, cancel := context.WithTimeout(ctx, r.fanoutTimeout)
		defer cancel()

		results := make(chan []directory.Entry, len(hosts))
		var wg sync.WaitGroup
		for _, host := range hosts {
			wg.Add(1)
			go func(host string) {
				defer wg.Done()
				agents, err := r.remote.Agents(ctx, host)
				if err != nil {
					telemetry.RemoteCallFailures.WithLabelValues(host).Inc()
					return
				}
				results <- agents
			}(host)
		}
		wg.Wait()
		close(results)

		for agents := range results {
			entries = append(entries, agents...)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].Host < entries[j].Host
	})
	return entries
}

// ListLocalAgents enumerates every actor running on this node.
func (r *Router) ListLocalAgents() []directory.Entry {
	refs := r.rt.List()
	entries := make([]directory.Entry, 0, len(refs))
	for _, ref := range refs {
		entries = append(entries, directory.Entry{Name: ref.Name(), Host: r.host, Addr: ref.ID()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// RegisterAgent records an agent's location in the directory. Invoked by
// whichever component starts agents locally so the cluster cache stays current.
func (r *Router) RegisterAgent(name, host, addr string) {
	r.dir.Register(name, host, addr)
}

// UnregisterAgent removes an agent's directory entry.
func (r *Router) UnregisterAgent(name string) {
	r.dir.Unregister(name)
}

// localCallError maps a failed local actor call. An actor that died
// between resolution and invocation reads as not found; its stale
// directory entry is purged so the next resolution repairs it.
func (r *Router) localCallError(name string, err error) error {
	if errors.Is(err, actor.ErrStopped) {
		r.dir.Unregister(name)
		return ErrAgentNotFound
	}
	return err
}

// remoteCallError collapses every remote failure into "agent not found"
// and self-heals the stale directory entry. Callers never see transport
// errors.
func (r *Router) remoteCallError(name, host string, err error) error {
	if errors.Is(err, cluster.ErrHostUnreachable) {
		telemetry.RemoteCallFailures.WithLabelValues(host).Inc()
	}
	r.logger.Debug("remote call failed", "agent", name, "host", host, "error", err)
	r.dir.Unregister(name)
	return ErrAgentNotFound
}
