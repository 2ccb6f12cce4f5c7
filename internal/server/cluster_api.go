// ABOUTME: Cluster-internal HTTP endpoints answered on behalf of peer nodes.
// ABOUTME: Handlers resolve locally only so cross-node fan-out cannot loop.

package server

import (
	"encoding/json"
	"net/http"

	"github.com/lyndonkl/agentmesh/internal/actor"
	"github.com/lyndonkl/agentmesh/internal/cluster"
	"github.com/lyndonkl/agentmesh/internal/telemetry"
)

func (n *Node) registerClusterRoutes(mux *http.ServeMux) {
	handle := func(path string, h http.HandlerFunc) {
		if n.tokens != nil {
			mux.Handle(path, n.tokens.Middleware(h))
		} else {
			mux.HandleFunc(path, h)
		}
	}

	handle("/cluster/lookup", n.handleClusterLookup)
	handle("/cluster/state", n.handleClusterState)
	handle("/cluster/task", n.handleClusterTask)
	handle("/cluster/process", n.handleClusterProcess)
	handle("/cluster/agents", n.handleClusterAgents)

	if n.tokens == nil {
		n.logger.Warn("cluster endpoints unauthenticated - no cluster_secret configured")
	}
}

// handleClusterLookup answers a peer's resolution query with a local-only
// lookup. A miss is a clean negative answer, not an error.
func (n *Node) handleClusterLookup(w http.ResponseWriter, r *http.Request) {
	var req cluster.LookupRequest
	if !n.decodeClusterRequest(w, r, &req) {
		return
	}

	entry, found := n.rtr.ResolveLocal(req.Name)
	resp := cluster.LookupResponse{Found: found}
	if found {
		resp.Addr = entry.Addr
	}
	n.sendJSON(w, resp)
}

// handleClusterState serves an agent snapshot to a peer.
func (n *Node) handleClusterState(w http.ResponseWriter, r *http.Request) {
	var req cluster.AgentRequest
	if !n.decodeClusterRequest(w, r, &req) {
		return
	}

	ref, ok := n.resolveLocalRef(req.Name)
	if !ok {
		n.sendJSONError(w, http.StatusNotFound, "agent not found")
		return
	}

	snap, err := n.runtime.State(r.Context(), ref)
	if err != nil {
		n.sendJSONError(w, http.StatusNotFound, "agent not found")
		return
	}
	n.sendJSON(w, snap)
}

// handleClusterTask queues a task on a local agent for a peer.
func (n *Node) handleClusterTask(w http.ResponseWriter, r *http.Request) {
	var req cluster.TaskRequest
	if !n.decodeClusterRequest(w, r, &req) {
		return
	}

	ref, ok := n.resolveLocalRef(req.Name)
	if !ok {
		n.sendJSONError(w, http.StatusNotFound, "agent not found")
		return
	}

	task, err := n.runtime.Submit(r.Context(), ref, req.Action, req.Params)
	if err != nil {
		n.sendJSONError(w, http.StatusNotFound, "agent not found")
		return
	}
	n.sendJSON(w, task)
}

// handleClusterProcess runs one task on a local agent for a peer.
func (n *Node) handleClusterProcess(w http.ResponseWriter, r *http.Request) {
	var req cluster.AgentRequest
	if !n.decodeClusterRequest(w, r, &req) {
		return
	}

	ref, ok := n.resolveLocalRef(req.Name)
	if !ok {
		n.sendJSONError(w, http.StatusNotFound, "agent not found")
		return
	}

	result, err := n.runtime.ProcessNext(r.Context(), ref)
	if err != nil {
		n.sendJSONError(w, http.StatusNotFound, "agent not found")
		return
	}
	telemetry.TasksProcessed.WithLabelValues(result.Status).Inc()
	n.sendJSON(w, result)
}

// handleClusterAgents lists this node's local agents for a peer.
func (n *Node) handleClusterAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		n.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	n.sendJSON(w, cluster.AgentsResponse{Agents: n.rtr.ListLocalAgents()})
}

// resolveLocalRef resolves a name to a live local actor ref without
// touching the remote tier.
func (n *Node) resolveLocalRef(name string) (*actor.Ref, bool) {
	entry, found := n.rtr.ResolveLocal(name)
	if !found {
		return nil, false
	}
	return n.runtime.Resolve(entry.Addr)
}

func (n *Node) decodeClusterRequest(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		n.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		n.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
