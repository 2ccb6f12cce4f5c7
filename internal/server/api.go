// ABOUTME: Public HTTP API handlers for operators and external clients.
// ABOUTME: Covers agent lifecycle, task submission, lookup, and the event ledger.

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lyndonkl/agentmesh/internal/actor"
	"github.com/lyndonkl/agentmesh/internal/router"
	"github.com/lyndonkl/agentmesh/internal/store"
	"github.com/lyndonkl/agentmesh/internal/supervisor"
)

// CreateAgentRequest is the JSON request body for POST /api/agents.
type CreateAgentRequest struct {
	Name   string            `json:"name"`
	Memory map[string]string `json:"memory,omitempty"`
}

// CreateAgentResponse is the JSON response for POST /api/agents.
type CreateAgentResponse struct {
	Name string `json:"name"`
	Addr string `json:"addr"`
	Host string `json:"host"`
}

// SubmitTaskRequest is the JSON request body for POST /api/agents/{name}/tasks.
type SubmitTaskRequest struct {
	Action string            `json:"action"`
	Params map[string]string `json:"params,omitempty"`
}

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Host        string         `json:"host"`
	Agents      int            `json:"agents"`
	Policy      string         `json:"policy"`
	MaxRestarts int            `json:"max_restarts"`
	Restarts    map[string]int `json:"restarts,omitempty"`
	Peers       []string       `json:"peers"`
}

// EventResponse is the JSON shape of one ledger row in GET /api/events.
type EventResponse struct {
	ID       string `json:"id"`
	Node     string `json:"node"`
	Agent    string `json:"agent"`
	Event    string `json:"event"`
	Reason   string `json:"reason,omitempty"`
	Restarts int    `json:"restarts"`
	At       string `json:"at"`
}

func (n *Node) registerAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", n.handleHealth)
	mux.HandleFunc("/status", n.handleStatus)
	mux.HandleFunc("/api/agents", n.handleAgents)
	mux.HandleFunc("/api/agents/", n.handleAgentRoutes)
	mux.HandleFunc("/api/events", n.handleEvents)
}

// handleHealth handles GET /healthz requests.
func (n *Node) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleStatus handles GET /status requests.
func (n *Node) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		n.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	summary, err := n.sup.Status()
	if err != nil {
		n.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	n.sendJSON(w, StatusResponse{
		Host:        n.config.Node.Host,
		Agents:      summary.Count,
		Policy:      string(summary.Policy),
		MaxRestarts: summary.MaxRestarts,
		Restarts:    summary.Restarts,
		Peers:       n.members.KnownHosts(),
	})
}

// handleAgents handles GET and POST /api/agents.
// GET lists every agent visible across the cluster; POST starts a new
// supervised agent on this node.
func (n *Node) handleAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		n.sendJSON(w, n.rtr.ListAllAgents(r.Context()))
	case http.MethodPost:
		n.handleCreateAgent(w, r)
	default:
		n.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (n *Node) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req CreateAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		n.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Name == "" {
		n.sendJSONError(w, http.StatusBadRequest, "name is required")
		return
	}

	ref, err := n.sup.StartAgent(req.Name, actor.Options{Memory: req.Memory})
	if err != nil {
		if errors.Is(err, supervisor.ErrAlreadyExists) {
			n.sendJSONError(w, http.StatusConflict, "agent already exists")
			return
		}
		n.logger.Error("failed to start agent", "agent", req.Name, "error", err)
		n.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	n.sendJSONStatus(w, http.StatusCreated, CreateAgentResponse{
		Name: req.Name,
		Addr: ref.ID(),
		Host: n.config.Node.Host,
	})
}

// handleAgentRoutes dispatches /api/agents/{name} and its subresources.
func (n *Node) handleAgentRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/agents/")
	name, sub, _ := strings.Cut(rest, "/")
	if name == "" {
		n.sendJSONError(w, http.StatusBadRequest, "agent name is required")
		return
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		n.handleAgentState(w, r, name)
	case sub == "" && r.Method == http.MethodDelete:
		n.handleStopAgent(w, name)
	case sub == "tasks" && r.Method == http.MethodPost:
		n.handleSubmitTask(w, r, name)
	case sub == "process" && r.Method == http.MethodPost:
		n.handleProcessNext(w, r, name)
	case sub == "location" && r.Method == http.MethodGet:
		n.handleAgentLocation(w, r, name)
	default:
		n.sendJSONError(w, http.StatusNotFound, "not found")
	}
}

func (n *Node) handleAgentState(w http.ResponseWriter, r *http.Request, name string) {
	snap, err := n.rtr.GetAgentState(r.Context(), name)
	if err != nil {
		n.routerError(w, name, err)
		return
	}
	n.sendJSON(w, snap)
}

func (n *Node) handleStopAgent(w http.ResponseWriter, name string) {
	if err := n.sup.StopAgent(name); err != nil {
		n.logger.Error("failed to stop agent", "agent", name, "error", err)
		n.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (n *Node) handleSubmitTask(w http.ResponseWriter, r *http.Request, name string) {
	var req SubmitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		n.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Action == "" {
		n.sendJSONError(w, http.StatusBadRequest, "action is required")
		return
	}

	task, err := n.rtr.SendTask(r.Context(), name, req.Action, req.Params)
	if err != nil {
		n.routerError(w, name, err)
		return
	}

	n.sendJSONStatus(w, http.StatusAccepted, task)
}

func (n *Node) handleProcessNext(w http.ResponseWriter, r *http.Request, name string) {
	result, err := n.rtr.ProcessNext(r.Context(), name)
	if err != nil {
		n.routerError(w, name, err)
		return
	}
	n.sendJSON(w, result)
}

func (n *Node) handleAgentLocation(w http.ResponseWriter, r *http.Request, name string) {
	entry, err := n.rtr.FindAgent(r.Context(), name)
	if err != nil {
		n.routerError(w, name, err)
		return
	}
	n.sendJSON(w, entry)
}

// handleEvents handles GET /api/events, the supervision ledger query.
func (n *Node) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		n.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if n.ledger == nil {
		n.sendJSONError(w, http.StatusNotFound, "event ledger not configured")
		return
	}

	params := store.ListEventsParams{
		Agent: r.URL.Query().Get("agent"),
		Event: r.URL.Query().Get("event"),
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			n.sendJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		params.Limit = limit
	}

	events, err := n.ledger.ListEvents(r.Context(), params)
	if err != nil {
		n.logger.Error("failed to query event ledger", "error", err)
		n.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]EventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, EventResponse{
			ID:       ev.ID,
			Node:     ev.Node,
			Agent:    ev.Agent,
			Event:    ev.Event,
			Reason:   ev.Reason,
			Restarts: ev.Restarts,
			At:       ev.At.UTC().Format(time.RFC3339),
		})
	}
	n.sendJSON(w, out)
}

// routerError maps router failures to HTTP status codes.
func (n *Node) routerError(w http.ResponseWriter, name string, err error) {
	if errors.Is(err, router.ErrAgentNotFound) {
		n.sendJSONError(w, http.StatusNotFound, "agent not found")
		return
	}
	n.logger.Error("agent operation failed", "agent", name, "error", err)
	n.sendJSONError(w, http.StatusInternalServerError, "internal server error")
}

// sendJSON writes a JSON response body.
func (n *Node) sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		n.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONStatus writes a JSON response with an explicit status code.
func (n *Node) sendJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		n.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (n *Node) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
