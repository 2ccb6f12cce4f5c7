// ABOUTME: HTTP JSON client for remote cluster calls between nodes.
// ABOUTME: Distinguishes unreachable hosts from clean "agent not found" answers.

package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/lyndonkl/agentmesh/internal/actor"
	"github.com/lyndonkl/agentmesh/internal/directory"
)

// Remote call errors
var (
	// ErrHostUnreachable indicates the transport failed: connection error,
	// timeout, bad status, or an unknown host. Never surfaced past the
	// router, which collapses it into "agent not found".
	ErrHostUnreachable = errors.New("host unreachable")

	// ErrRemoteNotFound indicates the remote host answered cleanly that it
	// does not have the agent.
	ErrRemoteNotFound = errors.New("agent not found on remote host")
)

// TokenSource mints bearer tokens for outgoing cluster calls.
type TokenSource interface {
	Token() (string, error)
}

// Client performs remote invocations against other cluster members over
// their cluster-internal HTTP endpoints.
type Client struct {
	members *Membership
	http    *http.Client
	tokens  TokenSource // nil when cluster auth is disabled
	logger  *slog.Logger
}

// NewClient creates a cluster call client with a per-call timeout.
func NewClient(members *Membership, tokens TokenSource, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		members: members,
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		logger:  logger.With("component", "cluster-client"),
	}
}

// Wire types for the cluster-internal endpoints.

type LookupRequest struct {
	Name string `json:"name"`
}

type LookupResponse struct {
	Found bool   `json:"found"`
	Addr  string `json:"addr,omitempty"`
}

type AgentRequest struct {
	Name string `json:"name"`
}

type TaskRequest struct {
	Name   string            `json:"name"`
	Action string            `json:"action"`
	Params map[string]string `json:"params,omitempty"`
}

type AgentsResponse struct {
	Agents []directory.Entry `json:"agents"`
}

// Lookup asks a member whether it hosts the named agent locally.
// A clean negative answer returns (_, false, nil).
func (c *Client) Lookup(ctx context.Context, host, name string) (addr string, found bool, err error) {
	var resp LookupResponse
	if err := c.post(ctx, host, "/cluster/lookup", LookupRequest{Name: name}, &resp); err != nil {
		return "", false, err
	}
	return resp.Addr, resp.Found, nil
}

// AgentState fetches the state snapshot of an agent hosted on a member.
func (c *Client) AgentState(ctx context.Context, host, name string) (actor.Snapshot, error) {
	var snap actor.Snapshot
	if err := c.post(ctx, host, "/cluster/state", AgentRequest{Name: name}, &snap); err != nil {
		return actor.Snapshot{}, err
	}
	return snap, nil
}

// SubmitTask forwards a task submission to the member hosting the agent.
func (c *Client) SubmitTask(ctx context.Context, host, name, action string, params map[string]string) (actor.Task, error) {
	var task actor.Task
	if err := c.post(ctx, host, "/cluster/task", TaskRequest{Name: name, Action: action, Params: params}, &task); err != nil {
		return actor.Task{}, err
	}
	return task, nil
}

// ProcessNext asks the member hosting the agent to process its next task.
func (c *Client) ProcessNext(ctx context.Context, host, name string) (actor.TaskResult, error) {
	var result actor.TaskResult
	if err := c.post(ctx, host, "/cluster/process", AgentRequest{Name: name}, &result); err != nil {
		return actor.TaskResult{}, err
	}
	return result, nil
}

// Agents lists the agents running locally on a member.
func (c *Client) Agents(ctx context.Context, host string) ([]directory.Entry, error) {
	var resp AgentsResponse
	if err := c.post(ctx, host, "/cluster/agents", struct{}{}, &resp); err != nil {
		return nil, err
	}
	return resp.Agents, nil
}

// post performs one JSON call against a member's cluster endpoint.
func (c *Client) post(ctx context.Context, host, path string, body, out any) error {
	base, ok := c.members.BaseURL(host)
	if !ok {
		return fmt.Errorf("%w: unknown host %q", ErrHostUnreachable, host)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("minting cluster token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("cluster call failed", "host", host, "path", path, "error", err)
		return fmt.Errorf("%w: %s: %v", ErrHostUnreachable, host, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: %s: decoding response: %v", ErrHostUnreachable, host, err)
		}
		return nil

	case resp.StatusCode == http.StatusNotFound:
		// The member is healthy but does not have the agent.
		io.Copy(io.Discard, resp.Body)
		return ErrRemoteNotFound

	default:
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s: status %d", ErrHostUnreachable, host, resp.StatusCode)
	}
}
