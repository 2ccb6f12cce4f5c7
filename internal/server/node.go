// ABOUTME: Node wires the runtime, supervisor, directory, cluster, and router together.
// ABOUTME: Owns the HTTP server lifecycle including graceful shutdown.

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lyndonkl/agentmesh/internal/actor"
	"github.com/lyndonkl/agentmesh/internal/auth"
	"github.com/lyndonkl/agentmesh/internal/cluster"
	"github.com/lyndonkl/agentmesh/internal/config"
	"github.com/lyndonkl/agentmesh/internal/directory"
	"github.com/lyndonkl/agentmesh/internal/router"
	"github.com/lyndonkl/agentmesh/internal/store"
	"github.com/lyndonkl/agentmesh/internal/supervisor"
	"github.com/lyndonkl/agentmesh/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

// Node is one agentmesh process: an actor runtime with a supervisor,
// a cluster-wide directory, and the HTTP surface other nodes and
// operators talk to.
type Node struct {
	config  *config.Config
	logger  *slog.Logger
	runtime *actor.Runtime
	sup     *supervisor.Supervisor
	dir     *directory.Directory
	members *cluster.Membership
	rtr     *router.Router
	ledger  store.Store
	tokens  *auth.TokenAuth

	httpServer *http.Server
}

// New creates a Node from configuration. The supervisor and actor
// runtime start immediately; the HTTP server starts on Run.
func New(cfg *config.Config, logger *slog.Logger) (*Node, error) {
	host := cfg.Node.Host

	var ledger store.Store
	var recorder supervisor.EventSink
	if cfg.Database.Path != "" {
		sqlStore, err := store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("initializing event ledger: %w", err)
		}
		ledger = sqlStore
		recorder = store.NewRecorder(host, sqlStore, logger)
	}

	policy, err := supervisor.ParsePolicy(cfg.Supervision.Policy)
	if err != nil {
		return nil, fmt.Errorf("invalid supervision policy: %w", err)
	}

	rt := actor.NewRuntime(logger)
	sink := supervisor.MultiSink(&telemetry.EventSink{}, recorder)
	sup := supervisor.New(rt, supervisor.Config{
		Policy:       policy,
		MaxRestarts:  cfg.Supervision.MaxRestartsValue(),
		RestartDelay: cfg.Supervision.RestartDelay,
		OpTimeout:    cfg.Supervision.OpTimeout,
	}, sink, logger)

	dir := directory.New(logger)
	sup.OnStart(func(name, addr string) { dir.Register(name, host, addr) })
	sup.OnStop(func(name string) { dir.Unregister(name) })

	peers := make([]cluster.Peer, 0, len(cfg.Cluster.Peers))
	for _, p := range cfg.Cluster.Peers {
		peers = append(peers, cluster.Peer{Host: p.Host, URL: p.URL})
	}
	members := cluster.NewMembership(host, peers, logger)
	members.NotifyLeave(func(left string) {
		n := dir.RemoveHostEntries(left)
		logger.Info("purged directory entries for departed host", "host", left, "removed", n)
	})

	var tokens *auth.TokenAuth
	if cfg.Auth.ClusterSecret != "" {
		tokens = auth.New([]byte(cfg.Auth.ClusterSecret), host)
	}

	var tokenSource cluster.TokenSource
	if tokens != nil {
		tokenSource = tokens
	}
	client := cluster.NewClient(members, tokenSource, cfg.Cluster.CallTimeout, logger)
	rtr := router.New(host, dir, sup, rt, members, client, cfg.Cluster.FanoutTimeout, logger)

	n := &Node{
		config:  cfg,
		logger:  logger,
		runtime: rt,
		sup:     sup,
		dir:     dir,
		members: members,
		rtr:     rtr,
		ledger:  ledger,
		tokens:  tokens,
	}

	mux := http.NewServeMux()
	n.registerAPIRoutes(mux)
	n.registerClusterRoutes(mux)
	if cfg.Metrics.Enabled {
		mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	n.httpServer = &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: mux,
	}

	return n, nil
}

// Router exposes the node's router, mainly for tests.
func (n *Node) Router() *router.Router { return n.rtr }

// Supervisor exposes the node's supervisor, mainly for tests.
func (n *Node) Supervisor() *supervisor.Supervisor { return n.sup }

// Run serves HTTP until the context is canceled or the server fails,
// then shuts everything down in dependency order.
func (n *Node) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		n.logger.Info("HTTP server listening", "addr", n.httpServer.Addr, "host", n.config.Node.Host)
		if err := n.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		n.logger.Info("shutdown signal received")
	case serverErr = <-errCh:
	}

	shutdownErr := n.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown uses a fresh context since the run context is
// already canceled by the time shutdown starts.
func (n *Node) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return n.Shutdown(ctx)
}

// Shutdown stops the HTTP server, the supervisor, the actor runtime,
// and finally the ledger.
func (n *Node) Shutdown(ctx context.Context) error {
	var firstErr error

	if err := n.httpServer.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("HTTP shutdown: %w", err)
	}

	n.sup.Close()
	n.runtime.Shutdown(shutdownTimeout)

	if n.ledger != nil {
		if err := n.ledger.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing ledger: %w", err)
		}
	}

	n.logger.Info("node stopped", "host", n.config.Node.Host)
	return firstErr
}
