// ABOUTME: Package documentation for the server package.
// ABOUTME: Describes the Node composition root and its HTTP surfaces.

// Package server assembles one agentmesh node and serves its HTTP
// surfaces. Node is the composition root: it wires the actor runtime,
// supervisor, directory, cluster membership, remote client, router,
// and event ledger together from configuration.
//
// Two route families share one listener:
//
//   - /api/... and /status serve operators and external clients.
//     Operations are location transparent; the router forwards to the
//     owning node when the agent lives elsewhere.
//   - /cluster/... serves peer nodes. These handlers resolve locally
//     only, which keeps cross-node fan-out from looping, and are
//     protected by bearer token auth when a cluster secret is set.
//
// Prometheus metrics are exposed on the configured metrics path when
// enabled.
package server
