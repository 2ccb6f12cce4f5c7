// ABOUTME: Package documentation for the router package.
// ABOUTME: Describes location-transparent resolution and dispatch.

// Package router provides location-transparent access to agents across
// the cluster. Callers address agents by name only; the router resolves
// the name to a host and actor address, then dispatches the operation
// locally or forwards it to the owning node.
//
// # Resolution
//
// FindAgent evaluates four tiers in order and stops at the first hit:
//
//  1. Directory cache. Entries for remote hosts are trusted as-is; a
//     local entry is verified against the runtime and purged if stale.
//  2. Supervisor registry, for agents started through the supervisor.
//  3. Full scan of local actors by reported name.
//  4. Concurrent fan-out to every known cluster member, first positive
//     response wins.
//
// Tiers 2-4 write their hit back into the directory, so repeated
// lookups stay on the cache path.
//
// # Error Collapsing
//
// Remote failures of any kind, unreachable hosts, timeouts, or clean
// negative answers, surface as ErrAgentNotFound. The router purges the
// directory entry on failure so the next resolution starts fresh.
package router
