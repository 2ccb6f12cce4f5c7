// Package cluster provides the membership view and the remote invocation
// client used by the router's remote resolution tier.
//
// Membership is static configuration plus observed departures: removing a
// member fires leave notifications, which the node wires to bulk eviction
// of that host's directory entries.
//
// The Client speaks JSON over HTTP to other nodes' cluster-internal
// endpoints. It draws a hard line between two failures the router treats
// very differently: ErrHostUnreachable (transport failure or timeout) and
// ErrRemoteNotFound (the host answered, and the agent is not there).
package cluster
