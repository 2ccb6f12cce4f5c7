// Package config handles configuration loading for agentmesh.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from AGENTMESH_CONFIG environment variable
//  2. ~/.config/agentmesh/node.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  cluster_secret: "${AGENTMESH_CLUSTER_SECRET}"
//
// Syntax: ${VAR_NAME} or $VAR_NAME
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	cluster:
//	  call_timeout: "3s"
//	  fanout_timeout: "5s"
//	supervision:
//	  restart_delay: "100ms"
//	  op_timeout: "5s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Node identity and server:
//
//	node:
//	  host: "node-a"
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Cluster membership:
//
//	cluster:
//	  peers:
//	    - host: "node-b"
//	      url: "http://node-b:8080"
//
// Supervision:
//
//	supervision:
//	  policy: "transient"   # always | never | transient
//	  max_restarts: 3
//
// Database:
//
//	database:
//	  path: "/var/lib/agentmesh/events.db"
//
// Metrics:
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
package config
