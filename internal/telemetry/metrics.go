// ABOUTME: Prometheus metrics for supervision, resolution, and remote calls.
// ABOUTME: Registered on the default registry and served via promhttp.

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lyndonkl/agentmesh/internal/supervisor"
)

var (
	// SupervisionEvents counts supervision lifecycle events by type.
	SupervisionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentmesh_supervision_events_total",
		Help: "Supervision lifecycle events by type.",
	}, []string{"event"})

	// Restarts counts agent restarts.
	Restarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentmesh_agent_restarts_total",
		Help: "Agent restarts performed by the supervisor.",
	})

	// Resolutions counts successful name resolutions by tier.
	Resolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentmesh_resolutions_total",
		Help: "Successful agent name resolutions by tier.",
	}, []string{"tier"})

	// ResolutionMisses counts resolutions that exhausted every tier.
	ResolutionMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "agentmesh_resolution_misses_total",
		Help: "Agent name resolutions that exhausted every tier.",
	})

	// RemoteCallFailures counts failed remote invocations by host.
	RemoteCallFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentmesh_remote_call_failures_total",
		Help: "Remote cluster calls that failed, by target host.",
	}, []string{"host"})

	// TasksProcessed counts tasks processed by local agents.
	TasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentmesh_tasks_processed_total",
		Help: "Tasks processed by local agents, by result status.",
	}, []string{"status"})
)

// Resolution tier labels.
const (
	TierCache  = "cache"
	TierLocal  = "local"
	TierScan   = "scan"
	TierRemote = "remote"
)

// EventSink adapts supervision events into prometheus counters.
type EventSink struct{}

// Record implements supervisor.EventSink.
func (EventSink) Record(ev supervisor.Event) {
	SupervisionEvents.WithLabelValues(string(ev.Type)).Inc()
	if ev.Type == supervisor.EventRestarted {
		Restarts.Inc()
	}
}
