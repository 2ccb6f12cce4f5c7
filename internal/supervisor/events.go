// ABOUTME: Supervision lifecycle events and the sink interface they flow into.
// ABOUTME: Sinks fan events out to the ledger store and metrics.

package supervisor

import "time"

// EventType classifies a supervision lifecycle event.
type EventType string

const (
	EventStarted       EventType = "started"
	EventStopped       EventType = "stopped"
	EventCrashed       EventType = "crashed"
	EventRestarted     EventType = "restarted"
	EventExhausted     EventType = "exhausted"
	EventLost          EventType = "lost"
	EventRestartFailed EventType = "restart_failed"
)

// Event records one supervision lifecycle transition for an agent.
type Event struct {
	Agent    string    `json:"agent"`
	Type     EventType `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Restarts int       `json:"restarts"`
	Addr     string    `json:"addr,omitempty"`
	At       time.Time `json:"at"`
}

// EventSink receives supervision events. Implementations must not block;
// they are called from the supervisor's control loop.
type EventSink interface {
	Record(ev Event)
}

// multiSink fans one event out to several sinks.
type multiSink []EventSink

func (m multiSink) Record(ev Event) {
	for _, s := range m {
		s.Record(ev)
	}
}

// MultiSink combines several sinks into one, skipping nils.
func MultiSink(sinks ...EventSink) EventSink {
	var out multiSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
