// ABOUTME: Recorder adapts the Store to the supervisor's event sink.
// ABOUTME: Writes each supervision event to the ledger, logging failures.

package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/lyndonkl/agentmesh/internal/supervisor"
)

// recordTimeout bounds a single ledger write so a slow disk cannot
// stall the supervisor's control loop.
const recordTimeout = 2 * time.Second

// Recorder persists supervision events as they are emitted. It
// implements supervisor.EventSink. Write failures are logged and
// dropped; the ledger is an audit trail, not a source of truth.
type Recorder struct {
	node   string
	store  Store
	logger *slog.Logger
}

// NewRecorder creates a Recorder writing events for the given node.
func NewRecorder(node string, s Store, logger *slog.Logger) *Recorder {
	return &Recorder{
		node:   node,
		store:  s,
		logger: logger.With("component", "recorder"),
	}
}

// Record writes one supervision event to the ledger. The write happens
// off the calling goroutine; sinks must not block the supervisor.
func (r *Recorder) Record(ev supervisor.Event) {
	go r.write(ev)
}

func (r *Recorder) write(ev supervisor.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	err := r.store.SaveEvent(ctx, &SupervisionEvent{
		Node:     r.node,
		Agent:    ev.Agent,
		Event:    string(ev.Type),
		Reason:   ev.Reason,
		Restarts: ev.Restarts,
		Addr:     ev.Addr,
		At:       ev.At,
	})
	if err != nil {
		r.logger.Error("failed to record supervision event",
			"agent", ev.Agent, "event", ev.Type, "error", err)
	}
}
