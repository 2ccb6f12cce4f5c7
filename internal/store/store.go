// ABOUTME: Store interface and data types for agentmesh persistence.
// ABOUTME: Defines the supervision event ledger records and query parameters.

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// SupervisionEvent is one row of the supervision ledger: a lifecycle
// transition of a supervised agent on some node.
type SupervisionEvent struct {
	ID       string
	Node     string
	Agent    string
	Event    string
	Reason   string
	Restarts int
	Addr     string
	At       time.Time
}

// ListEventsParams filters a ledger query. Zero values mean "no filter".
type ListEventsParams struct {
	Agent string
	Event string
	Since *time.Time
	Limit int // 1-500, defaults to 50
}

// Store is the persistence interface for the supervision ledger
type Store interface {
	// SaveEvent appends a supervision event to the ledger
	SaveEvent(ctx context.Context, event *SupervisionEvent) error

	// GetEvent retrieves a single event by ID, ErrNotFound if absent
	GetEvent(ctx context.Context, id string) (*SupervisionEvent, error)

	// ListEvents returns matching events, newest first
	ListEvents(ctx context.Context, p ListEventsParams) ([]*SupervisionEvent, error)

	// CountRestarts returns how many restart events the agent has accrued
	CountRestarts(ctx context.Context, agent string) (int, error)

	// Close releases the underlying database
	Close() error
}
