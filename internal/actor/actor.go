// ABOUTME: Core types for the agent actor runtime: refs, exits, tasks, snapshots.
// ABOUTME: A Ref is the opaque address of one running agent goroutine.

package actor

import (
	"errors"
	"time"
)

// Runtime errors
var (
	// ErrStopped indicates the target actor has already terminated.
	ErrStopped = errors.New("agent stopped")

	// ErrTimeout indicates a mailbox call did not complete within its deadline.
	ErrTimeout = errors.New("agent call timed out")

	// ErrShuttingDown indicates the runtime is shutting down and refuses new spawns.
	ErrShuttingDown = errors.New("runtime is shutting down")
)

// Exit reasons. ReasonNormal is the only reason treated as a clean,
// requested shutdown; everything else is an abnormal termination.
const (
	ReasonNormal = "normal"
	ReasonKilled = "killed"
)

// IsNormal reports whether the given exit reason is a clean shutdown.
func IsNormal(reason string) bool {
	return reason == ReasonNormal
}

// Exit is delivered on the runtime's exit channel when an actor terminates.
type Exit struct {
	Ref    *Ref
	Reason string
}

// Options carries the start configuration needed to create an agent,
// and to recreate it identically after a crash.
type Options struct {
	// Memory seeds the agent's key/value memory.
	Memory map[string]string

	// MailboxSize bounds the agent's mailbox; zero means the default.
	MailboxSize int
}

// Ref is the opaque address of a running agent actor. Every spawn
// produces a fresh Ref; a restarted agent is reachable only through
// its new Ref.
type Ref struct {
	id   string
	name string
	proc *proc
}

// ID returns the unique address identifier for this actor instance.
func (r *Ref) ID() string { return r.id }

// Name returns the logical agent name the actor reports for itself.
func (r *Ref) Name() string { return r.name }

// Task is one unit of work queued in an agent's inbox.
type Task struct {
	ID          string            `json:"id"`
	Action      string            `json:"action"`
	Params      map[string]string `json:"params,omitempty"`
	SubmittedAt time.Time         `json:"submitted_at"`
}

// Task result statuses.
const (
	StatusCompleted = "completed"
	StatusEmpty     = "empty"
	StatusFailed    = "failed"
)

// TaskResult is produced by processing the oldest task in an agent's inbox.
// An empty inbox yields Status "empty" rather than an error.
type TaskResult struct {
	TaskID      string    `json:"task_id,omitempty"`
	Action      string    `json:"action,omitempty"`
	Status      string    `json:"status"`
	Output      string    `json:"output,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// Snapshot is a point-in-time view of an agent's state.
type Snapshot struct {
	Name       string            `json:"name"`
	Address    string            `json:"address"`
	Memory     map[string]string `json:"memory"`
	InboxDepth int               `json:"inbox_depth"`
	Processed  int               `json:"processed"`
	StartedAt  time.Time         `json:"started_at"`
}
