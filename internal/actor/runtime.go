// ABOUTME: Runtime owns all local agent actors and their lifecycle.
// ABOUTME: Spawns goroutine-backed actors and reports their exits on a channel.

package actor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultMailboxSize = 64
	exitBuffer         = 128
)

// Runtime manages the lifecycle of all agent actors on this node.
type Runtime struct {
	procs    map[string]*proc // keyed by Ref ID
	mu       sync.RWMutex
	exits    chan Exit
	done     chan struct{}
	stopOnce sync.Once
	logger   *slog.Logger
}

// NewRuntime creates an actor runtime. Exit notifications for every
// terminated actor are delivered on the channel returned by Exits.
func NewRuntime(logger *slog.Logger) *Runtime {
	return &Runtime{
		procs:  make(map[string]*proc),
		exits:  make(chan Exit, exitBuffer),
		done:   make(chan struct{}),
		logger: logger.With("component", "actor"),
	}
}

// Exits returns the channel carrying termination notifications.
// The consumer (normally the supervisor) must drain it.
func (rt *Runtime) Exits() <-chan Exit {
	return rt.exits
}

// Spawn creates and starts a new agent actor with the given logical name.
func (rt *Runtime) Spawn(name string, opts Options) (*Ref, error) {
	select {
	case <-rt.done:
		return nil, ErrShuttingDown
	default:
	}

	size := opts.MailboxSize
	if size <= 0 {
		size = defaultMailboxSize
	}

	memory := make(map[string]string, len(opts.Memory))
	for k, v := range opts.Memory {
		memory[k] = v
	}

	ref := &Ref{id: uuid.New().String(), name: name}
	p := &proc{
		rt:      rt,
		ref:     ref,
		mailbox: make(chan request, size),
		quit:    make(chan struct{}),
		memory:  memory,
	}
	ref.proc = p

	rt.mu.Lock()
	rt.procs[ref.id] = p
	rt.mu.Unlock()

	go p.run()

	rt.logger.Debug("spawned agent", "agent", name, "addr", ref.id)
	return ref, nil
}

// Terminate requests a clean shutdown of the actor. Idempotent.
func (rt *Runtime) Terminate(ref *Ref) {
	if ref == nil {
		return
	}
	ref.proc.kill(ReasonNormal)
}

// Kill terminates the actor abnormally with the given reason.
// An empty reason defaults to "killed".
func (rt *Runtime) Kill(ref *Ref, reason string) {
	if ref == nil {
		return
	}
	if reason == "" {
		reason = ReasonKilled
	}
	ref.proc.kill(reason)
}

// IsAlive reports whether the actor at the given address is still running.
func (rt *Runtime) IsAlive(addr string) bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	_, ok := rt.procs[addr]
	return ok
}

// Resolve returns the Ref for a local address, if the actor is still running.
func (rt *Runtime) Resolve(addr string) (*Ref, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	p, ok := rt.procs[addr]
	if !ok {
		return nil, false
	}
	return p.ref, true
}

// List returns the refs of every actor currently running on this node.
func (rt *Runtime) List() []*Ref {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	refs := make([]*Ref, 0, len(rt.procs))
	for _, p := range rt.procs {
		refs = append(refs, p.ref)
	}
	return refs
}

// Count returns the number of running actors.
func (rt *Runtime) Count() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return len(rt.procs)
}

// State returns a snapshot of the actor's current state.
func (rt *Runtime) State(ctx context.Context, ref *Ref) (Snapshot, error) {
	resp, err := ref.proc.call(ctx, request{kind: reqState})
	if err != nil {
		return Snapshot{}, err
	}
	return resp.snapshot, nil
}

// Submit enqueues a task in the agent's inbox and returns the queued task.
func (rt *Runtime) Submit(ctx context.Context, ref *Ref, action string, params map[string]string) (Task, error) {
	task := Task{
		ID:          uuid.New().String(),
		Action:      action,
		Params:      params,
		SubmittedAt: time.Now().UTC(),
	}
	if _, err := ref.proc.call(ctx, request{kind: reqSubmit, task: task}); err != nil {
		return Task{}, err
	}
	return task, nil
}

// ProcessNext pops and executes the oldest queued task, returning its
// result. An empty inbox yields a result with Status "empty", not an error.
func (rt *Runtime) ProcessNext(ctx context.Context, ref *Ref) (TaskResult, error) {
	resp, err := ref.proc.call(ctx, request{kind: reqProcess})
	if err != nil {
		return TaskResult{}, err
	}
	return resp.result, nil
}

// Shutdown terminates all actors and waits up to the timeout for them to exit.
func (rt *Runtime) Shutdown(timeout time.Duration) {
	rt.stopOnce.Do(func() { close(rt.done) })

	for _, ref := range rt.List() {
		ref.proc.kill(ReasonNormal)
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if rt.Count() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	if n := rt.Count(); n > 0 {
		rt.logger.Warn("runtime shutdown timeout", "remaining", n)
	}
}

// remove drops a terminated actor from the registry.
func (rt *Runtime) remove(addr string) {
	rt.mu.Lock()
	delete(rt.procs, addr)
	rt.mu.Unlock()
}

// notifyExit publishes a termination notification unless the runtime is
// already shut down and nobody is left to consume it.
func (rt *Runtime) notifyExit(e Exit) {
	select {
	case rt.exits <- e:
	case <-rt.done:
	}
}

// request kinds for the actor mailbox.
type reqKind int

const (
	reqState reqKind = iota
	reqSubmit
	reqProcess
)

type request struct {
	kind  reqKind
	task  Task
	reply chan response
}

type response struct {
	snapshot Snapshot
	result   TaskResult
}

// proc is the running instance of one agent actor. All fields below
// the mailbox are owned exclusively by the run goroutine.
type proc struct {
	rt      *Runtime
	ref     *Ref
	mailbox chan request
	quit    chan struct{}

	quitOnce   sync.Once
	reasonMu   sync.Mutex
	quitReason string

	memory    map[string]string
	inbox     []Task
	processed int
	startedAt time.Time
}

// kill signals the actor to stop with the given reason. The first caller wins.
func (p *proc) kill(reason string) {
	p.quitOnce.Do(func() {
		p.reasonMu.Lock()
		p.quitReason = reason
		p.reasonMu.Unlock()
		close(p.quit)
	})
}

func (p *proc) killReason() string {
	p.reasonMu.Lock()
	defer p.reasonMu.Unlock()
	if p.quitReason == "" {
		return ReasonKilled
	}
	return p.quitReason
}

// call sends a request into the mailbox and waits for the reply,
// bounded by the caller's context.
func (p *proc) call(ctx context.Context, req request) (response, error) {
	req.reply = make(chan response, 1)

	select {
	case p.mailbox <- req:
	case <-p.quit:
		return response{}, ErrStopped
	case <-ctx.Done():
		return response{}, ErrTimeout
	}

	select {
	case resp := <-req.reply:
		return resp, nil
	case <-ctx.Done():
		return response{}, ErrTimeout
	case <-p.quit:
		// The reply may have raced with shutdown; prefer it if present.
		select {
		case resp := <-req.reply:
			return resp, nil
		default:
			return response{}, ErrStopped
		}
	}
}

// run is the actor's main loop: one message at a time, panic-isolated.
func (p *proc) run() {
	defer func() {
		if r := recover(); r != nil {
			p.rt.logger.Error("agent panicked",
				"agent", p.ref.name,
				"addr", p.ref.id,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			p.finish(fmt.Sprintf("panic: %v", r))
		}
	}()

	p.startedAt = time.Now().UTC()

	for {
		select {
		case <-p.quit:
			p.finish(p.killReason())
			return

		case req := <-p.mailbox:
			switch req.kind {
			case reqState:
				req.reply <- response{snapshot: p.snapshot()}

			case reqSubmit:
				p.inbox = append(p.inbox, req.task)
				req.reply <- response{}

			case reqProcess:
				result, crashReason := p.processNext()
				req.reply <- response{result: result}
				if crashReason != "" {
					p.finish(crashReason)
					return
				}
			}
		}
	}
}

// finish removes the actor from the runtime and reports its exit.
func (p *proc) finish(reason string) {
	p.kill(reason)
	p.rt.remove(p.ref.id)
	p.rt.logger.Debug("agent exited", "agent", p.ref.name, "addr", p.ref.id, "reason", reason)
	p.rt.notifyExit(Exit{Ref: p.ref, Reason: reason})
}

func (p *proc) snapshot() Snapshot {
	memory := make(map[string]string, len(p.memory))
	for k, v := range p.memory {
		memory[k] = v
	}
	return Snapshot{
		Name:       p.ref.name,
		Address:    p.ref.id,
		Memory:     memory,
		InboxDepth: len(p.inbox),
		Processed:  p.processed,
		StartedAt:  p.startedAt,
	}
}
