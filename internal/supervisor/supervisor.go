// ABOUTME: Supervisor tracks agent lifetimes and applies the restart policy.
// ABOUTME: A single control loop owns all supervision records and consumes actor exits.

package supervisor

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lyndonkl/agentmesh/internal/actor"
)

// Supervisor errors
var (
	// ErrAlreadyExists indicates an agent with the same name is already supervised.
	ErrAlreadyExists = errors.New("agent already exists")

	// ErrTimeout indicates a supervisor operation did not complete within its deadline.
	ErrTimeout = errors.New("supervisor operation timed out")

	// ErrClosed indicates the supervisor has been shut down.
	ErrClosed = errors.New("supervisor closed")
)

// Policy controls whether a terminated agent is recreated.
type Policy string

const (
	// PolicyAlways restarts after any abnormal termination.
	PolicyAlways Policy = "always"
	// PolicyNever never restarts; terminations are only recorded.
	PolicyNever Policy = "never"
	// PolicyTransient restarts after abnormal terminations only.
	// A requested shutdown never triggers a restart under any policy.
	PolicyTransient Policy = "transient"
)

// ParsePolicy converts a config string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyAlways, PolicyNever, PolicyTransient:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown restart policy %q", s)
	}
}

// Config holds the supervisor's restart policy and timing.
type Config struct {
	Policy       Policy
	MaxRestarts  int
	RestartDelay time.Duration
	OpTimeout    time.Duration
}

// AgentInfo describes one supervised, currently live agent.
type AgentInfo struct {
	Name string `json:"name"`
	Addr string `json:"addr"`
}

// Summary is a diagnostic snapshot of the supervisor's state.
type Summary struct {
	Count       int            `json:"count"`
	Policy      Policy         `json:"policy"`
	MaxRestarts int            `json:"max_restarts"`
	Restarts    map[string]int `json:"restarts"`
}

// record tracks one supervised agent. Records move tracked -> restarting ->
// tracked (or removed), mutated only by the control loop.
type record struct {
	name       string
	ref        *actor.Ref
	opts       actor.Options
	restarts   int
	restarting bool
	epoch      int // bumped on stop to invalidate pending delayed restarts
}

// Supervisor creates agents, observes their termination, and applies the
// restart policy with a bounded retry budget.
type Supervisor struct {
	rt     *actor.Runtime
	cfg    Config
	sink   EventSink
	logger *slog.Logger

	onStart func(name, addr string)
	onStop  func(name string)

	// records and byAddr are owned exclusively by the control loop.
	records map[string]*record
	byAddr  map[string]string

	cmds chan func()
	done chan struct{}
}

// New creates a Supervisor over the given runtime and starts its control
// loop. The sink may be nil. Call Close to stop the loop.
func New(rt *actor.Runtime, cfg Config, sink EventSink, logger *slog.Logger) *Supervisor {
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 5 * time.Second
	}
	s := &Supervisor{
		rt:      rt,
		cfg:     cfg,
		sink:    sink,
		logger:  logger.With("component", "supervisor"),
		records: make(map[string]*record),
		byAddr:  make(map[string]string),
		cmds:    make(chan func(), 16),
		done:    make(chan struct{}),
	}
	go s.loop()
	return s
}

// OnStart registers a callback fired whenever a supervised agent starts or
// is restarted. Used to keep the directory cache current. Must be set
// before the first StartAgent call.
func (s *Supervisor) OnStart(fn func(name, addr string)) { s.onStart = fn }

// OnStop registers a callback fired whenever a supervised agent is removed.
func (s *Supervisor) OnStop(fn func(name string)) { s.onStop = fn }

// Close stops the control loop. Supervised agents keep running; the caller
// shuts down the runtime separately.
func (s *Supervisor) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// StartAgent creates and monitors a new agent. Fails with ErrAlreadyExists
// if the name is already supervised.
func (s *Supervisor) StartAgent(name string, opts actor.Options) (*actor.Ref, error) {
	var ref *actor.Ref
	var opErr error

	err := s.do(func() {
		if _, exists := s.records[name]; exists {
			opErr = ErrAlreadyExists
			return
		}

		r, err := s.rt.Spawn(name, opts)
		if err != nil {
			opErr = fmt.Errorf("spawning agent %q: %w", name, err)
			return
		}

		s.records[name] = &record{name: name, ref: r, opts: opts}
		s.byAddr[r.ID()] = name
		ref = r

		s.logger.Info("agent started", "agent", name, "addr", r.ID())
		s.emit(Event{Agent: name, Type: EventStarted, Addr: r.ID()})
		if s.onStart != nil {
			s.onStart(name, r.ID())
		}
	})
	if err != nil {
		return nil, err
	}
	return ref, opErr
}

// StopAgent stops monitoring the named agent and terminates it. Stopping
// an untracked name is a no-op.
func (s *Supervisor) StopAgent(name string) error {
	return s.do(func() {
		rec, ok := s.records[name]
		if !ok {
			return
		}

		delete(s.records, name)
		rec.epoch++
		if rec.ref != nil {
			delete(s.byAddr, rec.ref.ID())
			s.rt.Terminate(rec.ref)
		}

		s.logger.Info("agent stopped", "agent", name)
		s.emit(Event{Agent: name, Type: EventStopped, Restarts: rec.restarts})
		if s.onStop != nil {
			s.onStop(name)
		}
	})
}

// Resolve returns the live Ref for a supervised agent by exact name.
// Agents mid-restart report as absent until their replacement is up.
func (s *Supervisor) Resolve(name string) (*actor.Ref, bool) {
	var ref *actor.Ref
	err := s.do(func() {
		if rec, ok := s.records[name]; ok && rec.ref != nil {
			ref = rec.ref
		}
	})
	if err != nil || ref == nil {
		return nil, false
	}
	return ref, true
}

// ListAgents returns a snapshot of currently tracked live agents.
func (s *Supervisor) ListAgents() ([]AgentInfo, error) {
	var agents []AgentInfo
	err := s.do(func() {
		agents = make([]AgentInfo, 0, len(s.records))
		for _, rec := range s.records {
			if rec.ref == nil {
				continue
			}
			agents = append(agents, AgentInfo{Name: rec.name, Addr: rec.ref.ID()})
		}
	})
	return agents, err
}

// Status returns a diagnostic snapshot: agent count, policy, and
// per-agent restart counts.
func (s *Supervisor) Status() (Summary, error) {
	var sum Summary
	err := s.do(func() {
		sum = Summary{
			Count:       len(s.records),
			Policy:      s.cfg.Policy,
			MaxRestarts: s.cfg.MaxRestarts,
			Restarts:    make(map[string]int, len(s.records)),
		}
		for name, rec := range s.records {
			sum.Restarts[name] = rec.restarts
		}
	})
	return sum, err
}

// do runs fn on the control loop and waits for it to complete, bounded by
// the configured operation timeout.
func (s *Supervisor) do(fn func()) error {
	doneCh := make(chan struct{})
	timer := time.NewTimer(s.cfg.OpTimeout)
	defer timer.Stop()

	select {
	case s.cmds <- func() { fn(); close(doneCh) }:
	case <-timer.C:
		return ErrTimeout
	case <-s.done:
		return ErrClosed
	}

	select {
	case <-doneCh:
		return nil
	case <-timer.C:
		return ErrTimeout
	case <-s.done:
		return ErrClosed
	}
}

// loop is the supervisor's control flow. It is the only goroutine that
// mutates records, so record mutations are totally ordered.
func (s *Supervisor) loop() {
	for {
		select {
		case <-s.done:
			return
		case exit := <-s.rt.Exits():
			s.handleExit(exit)
		case fn := <-s.cmds:
			fn()
		}
	}
}

// handleExit applies the restart policy to one actor termination.
func (s *Supervisor) handleExit(e actor.Exit) {
	name, ok := s.byAddr[e.Ref.ID()]
	if !ok {
		// Already unmonitored (deliberate stop or an unsupervised actor).
		return
	}
	rec := s.records[name]
	if rec == nil || rec.ref == nil || rec.ref.ID() != e.Ref.ID() {
		return
	}
	delete(s.byAddr, e.Ref.ID())

	normal := actor.IsNormal(e.Reason)
	if !normal {
		s.logger.Warn("agent crashed", "agent", name, "reason", e.Reason, "restarts", rec.restarts)
		s.emit(Event{Agent: name, Type: EventCrashed, Reason: e.Reason, Restarts: rec.restarts, Addr: e.Ref.ID()})
	}

	switch {
	case s.cfg.Policy == PolicyNever:
		s.drop(rec, EventLost, e.Reason)

	case normal:
		// A requested shutdown never restarts, under any policy.
		s.drop(rec, EventStopped, e.Reason)

	case rec.restarts >= s.cfg.MaxRestarts:
		s.logger.Error("restart budget exhausted", "agent", name, "restarts", rec.restarts)
		s.drop(rec, EventExhausted, e.Reason)

	default:
		rec.ref = nil
		rec.restarting = true
		epoch := rec.epoch
		time.AfterFunc(s.cfg.RestartDelay, func() {
			select {
			case s.cmds <- func() { s.completeRestart(name, epoch) }:
			case <-s.done:
			}
		})
	}
}

// completeRestart recreates an agent after the restart delay, unless it
// was stopped in the meantime.
func (s *Supervisor) completeRestart(name string, epoch int) {
	rec, ok := s.records[name]
	if !ok || !rec.restarting || rec.epoch != epoch {
		return
	}

	ref, err := s.rt.Spawn(name, rec.opts)
	if err != nil {
		// Creation failures during restart are reported and the record
		// dropped; there is no retry of retries.
		s.logger.Error("restart failed", "agent", name, "error", err)
		s.drop(rec, EventRestartFailed, err.Error())
		return
	}

	rec.ref = ref
	rec.restarting = false
	rec.restarts++
	s.byAddr[ref.ID()] = name

	s.logger.Info("agent restarted", "agent", name, "addr", ref.ID(), "restarts", rec.restarts)
	s.emit(Event{Agent: name, Type: EventRestarted, Restarts: rec.restarts, Addr: ref.ID()})
	if s.onStart != nil {
		s.onStart(name, ref.ID())
	}
}

// drop removes a record and reports the agent as gone.
func (s *Supervisor) drop(rec *record, typ EventType, reason string) {
	delete(s.records, rec.name)
	rec.epoch++
	s.emit(Event{Agent: rec.name, Type: typ, Reason: reason, Restarts: rec.restarts})
	if s.onStop != nil {
		s.onStop(rec.name)
	}
}

func (s *Supervisor) emit(ev Event) {
	ev.At = time.Now().UTC()
	if s.sink != nil {
		s.sink.Record(ev)
	}
}
