// ABOUTME: Tests for the supervisor's restart policy, budget, and lifecycle events.
// ABOUTME: Drives real actors through crash and stop paths and observes the sink.

package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyndonkl/agentmesh/internal/actor"
)

// captureSink records every supervision event for inspection.
type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSink) Record(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureSink) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// waitFor retries cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func (c *captureSink) waitForEvent(t *testing.T, typ EventType) Event {
	t.Helper()
	var found Event
	waitFor(t, func() bool {
		for _, ev := range c.all() {
			if ev.Type == typ {
				found = ev
				return true
			}
		}
		return false
	}, "timed out waiting for event "+string(typ))
	return found
}

func newTestSupervisor(t *testing.T, policy Policy, maxRestarts int) (*Supervisor, *actor.Runtime, *captureSink) {
	t.Helper()
	rt := actor.NewRuntime(slog.Default())
	sink := &captureSink{}
	sup := New(rt, Config{
		Policy:       policy,
		MaxRestarts:  maxRestarts,
		RestartDelay: 5 * time.Millisecond,
		OpTimeout:    2 * time.Second,
	}, sink, slog.Default())
	t.Cleanup(func() {
		sup.Close()
		rt.Shutdown(2 * time.Second)
	})
	return sup, rt, sink
}

// crash queues a crash task and has the agent process it.
func crash(t *testing.T, sup *Supervisor, rt *actor.Runtime, name string) {
	t.Helper()
	ctx := context.Background()

	ref, ok := sup.Resolve(name)
	require.True(t, ok, "agent %s not resolvable", name)

	_, err := rt.Submit(ctx, ref, actor.ActionCrash, nil)
	require.NoError(t, err)
	result, err := rt.ProcessNext(ctx, ref)
	require.NoError(t, err)
	require.Equal(t, actor.StatusFailed, result.Status)
}

func TestSupervisor_StartAgent(t *testing.T) {
	sup, rt, sink := newTestSupervisor(t, PolicyTransient, 3)

	ref, err := sup.StartAgent("worker-1", actor.Options{})
	require.NoError(t, err)
	assert.True(t, rt.IsAlive(ref.ID()))

	resolved, ok := sup.Resolve("worker-1")
	require.True(t, ok)
	assert.Equal(t, ref.ID(), resolved.ID())

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventStarted, events[0].Type)
	assert.Equal(t, "worker-1", events[0].Agent)
	assert.False(t, events[0].At.IsZero())
}

func TestSupervisor_StartAgentDuplicate(t *testing.T) {
	sup, _, _ := newTestSupervisor(t, PolicyTransient, 3)

	_, err := sup.StartAgent("worker-1", actor.Options{})
	require.NoError(t, err)

	_, err = sup.StartAgent("worker-1", actor.Options{})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestSupervisor_StopAgent(t *testing.T) {
	sup, rt, sink := newTestSupervisor(t, PolicyAlways, 3)

	ref, err := sup.StartAgent("worker-1", actor.Options{})
	require.NoError(t, err)

	require.NoError(t, sup.StopAgent("worker-1"))

	_, ok := sup.Resolve("worker-1")
	assert.False(t, ok)
	sink.waitForEvent(t, EventStopped)

	// The actor terminates and must not come back, even under "always".
	waitFor(t, func() bool { return !rt.IsAlive(ref.ID()) }, "actor still alive after stop")
	time.Sleep(50 * time.Millisecond)
	_, ok = sup.Resolve("worker-1")
	assert.False(t, ok)
}

func TestSupervisor_StopAgentUntrackedIsNoop(t *testing.T) {
	sup, _, _ := newTestSupervisor(t, PolicyTransient, 3)
	assert.NoError(t, sup.StopAgent("ghost"))
}

func TestSupervisor_RestartAfterCrash(t *testing.T) {
	for _, policy := range []Policy{PolicyAlways, PolicyTransient} {
		t.Run(string(policy), func(t *testing.T) {
			sup, rt, sink := newTestSupervisor(t, policy, 3)

			ref, err := sup.StartAgent("worker-1", actor.Options{Memory: map[string]string{"seed": "x"}})
			require.NoError(t, err)
			oldAddr := ref.ID()

			crash(t, sup, rt, "worker-1")

			sink.waitForEvent(t, EventCrashed)
			restarted := sink.waitForEvent(t, EventRestarted)
			assert.Equal(t, 1, restarted.Restarts)
			assert.NotEqual(t, oldAddr, restarted.Addr)

			// The replacement is resolvable under the same name with a
			// fresh address and the original starting memory.
			var newRef *actor.Ref
			waitFor(t, func() bool {
				r, ok := sup.Resolve("worker-1")
				if ok && r.ID() != oldAddr {
					newRef = r
					return true
				}
				return false
			}, "replacement not resolvable")

			snap, err := rt.State(context.Background(), newRef)
			require.NoError(t, err)
			assert.Equal(t, "x", snap.Memory["seed"])
			assert.Equal(t, 0, snap.Processed)
		})
	}
}

func TestSupervisor_PolicyNeverDropsCrashed(t *testing.T) {
	sup, rt, sink := newTestSupervisor(t, PolicyNever, 3)

	_, err := sup.StartAgent("worker-1", actor.Options{})
	require.NoError(t, err)

	crash(t, sup, rt, "worker-1")

	sink.waitForEvent(t, EventLost)
	time.Sleep(50 * time.Millisecond)
	_, ok := sup.Resolve("worker-1")
	assert.False(t, ok)

	for _, ev := range sink.all() {
		assert.NotEqual(t, EventRestarted, ev.Type)
	}
}

func TestSupervisor_NormalExitNeverRestarts(t *testing.T) {
	sup, rt, sink := newTestSupervisor(t, PolicyAlways, 3)

	ref, err := sup.StartAgent("worker-1", actor.Options{})
	require.NoError(t, err)

	// Terminate the actor directly, bypassing StopAgent, so the exit
	// arrives while the agent is still supervised.
	rt.Terminate(ref)

	sink.waitForEvent(t, EventStopped)
	time.Sleep(50 * time.Millisecond)
	_, ok := sup.Resolve("worker-1")
	assert.False(t, ok)

	for _, ev := range sink.all() {
		assert.NotEqual(t, EventRestarted, ev.Type)
		assert.NotEqual(t, EventCrashed, ev.Type)
	}
}

func TestSupervisor_RestartBudgetExhaustion(t *testing.T) {
	const budget = 2
	sup, rt, sink := newTestSupervisor(t, PolicyAlways, budget)

	_, err := sup.StartAgent("worker-1", actor.Options{})
	require.NoError(t, err)

	// Crash through the whole budget; each crash is followed by a restart.
	for i := 1; i <= budget; i++ {
		crash(t, sup, rt, "worker-1")
		waitFor(t, func() bool {
			for _, ev := range sink.all() {
				if ev.Type == EventRestarted && ev.Restarts == i {
					return true
				}
			}
			return false
		}, "restart did not complete")
	}

	// Crash N+1 exceeds the budget: the agent is dropped for good.
	crash(t, sup, rt, "worker-1")
	exhausted := sink.waitForEvent(t, EventExhausted)
	assert.Equal(t, budget, exhausted.Restarts)

	time.Sleep(50 * time.Millisecond)
	_, ok := sup.Resolve("worker-1")
	assert.False(t, ok)
}

func TestSupervisor_ListAgents(t *testing.T) {
	sup, _, _ := newTestSupervisor(t, PolicyTransient, 3)

	_, err := sup.StartAgent("alpha", actor.Options{})
	require.NoError(t, err)
	_, err = sup.StartAgent("beta", actor.Options{})
	require.NoError(t, err)

	agents, err := sup.ListAgents()
	require.NoError(t, err)
	names := make([]string, 0, len(agents))
	for _, a := range agents {
		names = append(names, a.Name)
	}
	assert.ElementsMatch(t, []string{"alpha", "beta"}, names)
}

func TestSupervisor_Status(t *testing.T) {
	sup, rt, sink := newTestSupervisor(t, PolicyAlways, 5)

	_, err := sup.StartAgent("worker-1", actor.Options{})
	require.NoError(t, err)

	crash(t, sup, rt, "worker-1")
	sink.waitForEvent(t, EventRestarted)

	sum, err := sup.Status()
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Count)
	assert.Equal(t, PolicyAlways, sum.Policy)
	assert.Equal(t, 5, sum.MaxRestarts)
	assert.Equal(t, 1, sum.Restarts["worker-1"])
}

func TestSupervisor_Callbacks(t *testing.T) {
	rt := actor.NewRuntime(slog.Default())
	sink := &captureSink{}
	sup := New(rt, Config{
		Policy:       PolicyAlways,
		MaxRestarts:  3,
		RestartDelay: 5 * time.Millisecond,
		OpTimeout:    2 * time.Second,
	}, sink, slog.Default())
	t.Cleanup(func() {
		sup.Close()
		rt.Shutdown(2 * time.Second)
	})

	var mu sync.Mutex
	starts := make(map[string]int)
	stops := make(map[string]int)
	sup.OnStart(func(name, addr string) {
		mu.Lock()
		starts[name]++
		mu.Unlock()
	})
	sup.OnStop(func(name string) {
		mu.Lock()
		stops[name]++
		mu.Unlock()
	})

	_, err := sup.StartAgent("worker-1", actor.Options{})
	require.NoError(t, err)

	crash(t, sup, rt, "worker-1")
	sink.waitForEvent(t, EventRestarted)

	require.NoError(t, sup.StopAgent("worker-1"))

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return starts["worker-1"] == 2 && stops["worker-1"] == 1
	}, "callbacks not fired as expected")
}

func TestSupervisor_ClosedRejectsOperations(t *testing.T) {
	rt := actor.NewRuntime(slog.Default())
	t.Cleanup(func() { rt.Shutdown(2 * time.Second) })
	sup := New(rt, Config{Policy: PolicyNever, OpTimeout: time.Second}, nil, slog.Default())

	sup.Close()

	_, err := sup.StartAgent("worker-1", actor.Options{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestParsePolicy(t *testing.T) {
	for _, valid := range []string{"always", "never", "transient"} {
		p, err := ParsePolicy(valid)
		require.NoError(t, err)
		assert.Equal(t, Policy(valid), p)
	}

	_, err := ParsePolicy("sometimes")
	assert.Error(t, err)
}
