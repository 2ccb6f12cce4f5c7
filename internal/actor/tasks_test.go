// ABOUTME: Tests for the built-in task handlers executed by agent actors.
// ABOUTME: Covers search, analyze, summarize, remember, crash, and unknown actions.

package actor

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitAndProcess(t *testing.T, rt *Runtime, ref *Ref, action string, params map[string]string) TaskResult {
	t.Helper()
	ctx := context.Background()

	task, err := rt.Submit(ctx, ref, action, params)
	require.NoError(t, err)

	result, err := rt.ProcessNext(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, task.ID, result.TaskID)
	return result
}

func TestTasks_SearchFindsMemoryNotes(t *testing.T) {
	rt := newTestRuntime(t)

	ref, err := rt.Spawn("worker-1", Options{Memory: map[string]string{
		"city":    "Oslo is cold",
		"food":    "pizza",
		"weather": "cold and rainy",
	}})
	require.NoError(t, err)

	result := submitAndProcess(t, rt, ref, ActionSearch, map[string]string{"query": "cold"})
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Contains(t, result.Output, "2 notes")
	assert.Contains(t, result.Output, "city")
	assert.Contains(t, result.Output, "weather")

	// The search query is remembered as a side effect.
	snap, err := rt.State(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "cold", snap.Memory["last_search"])
	assert.Equal(t, 1, snap.Processed)
}

func TestTasks_SearchNoMatches(t *testing.T) {
	rt := newTestRuntime(t)

	ref, err := rt.Spawn("worker-1", Options{Memory: map[string]string{"a": "b"}})
	require.NoError(t, err)

	result := submitAndProcess(t, rt, ref, ActionSearch, map[string]string{"query": "zzz"})
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Contains(t, result.Output, "no notes matching")
}

func TestTasks_Analyze(t *testing.T) {
	rt := newTestRuntime(t)

	ref, err := rt.Spawn("worker-1", Options{})
	require.NoError(t, err)

	result := submitAndProcess(t, rt, ref, ActionAnalyze, map[string]string{"text": "the quick brown fox the fox"})
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "analyzed 6 words, 4 unique", result.Output)
}

func TestTasks_Summarize(t *testing.T) {
	rt := newTestRuntime(t)

	ref, err := rt.Spawn("worker-1", Options{Memory: map[string]string{
		"beta":  "2",
		"alpha": "1",
	}})
	require.NoError(t, err)

	result := submitAndProcess(t, rt, ref, ActionSummarize, nil)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, "agent worker-1 holds 2 notes: alpha, beta", result.Output)
}

func TestTasks_RememberStoresNote(t *testing.T) {
	rt := newTestRuntime(t)

	ref, err := rt.Spawn("worker-1", Options{})
	require.NoError(t, err)

	result := submitAndProcess(t, rt, ref, ActionRemember, map[string]string{"key": "city", "value": "Oslo"})
	assert.Equal(t, StatusCompleted, result.Status)

	snap, err := rt.State(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "Oslo", snap.Memory["city"])
}

func TestTasks_RememberRequiresKey(t *testing.T) {
	rt := newTestRuntime(t)

	ref, err := rt.Spawn("worker-1", Options{})
	require.NoError(t, err)

	result := submitAndProcess(t, rt, ref, ActionRemember, map[string]string{"value": "orphan"})
	assert.Equal(t, StatusFailed, result.Status)
}

func TestTasks_UnknownAction(t *testing.T) {
	rt := newTestRuntime(t)

	ref, err := rt.Spawn("worker-1", Options{})
	require.NoError(t, err)

	result := submitAndProcess(t, rt, ref, "telepathy", nil)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Contains(t, result.Output, "telepathy")
}

func TestTasks_EmptyInbox(t *testing.T) {
	rt := newTestRuntime(t)

	ref, err := rt.Spawn("worker-1", Options{})
	require.NoError(t, err)

	result, err := rt.ProcessNext(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, result.Status)
	assert.Empty(t, result.TaskID)
}

func TestTasks_CrashRepliesThenTerminates(t *testing.T) {
	rt := NewRuntime(slog.Default())
	defer rt.Shutdown(2 * time.Second)

	ref, err := rt.Spawn("worker-1", Options{})
	require.NoError(t, err)

	result := submitAndProcess(t, rt, ref, ActionCrash, nil)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, "crash requested", result.Output)

	e := waitExit(t, rt)
	assert.Equal(t, "crash requested", e.Reason)
	assert.False(t, IsNormal(e.Reason))
	assert.False(t, rt.IsAlive(ref.ID()))
}

func TestTasks_FIFOOrder(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := context.Background()

	ref, err := rt.Spawn("worker-1", Options{})
	require.NoError(t, err)

	first, err := rt.Submit(ctx, ref, ActionRemember, map[string]string{"key": "a", "value": "1"})
	require.NoError(t, err)
	second, err := rt.Submit(ctx, ref, ActionSummarize, nil)
	require.NoError(t, err)

	result, err := rt.ProcessNext(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, first.ID, result.TaskID)

	result, err = rt.ProcessNext(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, second.ID, result.TaskID)
}
