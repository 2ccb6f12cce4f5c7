// Package actor implements the agent runtime: lightweight goroutine-backed
// actors with private mailboxes, processing one message at a time.
//
// # Runtime
//
// The Runtime owns every actor on this node:
//
//	rt := actor.NewRuntime(logger)
//	ref, err := rt.Spawn("Worker-1", actor.Options{Memory: seed})
//
// Key operations:
//
//   - Spawn(name, opts): create and start an agent actor
//   - Terminate(ref): clean shutdown (exit reason "normal")
//   - Kill(ref, reason): abnormal termination
//   - State(ctx, ref): snapshot of name, memory, inbox depth
//   - Submit(ctx, ref, action, params): enqueue a task
//   - ProcessNext(ctx, ref): execute the oldest queued task
//
// # Exit notifications
//
// Every terminated actor produces an Exit{Ref, Reason} on the channel
// returned by Exits. The supervisor consumes this channel to drive its
// restart policy. A panic inside a task handler is recovered, converted
// into an abnormal exit reason, and reported the same way; an actor
// failure never takes the process down.
//
// # Addresses
//
// A Ref is the opaque address of one actor instance. Restarting an agent
// always yields a fresh Ref, so a stale address held elsewhere (for
// example in the directory cache) can be detected with IsAlive and
// re-resolved.
//
// # Thread safety
//
// The Runtime registry is safe for concurrent use. Actor state (memory,
// inbox) is owned exclusively by the actor's own goroutine; callers reach
// it only through mailbox requests, each bounded by the caller's context.
package actor
