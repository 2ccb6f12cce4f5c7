// Package supervisor monitors agent actor lifetimes and applies a
// configurable restart policy with a bounded retry budget.
//
// # Control loop
//
// A single goroutine owns every SupervisionRecord. It consumes two inputs:
// exit notifications from the actor runtime, and client commands
// (StartAgent, StopAgent, queries) posted as closures. Because only this
// loop mutates records, record mutations are totally ordered and no
// restart counter is ever shared across goroutines.
//
// # Restart decision
//
// On an actor exit the loop decides whether to recreate it:
//
//   - policy "never": never restart
//   - a normal (requested) exit: never restart, under any policy
//   - restart count at the configured budget: report exhaustion, remove
//   - otherwise: recreate after a brief fixed delay with the original
//     start options, under a fresh address, restart count incremented
//
// The delay between crash and recreation avoids restart storms; a
// StopAgent issued during the delay wins and cancels the restart.
//
// # Failure containment
//
// A failure while recreating one agent drops that agent's record and is
// reported; it never takes the supervisor down.
package supervisor
