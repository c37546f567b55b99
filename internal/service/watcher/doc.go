// Package watcher implements the alarm watcher service: the owner of
// the active alarm set, the 1-second timeout evaluator, the laboratory
// signal loop and the fire-and-forget notification dispatch.
//
// The service is Running from construction. Shutdown flips it to
// Stopping, both loops observe the flag within one tick and exit, and
// the state becomes Stopped once they have been joined. Detached
// dispatch tasks are deliberately not joined: delivery is best-effort
// and may be cut short by process exit.
package watcher
