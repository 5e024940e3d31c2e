// Package registry implements the finalization registry: a process-wide
// table mapping tokens to release actions, with an at-most-once firing
// guarantee.
//
// # Lifecycle
//
// A release action is armed with Arm, which returns a fresh Token. The
// action fires through exactly one of two paths:
//
//	ReleaseNow(token)          explicit early release, reports whether it fired
//	NotifyUnreachable(token)   invoked by the lifecycle notifier when the
//	                           owning handle becomes unreachable
//
// Both paths perform an atomic take of the table entry, so racing them is
// safe: exactly one caller removes and runs the action, the other observes
// absence and does nothing. The action runs outside the table lock.
//
// # GC Tracking
//
// Track binds a token to the reachability of a heap object (the Lifetime
// anchor) via runtime.AddCleanup. Handle values share one anchor; when the
// last copy becomes unreachable the Go runtime invokes NotifyUnreachable
// asynchronously. There is no latency bound on this path.
//
// # Diagnostics
//
// A release action that panics is recovered and reported to the package
// logger (nop by default, see SetLogger); the panic never propagates to the
// goroutine that triggered the release, which on the automatic path belongs
// to the Go runtime, not the application.
package registry
