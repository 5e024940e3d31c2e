// Package procs implements a goroutine-backed lightweight-process runtime
// satisfying the lifecycle.Runtime contract.
//
// Each process is a goroutine with a buffered mailbox. Processes can be
// linked (termination propagates along links), monitored (watchers receive
// a Down message), named, and signaled.
//
// # Signal Semantics
//
// A kill signal terminates the target unconditionally. Any other signal is
// delivered as an Exit message if the target traps signals
// (lifecycle.FlagTrapSignals); otherwise a normal signal is a no-op and any
// other reason terminates the target with that reason. Exit propagation
// along links follows the same rules.
//
// # Body Termination
//
// Goroutines cannot be preempted, so termination is cooperative at the
// body's blocking points: once a process is terminated, its pending and
// future Receive calls return ErrStopped and sends to it fail. The process
// is unregistered, and its links and monitors are notified, at signal time,
// not when the body goroutine eventually returns.
package procs
