// Package managed provides the Handle type and its factory: the only way to
// obtain a resource whose teardown is bound to handle reachability.
//
// A Handle is an immutable value wrapping a runtime PID plus its release
// registration. Copies share one lifetime anchor; when the last copy becomes
// unreachable, the registry kills the underlying resource. Constructing a
// handle from a bare PID is deliberately impossible, since it would bypass
// the release guarantee.
//
// Forwarding operations (IsLive, Terminate, Info, Link, Send, ...) act on
// the underlying resource through the runtime and never touch the registry.
// In particular Terminate only asks the resource to stop: the armed release
// still fires later when the handle is collected, as a safe no-op against
// an already-dead resource.
//
// UnwrapID is the documented escape hatch. Raw PID holders are not counted
// as handle copies, so the resource may be released out from under them.
package managed
