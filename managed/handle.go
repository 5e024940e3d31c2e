package managed

import (
	"github.com/wippyai/lifecycle"
	"github.com/wippyai/lifecycle/registry"
)

// Handle stands in for a live resource. It is an immutable value type; copy
// it freely. All copies address the same resource and share one release
// registration.
//
// Handles are created only by this package's factory functions.
type Handle struct {
	rt   lifecycle.Runtime
	reg  *registry.Registry
	id   lifecycle.PID
	life *registry.Lifetime
}

// IsLive reports whether the underlying resource is still alive. Pure
// query; a false result may mean external termination, explicit release,
// or automatic release having already run.
func (h Handle) IsLive() bool {
	return h.rt.IsAlive(h.id)
}

// Terminate asks the runtime to stop the resource with the given reason.
// It does not release the registration: the automatic release still fires
// when the handle is collected, harmlessly signaling a dead resource.
// Terminating twice is equally harmless.
func (h Handle) Terminate(reason lifecycle.Reason) {
	h.rt.Signal(h.id, reason)
}

// Release runs the armed teardown immediately, if the automatic path has
// not fired yet, and reports whether it did. After Release the resource is
// gone regardless of how many handle copies remain reachable.
func (h Handle) Release() bool {
	fired := h.reg.ReleaseNow(h.life.Token())
	h.life.Cancel()
	return fired
}

// UnwrapID returns the raw resource id.
//
// This breaks the liveness-tracking illusion: the raw id is not a handle
// copy, so once every Handle is dropped the resource will be released even
// if the id is still held. Prefer keeping a Handle.
func (h Handle) UnwrapID() lifecycle.PID {
	return h.id
}

// Info forwards a state query to the runtime.
func (h Handle) Info() (lifecycle.ProcInfo, bool) {
	return h.rt.Info(h.id)
}

// Flag forwards a flag change to the runtime.
func (h Handle) Flag(flag lifecycle.Flag, on bool) bool {
	return h.rt.SetFlag(h.id, flag, on)
}

// Link links the resource to another handle's resource.
func (h Handle) Link(other Handle) error {
	return h.rt.Link(h.id, other.id)
}

// Unlink removes a link established by Link or at spawn time.
func (h Handle) Unlink(other Handle) error {
	return h.rt.Unlink(h.id, other.id)
}

// RegisterName binds a name to the resource in the runtime's name table.
func (h Handle) RegisterName(name string) error {
	return h.rt.RegisterName(name, h.id)
}

// Send delivers a message to the resource's mailbox and reports whether it
// was accepted.
func (h Handle) Send(msg any) bool {
	return h.rt.Send(h.id, msg)
}

// Target addresses a message destination: either a managed handle or a raw
// PID. Both resolve to the same underlying send primitive.
type Target struct {
	rt  lifecycle.Runtime
	pid lifecycle.PID
}

// To targets a managed handle.
func To(h Handle) Target {
	return Target{rt: h.rt, pid: h.id}
}

// Raw targets a bare PID on the given runtime. The liveness caveats of
// UnwrapID apply.
func Raw(rt lifecycle.Runtime, pid lifecycle.PID) Target {
	return Target{rt: rt, pid: pid}
}

// Send delivers msg to the target and reports whether it was accepted.
// Sends to dead or released resources return false.
func Send(t Target, msg any) bool {
	if t.rt == nil {
		return false
	}
	return t.rt.Send(t.pid, msg)
}
