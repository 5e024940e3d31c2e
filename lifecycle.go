package lifecycle

// PID identifies a live resource inside a Runtime.
// PID 0 is reserved and always invalid.
type PID uint64

// Reason classifies a termination signal.
type Reason string

const (
	// ReasonNormal is a cooperative exit request. For a target that does not
	// trap signals it is a no-op; a trapping target receives it as a message.
	ReasonNormal Reason = "normal"

	// ReasonKill terminates the target unconditionally. It cannot be trapped.
	ReasonKill Reason = "kill"
)

// Flag selects a per-resource runtime flag.
type Flag uint8

const (
	// FlagTrapSignals converts non-kill termination signals into messages
	// delivered to the resource instead of terminating it.
	FlagTrapSignals Flag = iota + 1
)

// ProcInfo is a point-in-time snapshot of a resource's runtime state.
// Fields a runtime does not track are left at their zero value.
type ProcInfo struct {
	// Name is the registered name, or empty.
	Name string

	// MailboxLen is the number of queued, undelivered messages.
	MailboxLen int

	// Links holds the PIDs this resource is linked to.
	Links []PID

	// TrapsSignals reports whether FlagTrapSignals is set.
	TrapsSignals bool
}

// SpawnOptions configures resource creation.
type SpawnOptions struct {
	// Name registers the new resource under this name, atomically with
	// creation. Empty means unnamed.
	Name string

	// LinkTo links the new resource to an existing one, atomically with
	// creation. Zero means no link.
	LinkTo PID

	// MonitorBy makes an existing resource a monitor of the new one: it
	// receives a down-notification when the new resource terminates.
	// Zero means no monitor.
	MonitorBy PID

	// MailboxSize overrides the runtime's default mailbox capacity.
	MailboxSize int
}

// Runtime is the external collaborator that owns the actual resources.
// Implementations must be safe for concurrent use.
//
// The body argument to Spawn is runtime-specific: procs.Node accepts a
// procs.Func, wasmproc.Host accepts a wasmproc.Program. Spawn returns an
// error for bodies it does not understand.
//
// Operations addressed at a PID that is no longer alive are no-ops: queries
// report not-alive or absent, signals and sends are dropped. Racing a
// forwarding call against termination is always safe.
type Runtime interface {
	// Spawn creates a resource and returns its PID.
	Spawn(body any, opts SpawnOptions) (PID, error)

	// IsAlive reports whether the resource exists and has not terminated.
	IsAlive(pid PID) bool

	// Signal delivers a termination signal with the given reason.
	// See Reason for the taxonomy. Unknown reasons terminate non-trapping
	// targets with that reason.
	Signal(pid PID, reason Reason)

	// Send delivers a message to the resource's mailbox. It reports whether
	// the message was accepted; sends to dead resources return false.
	Send(pid PID, msg any) bool

	// Info returns a snapshot of the resource's state, or false if it is
	// not alive.
	Info(pid PID) (ProcInfo, bool)

	// Link establishes a bidirectional link between two live resources.
	Link(a, b PID) error

	// Unlink removes a link. Removing an absent link is not an error.
	Unlink(a, b PID) error

	// RegisterName binds a name to a live resource. The binding is removed
	// when the resource terminates.
	RegisterName(name string, pid PID) error

	// SetFlag sets or clears a flag and reports whether the flag was
	// applied. Dead PIDs and unknown flags return false.
	SetFlag(pid PID, flag Flag, on bool) bool
}
