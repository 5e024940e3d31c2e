package procs

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/lifecycle"
	"github.com/wippyai/lifecycle/errors"
)

const defaultMailboxSize = 64

// Options configures a Node.
type Options struct {
	// Logger receives lifecycle diagnostics. Nil means no logging.
	Logger *zap.Logger

	// MailboxSize is the default mailbox capacity for spawned processes.
	// Zero selects the package default.
	MailboxSize int
}

// Node is a runtime of lightweight processes. It implements
// lifecycle.Runtime and is safe for concurrent use.
type Node struct {
	mu    sync.RWMutex
	procs map[lifecycle.PID]*Proc
	names map[string]lifecycle.PID

	next        atomic.Uint64
	log         *zap.Logger
	mailboxSize int
}

// NewNode creates an empty node with default options.
func NewNode() *Node {
	return NewNodeWithOptions(Options{})
}

// NewNodeWithOptions creates an empty node.
func NewNodeWithOptions(opts Options) *Node {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	size := opts.MailboxSize
	if size <= 0 {
		size = defaultMailboxSize
	}
	return &Node{
		procs:       make(map[lifecycle.PID]*Proc),
		names:       make(map[string]lifecycle.PID),
		log:         log,
		mailboxSize: size,
	}
}

// Spawn starts a process running body, which must be a procs.Func or a
// func(*Proc). Name, link, and monitor options are applied atomically with
// creation: a failed option leaves no process behind.
func (n *Node) Spawn(body any, opts lifecycle.SpawnOptions) (lifecycle.PID, error) {
	var fn Func
	switch b := body.(type) {
	case Func:
		fn = b
	case func(*Proc):
		fn = b
	default:
		return 0, errors.InvalidInput(errors.PhaseSpawn,
			fmt.Sprintf("unsupported body type %T, want procs.Func", body))
	}
	if fn == nil {
		return 0, errors.InvalidInput(errors.PhaseSpawn, "nil process body")
	}

	size := opts.MailboxSize
	if size <= 0 {
		size = n.mailboxSize
	}

	id := lifecycle.PID(n.next.Add(1))
	p := &Proc{
		id:       id,
		node:     n,
		mailbox:  make(chan any, size),
		stop:     make(chan struct{}),
		links:    make(map[lifecycle.PID]struct{}),
		monitors: make(map[lifecycle.PID]struct{}),
	}

	n.mu.Lock()
	if opts.Name != "" {
		if _, taken := n.names[opts.Name]; taken {
			n.mu.Unlock()
			return 0, errors.NameTaken(opts.Name)
		}
	}
	var linked, watcher *Proc
	if opts.LinkTo != 0 {
		if linked = n.procs[opts.LinkTo]; linked == nil {
			n.mu.Unlock()
			return 0, errors.NotFound(errors.PhaseSpawn,
				fmt.Sprintf("link target %d is not alive", opts.LinkTo))
		}
	}
	if opts.MonitorBy != 0 {
		if watcher = n.procs[opts.MonitorBy]; watcher == nil {
			n.mu.Unlock()
			return 0, errors.NotFound(errors.PhaseSpawn,
				fmt.Sprintf("monitor %d is not alive", opts.MonitorBy))
		}
	}
	if opts.Name != "" {
		n.names[opts.Name] = id
		p.name = opts.Name
	}
	// Peer bookkeeping happens under the node lock so a concurrently
	// terminating peer either rejects the spawn above or observes the new
	// link when it snapshots its peers.
	if linked != nil {
		p.addLink(linked.id)
		linked.addLink(id)
	}
	if watcher != nil {
		p.addMonitor(watcher.id)
	}
	n.procs[id] = p
	n.mu.Unlock()

	n.log.Debug("spawned process",
		zap.Uint64("pid", uint64(id)),
		zap.String("name", opts.Name))

	go p.run(fn)
	return id, nil
}

// IsAlive reports whether pid is a live process on this node.
func (n *Node) IsAlive(pid lifecycle.PID) bool {
	return n.proc(pid) != nil
}

// Signal delivers a termination signal; see the package docs for the
// reason taxonomy. Signaling a dead process is a no-op.
func (n *Node) Signal(pid lifecycle.PID, reason lifecycle.Reason) {
	p := n.proc(pid)
	if p == nil {
		return
	}
	switch {
	case reason == lifecycle.ReasonKill:
		p.terminate(lifecycle.ReasonKill)
	case p.trap.Load():
		p.deliver(Exit{Reason: reason})
	case reason == lifecycle.ReasonNormal:
		// no-op for non-trapping targets
	default:
		p.terminate(reason)
	}
}

// Send delivers msg to pid's mailbox, blocking while it is full. It
// reports false if the process is dead or dies while the send waits.
func (n *Node) Send(pid lifecycle.PID, msg any) bool {
	p := n.proc(pid)
	if p == nil {
		return false
	}
	select {
	case p.mailbox <- msg:
		return true
	case <-p.stop:
		return false
	}
}

// Info returns a snapshot of the process state.
func (n *Node) Info(pid lifecycle.PID) (lifecycle.ProcInfo, bool) {
	n.mu.RLock()
	p := n.procs[pid]
	var name string
	if p != nil {
		name = p.name
	}
	n.mu.RUnlock()
	if p == nil {
		return lifecycle.ProcInfo{}, false
	}

	p.mu.Lock()
	links := make([]lifecycle.PID, 0, len(p.links))
	for l := range p.links {
		links = append(links, l)
	}
	p.mu.Unlock()

	return lifecycle.ProcInfo{
		Name:         name,
		MailboxLen:   len(p.mailbox),
		Links:        links,
		TrapsSignals: p.trap.Load(),
	}, true
}

// Link establishes a bidirectional link between two live processes.
func (n *Node) Link(a, b lifecycle.PID) error {
	if a == b {
		return errors.InvalidInput(errors.PhaseRuntime, "cannot link a process to itself")
	}
	n.mu.Lock()
	pa, pb := n.procs[a], n.procs[b]
	if pa == nil || pb == nil {
		n.mu.Unlock()
		return errors.NotFound(errors.PhaseRuntime, "link endpoint is not alive")
	}
	pa.addLink(b)
	pb.addLink(a)
	n.mu.Unlock()
	return nil
}

// Unlink removes a link between two processes. Absent links and dead
// endpoints are not errors.
func (n *Node) Unlink(a, b lifecycle.PID) error {
	n.mu.Lock()
	if pa := n.procs[a]; pa != nil {
		pa.dropLink(b)
	}
	if pb := n.procs[b]; pb != nil {
		pb.dropLink(a)
	}
	n.mu.Unlock()
	return nil
}

// RegisterName binds name to a live process. A process holds at most one
// name; the binding disappears when it terminates.
func (n *Node) RegisterName(name string, pid lifecycle.PID) error {
	if name == "" {
		return errors.InvalidInput(errors.PhaseRuntime, "empty name")
	}
	n.mu.Lock()
	defer n.mu.Unlock()

	p := n.procs[pid]
	if p == nil {
		return errors.NotFound(errors.PhaseRuntime, fmt.Sprintf("process %d is not alive", pid))
	}
	if _, taken := n.names[name]; taken {
		return errors.NameTaken(name)
	}
	if p.name != "" {
		return errors.InvalidInput(errors.PhaseRuntime,
			fmt.Sprintf("process %d already registered as %q", pid, p.name))
	}
	n.names[name] = pid
	p.name = name
	return nil
}

// WhereIs resolves a registered name.
func (n *Node) WhereIs(name string) (lifecycle.PID, bool) {
	n.mu.RLock()
	pid, ok := n.names[name]
	n.mu.RUnlock()
	return pid, ok
}

// SetFlag sets or clears a process flag.
func (n *Node) SetFlag(pid lifecycle.PID, flag lifecycle.Flag, on bool) bool {
	p := n.proc(pid)
	if p == nil || flag != lifecycle.FlagTrapSignals {
		return false
	}
	p.trap.Store(on)
	return true
}

// Len returns the number of live processes.
func (n *Node) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.procs)
}

// Shutdown kills every live process. Intended for teardown in hosts and
// tests.
func (n *Node) Shutdown() {
	n.mu.RLock()
	procs := make([]*Proc, 0, len(n.procs))
	for _, p := range n.procs {
		procs = append(procs, p)
	}
	n.mu.RUnlock()

	for _, p := range procs {
		p.terminate(lifecycle.ReasonKill)
	}
}

func (n *Node) proc(pid lifecycle.PID) *Proc {
	n.mu.RLock()
	p := n.procs[pid]
	n.mu.RUnlock()
	return p
}

func (n *Node) unregister(p *Proc) {
	n.mu.Lock()
	delete(n.procs, p.id)
	if p.name != "" {
		delete(n.names, p.name)
	}
	n.mu.Unlock()
}
