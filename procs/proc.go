package procs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/lifecycle"
)

// ErrStopped is returned by Receive after the process has been terminated.
var ErrStopped = errors.New("process stopped")

// Func is a process body. It runs on its own goroutine; returning exits the
// process with a normal reason, panicking exits it with a panic reason.
type Func func(p *Proc)

// Exit is delivered to a trapping process in place of a termination signal,
// and to trapping link peers when a linked process exits. From is zero for
// direct signals.
type Exit struct {
	From   lifecycle.PID
	Reason lifecycle.Reason
}

// Down is delivered to a monitor when the monitored process terminates.
type Down struct {
	PID    lifecycle.PID
	Reason lifecycle.Reason
}

// Proc is a running process. The value passed to the body is also the
// body's API surface: receive messages, send to peers, set flags.
type Proc struct {
	id      lifecycle.PID
	node    *Node
	mailbox chan any
	stop    chan struct{}

	stopOnce sync.Once
	trap     atomic.Bool

	// name is guarded by node.mu; everything below by mu.
	name string

	mu       sync.Mutex
	reason   lifecycle.Reason
	links    map[lifecycle.PID]struct{}
	monitors map[lifecycle.PID]struct{}
}

// ID returns the process identifier.
func (p *Proc) ID() lifecycle.PID {
	return p.id
}

// Receive blocks until a message arrives, the context is done, or the
// process is terminated.
func (p *Proc) Receive(ctx context.Context) (any, error) {
	select {
	case msg := <-p.mailbox:
		return msg, nil
	case <-p.stop:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Send delivers a message to another process through the node.
func (p *Proc) Send(to lifecycle.PID, msg any) bool {
	return p.node.Send(to, msg)
}

// SetTrapSignals sets the trap flag for this process; see package docs.
func (p *Proc) SetTrapSignals(on bool) {
	p.trap.Store(on)
}

// run executes the body and converts its outcome into a termination.
func (p *Proc) run(fn Func) {
	defer func() {
		reason := lifecycle.ReasonNormal
		if r := recover(); r != nil {
			reason = lifecycle.Reason(fmt.Sprintf("panic: %v", r))
			p.node.log.Error("process body panicked",
				zap.Uint64("pid", uint64(p.id)),
				zap.Any("panic", r))
		}
		p.terminate(reason)
	}()
	fn(p)
}

// terminate runs the full exit sequence exactly once: record the reason,
// wake blocked receivers, unregister, then notify links and monitors.
func (p *Proc) terminate(reason lifecycle.Reason) {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.reason = reason
		p.mu.Unlock()

		close(p.stop)
		p.node.unregister(p)
		p.notifyPeers(reason)

		p.node.log.Debug("process terminated",
			zap.Uint64("pid", uint64(p.id)),
			zap.String("reason", string(reason)))
	})
}

func (p *Proc) notifyPeers(reason lifecycle.Reason) {
	p.mu.Lock()
	links := make([]lifecycle.PID, 0, len(p.links))
	for pid := range p.links {
		links = append(links, pid)
	}
	monitors := make([]lifecycle.PID, 0, len(p.monitors))
	for pid := range p.monitors {
		monitors = append(monitors, pid)
	}
	p.mu.Unlock()

	for _, pid := range links {
		if peer := p.node.proc(pid); peer != nil {
			peer.dropLink(p.id)
			exitSignal(peer, p.id, reason)
		}
	}
	for _, pid := range monitors {
		if w := p.node.proc(pid); w != nil {
			w.deliver(Down{PID: p.id, Reason: reason})
		}
	}
}

// exitSignal applies link-propagation rules: trapping peers get a message,
// normal exits are ignored, anything else takes the peer down too. The
// stopOnce guard makes propagation cycles terminate.
func exitSignal(peer *Proc, from lifecycle.PID, reason lifecycle.Reason) {
	switch {
	case peer.trap.Load():
		peer.deliver(Exit{From: from, Reason: reason})
	case reason == lifecycle.ReasonNormal:
		// no-op
	default:
		peer.terminate(reason)
	}
}

// deliver is a best-effort, non-blocking enqueue used for exit and down
// notifications. A full mailbox drops the notification rather than stalling
// the terminating process.
func (p *Proc) deliver(msg any) bool {
	select {
	case <-p.stop:
		return false
	default:
	}
	select {
	case p.mailbox <- msg:
		return true
	default:
		p.node.log.Warn("mailbox full, dropping notification",
			zap.Uint64("pid", uint64(p.id)))
		return false
	}
}

func (p *Proc) addLink(pid lifecycle.PID) {
	p.mu.Lock()
	p.links[pid] = struct{}{}
	p.mu.Unlock()
}

func (p *Proc) dropLink(pid lifecycle.PID) {
	p.mu.Lock()
	delete(p.links, pid)
	p.mu.Unlock()
}

func (p *Proc) addMonitor(pid lifecycle.PID) {
	p.mu.Lock()
	p.monitors[pid] = struct{}{}
	p.mu.Unlock()
}
