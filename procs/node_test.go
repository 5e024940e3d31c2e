package procs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wippyai/lifecycle"
	liberr "github.com/wippyai/lifecycle/errors"
)

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// echoBody replies to every {from, text} request until stopped.
type echoReq struct {
	from lifecycle.PID
	text string
}

func echoBody(p *Proc) {
	for {
		msg, err := p.Receive(context.Background())
		if err != nil {
			return
		}
		if req, ok := msg.(echoReq); ok {
			p.Send(req.from, req.text)
		}
	}
}

func TestNode_SpawnAndSend(t *testing.T) {
	n := NewNode()
	defer n.Shutdown()

	echo, err := n.Spawn(Func(echoBody), lifecycle.SpawnOptions{})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if !n.IsAlive(echo) {
		t.Fatal("spawned process should be alive")
	}

	got := make(chan any, 1)
	client, err := n.Spawn(func(p *Proc) {
		p.Send(echo, echoReq{from: p.ID(), text: "ping"})
		msg, err := p.Receive(context.Background())
		if err != nil {
			return
		}
		got <- msg
	}, lifecycle.SpawnOptions{})
	if err != nil {
		t.Fatalf("Spawn client: %v", err)
	}

	select {
	case msg := <-got:
		if msg != "ping" {
			t.Fatalf("echo reply = %v, want %q", msg, "ping")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no echo reply")
	}

	// The client body returned; it winds down on its own.
	waitUntil(t, "client exit", func() bool { return !n.IsAlive(client) })
	if !n.IsAlive(echo) {
		t.Fatal("echo process should outlive the client")
	}
}

func TestNode_SpawnRejectsBadBody(t *testing.T) {
	n := NewNode()

	if _, err := n.Spawn(42, lifecycle.SpawnOptions{}); !liberr.IsKind(err, liberr.KindInvalidInput) {
		t.Fatalf("expected invalid input for int body, got %v", err)
	}
	if _, err := n.Spawn(nil, lifecycle.SpawnOptions{}); !liberr.IsKind(err, liberr.KindInvalidInput) {
		t.Fatalf("expected invalid input for nil body, got %v", err)
	}
}

func blockForever(p *Proc) {
	for {
		if _, err := p.Receive(context.Background()); err != nil {
			return
		}
	}
}

func TestNode_SignalTaxonomy(t *testing.T) {
	n := NewNode()
	defer n.Shutdown()

	pid, err := n.Spawn(Func(blockForever), lifecycle.SpawnOptions{})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	// Normal signal to a non-trapping process is a no-op.
	n.Signal(pid, lifecycle.ReasonNormal)
	if !n.IsAlive(pid) {
		t.Fatal("normal signal should not terminate a non-trapping process")
	}

	// Kill is unconditional and takes effect before Signal returns.
	n.Signal(pid, lifecycle.ReasonKill)
	if n.IsAlive(pid) {
		t.Fatal("killed process should not be alive")
	}

	// Signaling a dead process is a silent no-op.
	n.Signal(pid, lifecycle.ReasonKill)
	n.Signal(pid, "whatever")

	// Any other reason also terminates a non-trapping process.
	pid2, _ := n.Spawn(Func(blockForever), lifecycle.SpawnOptions{})
	n.Signal(pid2, "shutdown")
	if n.IsAlive(pid2) {
		t.Fatal("shutdown signal should terminate a non-trapping process")
	}
}

func TestNode_TrapSignals(t *testing.T) {
	n := NewNode()
	defer n.Shutdown()

	got := make(chan Exit, 1)
	pid, err := n.Spawn(func(p *Proc) {
		p.SetTrapSignals(true)
		for {
			msg, err := p.Receive(context.Background())
			if err != nil {
				return
			}
			if e, ok := msg.(Exit); ok {
				got <- e
			}
		}
	}, lifecycle.SpawnOptions{})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	waitUntil(t, "trap flag", func() bool {
		info, ok := n.Info(pid)
		return ok && info.TrapsSignals
	})

	// A trapping process receives the signal as a message and stays alive.
	n.Signal(pid, "shutdown")
	select {
	case e := <-got:
		if e.Reason != "shutdown" {
			t.Fatalf("trapped reason = %q, want %q", e.Reason, "shutdown")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("trapping process did not receive the signal")
	}
	if !n.IsAlive(pid) {
		t.Fatal("trapping process should survive a non-kill signal")
	}

	// Trapping a normal signal delivers it too.
	n.Signal(pid, lifecycle.ReasonNormal)
	select {
	case e := <-got:
		if e.Reason != lifecycle.ReasonNormal {
			t.Fatalf("trapped reason = %q, want normal", e.Reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("trapping process did not receive the normal signal")
	}

	// Kill cannot be trapped.
	n.Signal(pid, lifecycle.ReasonKill)
	if n.IsAlive(pid) {
		t.Fatal("kill must not be trappable")
	}
}

func TestNode_LinkPropagation(t *testing.T) {
	n := NewNode()
	defer n.Shutdown()

	a, err := n.Spawn(Func(blockForever), lifecycle.SpawnOptions{})
	if err != nil {
		t.Fatalf("Spawn a: %v", err)
	}
	b, err := n.Spawn(Func(blockForever), lifecycle.SpawnOptions{LinkTo: a})
	if err != nil {
		t.Fatalf("Spawn b: %v", err)
	}

	info, ok := n.Info(a)
	if !ok || len(info.Links) != 1 || info.Links[0] != b {
		t.Fatalf("Info(a).Links = %v, want [%d]", info.Links, b)
	}

	// Killing one end takes the other down.
	n.Signal(a, lifecycle.ReasonKill)
	waitUntil(t, "link propagation", func() bool { return !n.IsAlive(b) })
}

func TestNode_LinkNormalExitIsQuiet(t *testing.T) {
	n := NewNode()
	defer n.Shutdown()

	a, _ := n.Spawn(Func(blockForever), lifecycle.SpawnOptions{})

	done := make(chan struct{})
	b, err := n.Spawn(func(p *Proc) {
		<-done
	}, lifecycle.SpawnOptions{LinkTo: a})
	if err != nil {
		t.Fatalf("Spawn b: %v", err)
	}

	close(done)
	waitUntil(t, "b exit", func() bool { return !n.IsAlive(b) })

	// b exited normally; its link peer stays up.
	time.Sleep(20 * time.Millisecond)
	if !n.IsAlive(a) {
		t.Fatal("normal exit must not propagate along links")
	}
}

func TestNode_LinkTrapReceivesExit(t *testing.T) {
	n := NewNode()
	defer n.Shutdown()

	got := make(chan Exit, 1)
	watcher, err := n.Spawn(func(p *Proc) {
		p.SetTrapSignals(true)
		for {
			msg, err := p.Receive(context.Background())
			if err != nil {
				return
			}
			if e, ok := msg.(Exit); ok {
				got <- e
			}
		}
	}, lifecycle.SpawnOptions{})
	if err != nil {
		t.Fatalf("Spawn watcher: %v", err)
	}

	victim, err := n.Spawn(Func(blockForever), lifecycle.SpawnOptions{LinkTo: watcher})
	if err != nil {
		t.Fatalf("Spawn victim: %v", err)
	}

	n.Signal(victim, "crash")
	select {
	case e := <-got:
		if e.From != victim || e.Reason != "crash" {
			t.Fatalf("Exit = %+v, want from %d reason crash", e, victim)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("trapping link peer did not receive Exit")
	}
	if !n.IsAlive(watcher) {
		t.Fatal("trapping link peer should survive")
	}
}

func TestNode_Unlink(t *testing.T) {
	n := NewNode()
	defer n.Shutdown()

	a, _ := n.Spawn(Func(blockForever), lifecycle.SpawnOptions{})
	b, _ := n.Spawn(Func(blockForever), lifecycle.SpawnOptions{})

	if err := n.Link(a, b); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if err := n.Unlink(a, b); err != nil {
		t.Fatalf("Unlink: %v", err)
	}

	n.Signal(a, lifecycle.ReasonKill)
	time.Sleep(20 * time.Millisecond)
	if !n.IsAlive(b) {
		t.Fatal("unlinked process must not be taken down")
	}

	if err := n.Link(a, b); !liberr.IsKind(err, liberr.KindNotFound) {
		t.Fatalf("linking a dead process should fail, got %v", err)
	}
	if err := n.Link(b, b); !liberr.IsKind(err, liberr.KindInvalidInput) {
		t.Fatalf("self-link should fail, got %v", err)
	}
}

func TestNode_Monitor(t *testing.T) {
	n := NewNode()
	defer n.Shutdown()

	got := make(chan Down, 1)
	watcher, err := n.Spawn(func(p *Proc) {
		for {
			msg, err := p.Receive(context.Background())
			if err != nil {
				return
			}
			if d, ok := msg.(Down); ok {
				got <- d
			}
		}
	}, lifecycle.SpawnOptions{})
	if err != nil {
		t.Fatalf("Spawn watcher: %v", err)
	}

	victim, err := n.Spawn(Func(blockForever), lifecycle.SpawnOptions{MonitorBy: watcher})
	if err != nil {
		t.Fatalf("Spawn victim: %v", err)
	}

	n.Signal(victim, lifecycle.ReasonKill)
	select {
	case d := <-got:
		if d.PID != victim || d.Reason != lifecycle.ReasonKill {
			t.Fatalf("Down = %+v, want pid %d reason kill", d, victim)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not receive Down")
	}
	if !n.IsAlive(watcher) {
		t.Fatal("a monitor is not linked; it must survive")
	}
}

func TestNode_Names(t *testing.T) {
	n := NewNode()
	defer n.Shutdown()

	pid, err := n.Spawn(Func(blockForever), lifecycle.SpawnOptions{Name: "worker"})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	if got, ok := n.WhereIs("worker"); !ok || got != pid {
		t.Fatalf("WhereIs = %d,%v, want %d,true", got, ok, pid)
	}
	info, _ := n.Info(pid)
	if info.Name != "worker" {
		t.Fatalf("Info.Name = %q, want worker", info.Name)
	}

	// The name is taken while its owner lives.
	if _, err := n.Spawn(Func(blockForever), lifecycle.SpawnOptions{Name: "worker"}); !liberr.IsKind(err, liberr.KindNameTaken) {
		t.Fatalf("expected name conflict, got %v", err)
	}
	other, _ := n.Spawn(Func(blockForever), lifecycle.SpawnOptions{})
	if err := n.RegisterName("worker", other); !liberr.IsKind(err, liberr.KindNameTaken) {
		t.Fatalf("expected name conflict, got %v", err)
	}
	if err := n.RegisterName("second", pid); !liberr.IsKind(err, liberr.KindInvalidInput) {
		t.Fatalf("expected one-name-per-process error, got %v", err)
	}

	// Termination frees the name.
	n.Signal(pid, lifecycle.ReasonKill)
	if _, ok := n.WhereIs("worker"); ok {
		t.Fatal("name should be freed on termination")
	}
	if err := n.RegisterName("worker", other); err != nil {
		t.Fatalf("RegisterName after release: %v", err)
	}

	if err := n.RegisterName("ghost", pid); !liberr.IsKind(err, liberr.KindNotFound) {
		t.Fatalf("expected not found for dead pid, got %v", err)
	}
	if err := n.RegisterName("", other); !liberr.IsKind(err, liberr.KindInvalidInput) {
		t.Fatalf("expected invalid input for empty name, got %v", err)
	}
}

func TestNode_SendToDead(t *testing.T) {
	n := NewNode()

	pid, _ := n.Spawn(Func(blockForever), lifecycle.SpawnOptions{})
	n.Signal(pid, lifecycle.ReasonKill)

	if n.Send(pid, "hello") {
		t.Fatal("send to a dead process should report false")
	}
	if _, ok := n.Info(pid); ok {
		t.Fatal("Info on a dead process should report false")
	}
	if n.SetFlag(pid, lifecycle.FlagTrapSignals, true) {
		t.Fatal("SetFlag on a dead process should report false")
	}
}

func TestNode_ReceiveStopsOnTermination(t *testing.T) {
	n := NewNode()

	observed := make(chan error, 1)
	pid, err := n.Spawn(func(p *Proc) {
		_, err := p.Receive(context.Background())
		observed <- err
	}, lifecycle.SpawnOptions{})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	n.Signal(pid, lifecycle.ReasonKill)
	select {
	case err := <-observed:
		if !errors.Is(err, ErrStopped) {
			t.Fatalf("Receive returned %v, want ErrStopped", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("blocked Receive was not released by termination")
	}
}

func TestNode_PanicBecomesReason(t *testing.T) {
	n := NewNode()
	defer n.Shutdown()

	got := make(chan Down, 1)
	watcher, _ := n.Spawn(func(p *Proc) {
		for {
			msg, err := p.Receive(context.Background())
			if err != nil {
				return
			}
			if d, ok := msg.(Down); ok {
				got <- d
			}
		}
	}, lifecycle.SpawnOptions{})

	_, err := n.Spawn(func(p *Proc) {
		panic("boom")
	}, lifecycle.SpawnOptions{MonitorBy: watcher})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	select {
	case d := <-got:
		if d.Reason != "panic: boom" {
			t.Fatalf("Down.Reason = %q, want %q", d.Reason, "panic: boom")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not observe the panic exit")
	}
}

func TestNode_Shutdown(t *testing.T) {
	n := NewNode()

	for i := 0; i < 10; i++ {
		if _, err := n.Spawn(Func(blockForever), lifecycle.SpawnOptions{}); err != nil {
			t.Fatalf("Spawn: %v", err)
		}
	}
	if n.Len() != 10 {
		t.Fatalf("Len = %d, want 10", n.Len())
	}

	n.Shutdown()
	if n.Len() != 0 {
		t.Fatalf("Len = %d after Shutdown, want 0", n.Len())
	}
}
