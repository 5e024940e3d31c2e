// Package lifecycle binds opaque external resources to owner-tracked handles
// whose collection triggers deterministic release of the underlying resource.
//
// A resource here is anything a runtime can create, query, signal, and tear
// down: a lightweight process, a WebAssembly module instance, a subprocess.
// The library guarantees that when the last reachable copy of a handle is
// garbage collected, the resource's release action fires exactly once, even
// under concurrent handle duplication, explicit release, and collection.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	lifecycle/           Root package with the Runtime collaborator contract
//	├── managed/         Handle type and the spawn/create factory
//	├── registry/        Finalization registry: token table + GC tracking
//	├── procs/           Goroutine-backed lightweight-process runtime
//	├── wasmproc/        wazero-backed runtime of WebAssembly instances
//	└── errors/          Structured error types for debugging
//
// # Quick Start
//
// Spawn a process whose termination is tied to its handle's reachability:
//
//	node := procs.NewNode()
//	reg := registry.New()
//
//	h, err := managed.Spawn(reg, node, procs.Func(func(p *procs.Proc) {
//	    for {
//	        msg, err := p.Receive(context.Background())
//	        if err != nil {
//	            return
//	        }
//	        handle(msg)
//	    }
//	}))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	h.Send("hello")
//	// When every copy of h becomes unreachable, the registry kills the
//	// process automatically. Or release it explicitly:
//	h.Release()
//
// # Lifetime Model
//
// Handles are immutable value types. Copies share one lifetime anchor, so
// duplicating a handle never re-arms the release action and collecting any
// subset of the copies has no effect; only the last copy's collection fires
// it. Explicit release through Handle.Release or registry.ReleaseNow wins
// the race against the collector: exactly one of the two paths runs the
// action, the other observes an empty table slot and does nothing.
//
// Automatic release has no latency bound. It fires whenever the Go runtime
// schedules the cleanup after the last handle becomes unreachable, so a
// resource may outlive its last handle for an unspecified window. Tests and
// callers that need promptness should release explicitly.
//
// # Thread Safety
//
// Registry, Node, and Host are safe for concurrent use. Handle values may
// be copied freely across goroutines.
package lifecycle
