package wasmproc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/lifecycle"
	"github.com/wippyai/lifecycle/errors"
)

// Program is the spawn body accepted by Host.
type Program struct {
	// Binary is the WebAssembly module in binary format.
	Binary []byte

	// Entry names an exported function to run as the instance's body.
	// Empty means the instance is resident until signaled.
	Entry string
}

// Options configures a Host.
type Options struct {
	// Logger receives lifecycle diagnostics. Nil means no logging.
	Logger *zap.Logger

	// MemoryLimitPages caps each instance's linear memory. Zero means the
	// wazero default.
	MemoryLimitPages uint32
}

// Host runs WebAssembly module instances as managed resources. It
// implements lifecycle.Runtime and is safe for concurrent use.
type Host struct {
	runtime wazero.Runtime
	ctx     context.Context
	log     *zap.Logger

	mu     sync.Mutex
	insts  map[lifecycle.PID]*instance
	names  map[string]lifecycle.PID
	closed bool

	next atomic.Uint64
}

type instance struct {
	id     lifecycle.PID
	module api.Module
	host   *Host
	name   string

	reapOnce sync.Once
}

// NewHost creates a host with default options.
func NewHost(ctx context.Context) *Host {
	return NewHostWithOptions(ctx, Options{})
}

// NewHostWithOptions creates a host. The context is used for all engine
// operations for the host's lifetime.
func NewHostWithOptions(ctx context.Context, opts Options) *Host {
	runtimeCfg := wazero.NewRuntimeConfig()
	if opts.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(opts.MemoryLimitPages)
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Host{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		ctx:     ctx,
		log:     log,
		insts:   make(map[lifecycle.PID]*instance),
		names:   make(map[string]lifecycle.PID),
	}
}

// Close terminates every instance and releases the engine.
func (h *Host) Close(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	insts := make([]*instance, 0, len(h.insts))
	for _, i := range h.insts {
		insts = append(insts, i)
	}
	h.mu.Unlock()

	for _, i := range insts {
		i.reap()
	}
	return h.runtime.Close(ctx)
}

// Spawn instantiates a Program and returns the instance's PID.
func (h *Host) Spawn(body any, opts lifecycle.SpawnOptions) (lifecycle.PID, error) {
	prog, ok := body.(Program)
	if !ok {
		return 0, errors.InvalidInput(errors.PhaseSpawn,
			fmt.Sprintf("unsupported body type %T, want wasmproc.Program", body))
	}
	if opts.LinkTo != 0 || opts.MonitorBy != 0 {
		return 0, errors.Unsupported(errors.PhaseSpawn, "links and monitors between module instances")
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return 0, errors.Closed(errors.PhaseSpawn, "host closed")
	}
	h.mu.Unlock()

	id := lifecycle.PID(h.next.Add(1))
	mod, err := h.runtime.InstantiateWithConfig(h.ctx, prog.Binary,
		wazero.NewModuleConfig().WithName(fmt.Sprintf("proc-%d", id)))
	if err != nil {
		return 0, errors.Wrap(errors.PhaseSpawn, errors.KindCreationFailed, err, "instantiate module")
	}

	var entryFn api.Function
	if prog.Entry != "" {
		if entryFn = mod.ExportedFunction(prog.Entry); entryFn == nil {
			_ = mod.Close(h.ctx)
			return 0, errors.NotFound(errors.PhaseSpawn,
				fmt.Sprintf("exported function %q", prog.Entry))
		}
	}

	inst := &instance{id: id, module: mod, host: h, name: opts.Name}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = mod.Close(h.ctx)
		return 0, errors.Closed(errors.PhaseSpawn, "host closed")
	}
	if opts.Name != "" {
		if _, taken := h.names[opts.Name]; taken {
			h.mu.Unlock()
			_ = mod.Close(h.ctx)
			return 0, errors.NameTaken(opts.Name)
		}
		h.names[opts.Name] = id
	}
	h.insts[id] = inst
	h.mu.Unlock()

	h.log.Debug("spawned instance",
		zap.Uint64("pid", uint64(id)),
		zap.String("entry", prog.Entry))

	if entryFn != nil {
		go func() {
			if _, err := entryFn.Call(h.ctx); err != nil {
				// Closing the module mid-call also surfaces here.
				h.log.Debug("entry returned with error",
					zap.Uint64("pid", uint64(id)),
					zap.Error(err))
			}
			inst.reap()
		}()
	}

	return id, nil
}

// IsAlive reports whether the instance exists and has not been closed.
func (h *Host) IsAlive(pid lifecycle.PID) bool {
	h.mu.Lock()
	_, ok := h.insts[pid]
	h.mu.Unlock()
	return ok
}

// Signal terminates the instance unless the reason is normal. Instances do
// not trap signals, so a normal signal is always a no-op.
func (h *Host) Signal(pid lifecycle.PID, reason lifecycle.Reason) {
	if reason == lifecycle.ReasonNormal {
		return
	}
	h.mu.Lock()
	inst := h.insts[pid]
	h.mu.Unlock()
	if inst != nil {
		inst.reap()
	}
}

// Send always reports false: instances have no mailboxes. Drive them
// through exported functions instead.
func (h *Host) Send(pid lifecycle.PID, msg any) bool {
	return false
}

// Info returns the instance's registered name.
func (h *Host) Info(pid lifecycle.PID) (lifecycle.ProcInfo, bool) {
	h.mu.Lock()
	inst := h.insts[pid]
	h.mu.Unlock()
	if inst == nil {
		return lifecycle.ProcInfo{}, false
	}
	return lifecycle.ProcInfo{Name: inst.name}, true
}

// Link is not supported between module instances.
func (h *Host) Link(a, b lifecycle.PID) error {
	return errors.Unsupported(errors.PhaseRuntime, "links between module instances")
}

// Unlink is not supported between module instances.
func (h *Host) Unlink(a, b lifecycle.PID) error {
	return errors.Unsupported(errors.PhaseRuntime, "links between module instances")
}

// RegisterName binds a name to a live instance.
func (h *Host) RegisterName(name string, pid lifecycle.PID) error {
	if name == "" {
		return errors.InvalidInput(errors.PhaseRuntime, "empty name")
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	inst := h.insts[pid]
	if inst == nil {
		return errors.NotFound(errors.PhaseRuntime, fmt.Sprintf("instance %d is not alive", pid))
	}
	if _, taken := h.names[name]; taken {
		return errors.NameTaken(name)
	}
	if inst.name != "" {
		return errors.InvalidInput(errors.PhaseRuntime,
			fmt.Sprintf("instance %d already registered as %q", pid, inst.name))
	}
	h.names[name] = pid
	inst.name = name
	return nil
}

// WhereIs resolves a registered name.
func (h *Host) WhereIs(name string) (lifecycle.PID, bool) {
	h.mu.Lock()
	pid, ok := h.names[name]
	h.mu.Unlock()
	return pid, ok
}

// SetFlag always reports false: instances have no runtime flags.
func (h *Host) SetFlag(pid lifecycle.PID, flag lifecycle.Flag, on bool) bool {
	return false
}

// Len returns the number of live instances.
func (h *Host) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.insts)
}

// reap unregisters and closes the instance, exactly once.
func (i *instance) reap() {
	i.reapOnce.Do(func() {
		h := i.host
		h.mu.Lock()
		delete(h.insts, i.id)
		if i.name != "" {
			delete(h.names, i.name)
		}
		h.mu.Unlock()

		if err := i.module.Close(h.ctx); err != nil {
			h.log.Warn("close instance",
				zap.Uint64("pid", uint64(i.id)),
				zap.Error(err))
		}
	})
}
