package managed

import (
	"github.com/wippyai/lifecycle"
	"github.com/wippyai/lifecycle/errors"
	"github.com/wippyai/lifecycle/registry"
)

// SpawnFunc creates an external resource and returns its id.
type SpawnFunc func() (lifecycle.PID, error)

// TeardownFunc terminates the resource identified by id.
type TeardownFunc func(id lifecycle.PID)

// Create is the generic factory shape: run spawn, arm teardown as the
// release action, and wrap the pair into a Handle.
//
// If spawn fails, nothing is registered and a creation error carrying the
// underlying failure is returned. If arming fails (registry closed or at
// capacity), the just-created resource is torn down synchronously before
// the error is returned, so no resource leaks on that path.
func Create(reg *registry.Registry, rt lifecycle.Runtime, spawn SpawnFunc, teardown TeardownFunc) (Handle, error) {
	if spawn == nil || teardown == nil {
		return Handle{}, errors.InvalidInput(errors.PhaseSpawn, "nil spawn or teardown function")
	}

	id, err := spawn()
	if err != nil {
		return Handle{}, errors.CreationFailed(err)
	}

	tok, err := reg.Arm(func() { teardown(id) })
	if err != nil {
		// No token was armed, so the automatic path will never run;
		// release the resource here instead of leaking it.
		teardown(id)
		return Handle{}, err
	}

	return Handle{
		rt:   rt,
		reg:  reg,
		id:   id,
		life: reg.Track(tok),
	}, nil
}

// Spawn creates a resource from body on rt and returns its managed handle.
// The armed teardown is an unconditional kill: when the last handle copy is
// collected no caller remains to observe a gentler signal, and a trapping
// resource must not be able to veto reclamation.
func Spawn(reg *registry.Registry, rt lifecycle.Runtime, body any) (Handle, error) {
	return SpawnWithOptions(reg, rt, body, lifecycle.SpawnOptions{})
}

// SpawnLink spawns a resource linked to an existing one, atomically with
// creation.
func SpawnLink(reg *registry.Registry, rt lifecycle.Runtime, body any, to lifecycle.PID) (Handle, error) {
	return SpawnWithOptions(reg, rt, body, lifecycle.SpawnOptions{LinkTo: to})
}

// SpawnMonitor spawns a resource monitored by an existing one: the monitor
// receives a down-notification when the new resource terminates.
func SpawnMonitor(reg *registry.Registry, rt lifecycle.Runtime, body any, by lifecycle.PID) (Handle, error) {
	return SpawnWithOptions(reg, rt, body, lifecycle.SpawnOptions{MonitorBy: by})
}

// SpawnWithOptions spawns a resource with full creation options.
func SpawnWithOptions(reg *registry.Registry, rt lifecycle.Runtime, body any, opts lifecycle.SpawnOptions) (Handle, error) {
	return Create(reg, rt,
		func() (lifecycle.PID, error) { return rt.Spawn(body, opts) },
		func(id lifecycle.PID) { rt.Signal(id, lifecycle.ReasonKill) },
	)
}
