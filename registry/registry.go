package registry

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/wippyai/lifecycle/errors"
)

// Token identifies one armed release action.
// Tokens are issued from a monotonic counter and never reused.
// Token 0 is reserved and always invalid.
type Token uint64

// numShards must be a power of two.
const numShards = 32

// Options configures a Registry.
type Options struct {
	// MaxEntries caps the number of simultaneously armed actions.
	// Zero means unlimited. Arm returns a KindExhausted error at the cap.
	MaxEntries int

	// OnRelease, if set, is called after a release action has run, from the
	// same goroutine that fired it. Intended for tests and metrics.
	OnRelease func(Token)
}

// Registry is the process-wide finalization table. It is safe for
// concurrent use; all mutations are per-token, and release actions run
// outside any lock.
type Registry struct {
	shards [numShards]shard
	opts   Options
	next   atomic.Uint64
	count  atomic.Int64
	closed atomic.Bool
}

type shard struct {
	mu      sync.Mutex
	actions map[Token]func()
}

// New creates an empty registry with default options.
func New() *Registry {
	return NewWithOptions(Options{})
}

// NewWithOptions creates an empty registry.
func NewWithOptions(opts Options) *Registry {
	r := &Registry{opts: opts}
	for i := range r.shards {
		r.shards[i].actions = make(map[Token]func())
	}
	return r
}

var (
	defaultRegistry *Registry
	defaultOnce     sync.Once
)

// Default returns the shared process-wide registry, constructing it on
// first use. Components that want isolated lifetimes (tests, embedded
// runtimes) should construct their own with New and pass it explicitly.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = New()
	})
	return defaultRegistry
}

// Arm records action under a fresh token. It has no side effect beyond
// bookkeeping; the action runs later via ReleaseNow or NotifyUnreachable.
func (r *Registry) Arm(action func()) (Token, error) {
	if action == nil {
		return 0, errors.InvalidInput(errors.PhaseRegistry, "nil release action")
	}
	if r.closed.Load() {
		return 0, errors.Closed(errors.PhaseRegistry, "registry closed")
	}

	if max := r.opts.MaxEntries; max > 0 {
		if int(r.count.Add(1)) > max {
			r.count.Add(-1)
			return 0, errors.Exhausted(max)
		}
	} else {
		r.count.Add(1)
	}

	tok := Token(r.next.Add(1))
	s := r.shard(tok)
	s.mu.Lock()
	s.actions[tok] = action
	s.mu.Unlock()

	return tok, nil
}

// NotifyUnreachable is invoked by the lifecycle notifier when the handle
// owning tok has become unreachable. If the entry is still armed it fires
// exactly once; if it was already taken (fired or released early) this is
// a silent no-op.
func (r *Registry) NotifyUnreachable(tok Token) {
	if action, ok := r.take(tok); ok {
		r.invoke(tok, action)
	}
}

// ReleaseNow removes and runs the action for tok immediately if it is still
// armed, and reports whether it fired. A later automatic notification for
// the same token becomes a no-op.
func (r *Registry) ReleaseNow(tok Token) bool {
	action, ok := r.take(tok)
	if !ok {
		return false
	}
	r.invoke(tok, action)
	return true
}

// Len returns the number of currently armed actions.
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// Close stops accepting registrations and fires every remaining armed
// action. Callers that require a drained shutdown should assert Len() == 0
// before closing.
func (r *Registry) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		remaining := s.actions
		s.actions = make(map[Token]func())
		s.mu.Unlock()

		for tok, action := range remaining {
			r.count.Add(-1)
			r.invoke(tok, action)
		}
	}
	return nil
}

func (r *Registry) shard(tok Token) *shard {
	return &r.shards[uint64(tok)&(numShards-1)]
}

// take atomically removes the entry for tok. At most one caller ever
// succeeds per token.
func (r *Registry) take(tok Token) (func(), bool) {
	s := r.shard(tok)
	s.mu.Lock()
	action, ok := s.actions[tok]
	if ok {
		delete(s.actions, tok)
	}
	s.mu.Unlock()

	if ok {
		r.count.Add(-1)
	}
	return action, ok
}

// invoke runs a release action outside any lock. Panics are reported to the
// diagnostic logger and swallowed: on the automatic path there is no caller
// to propagate to.
func (r *Registry) invoke(tok Token, action func()) {
	defer func() {
		if p := recover(); p != nil {
			Logger().Error("release action panicked",
				zap.Uint64("token", uint64(tok)),
				zap.Any("panic", p))
		}
		if r.opts.OnRelease != nil {
			r.opts.OnRelease(tok)
		}
	}()
	action()
}
