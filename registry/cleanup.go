package registry

import (
	"runtime"
)

// Lifetime anchors a token to the reachability of a heap object. Every copy
// of a handle shares one Lifetime pointer; when the last copy becomes
// unreachable the Go runtime invokes NotifyUnreachable for the token,
// asynchronously and at most once.
//
// A Lifetime must not be used for more than one token.
type Lifetime struct {
	token   Token
	cleanup runtime.Cleanup
}

type cleanupArgs struct {
	reg *Registry
	tok Token
}

// Track creates the lifetime anchor for tok. The returned pointer must be
// stored in every handle copy; nothing else may retain it, or automatic
// release will never fire.
func (r *Registry) Track(tok Token) *Lifetime {
	lt := &Lifetime{token: tok}
	// The cleanup argument must not reference lt, or it would never become
	// unreachable; reg and tok are captured by value instead.
	lt.cleanup = runtime.AddCleanup(lt, func(a cleanupArgs) {
		a.reg.NotifyUnreachable(a.tok)
	}, cleanupArgs{reg: r, tok: tok})
	return lt
}

// Token returns the token this lifetime is bound to.
func (l *Lifetime) Token() Token {
	return l.token
}

// Cancel stops the automatic unreachability notification. Used after an
// explicit release has already taken the table entry; cancelling after the
// cleanup has run is a no-op.
func (l *Lifetime) Cancel() {
	l.cleanup.Stop()
}
