// Package wasmproc exposes WebAssembly module instances as resources under
// the lifecycle.Runtime contract.
//
// A "process" here is one instantiated module. Spawning a Program with an
// Entry runs that exported function on its own goroutine; the instance
// terminates when the entry returns or when it is signaled. A Program
// without an Entry stays resident until signaled, which suits modules
// driven through host calls.
//
// Instances have no mailboxes, links, or signal trapping: Send reports
// false, Link returns an unsupported error, and every non-normal signal
// closes the instance. Name registration is supported.
package wasmproc
