// Package bridge lets native goroutines call into a host runtime and wait
// for the host's asynchronous result.
//
// Every call follows the same path: Invoke returns a pending token, a
// buffered one-shot channel is registered as its settlement callback, and
// the calling goroutine blocks on that channel. Resumption is driven only
// by the host's own scheduler; nothing polls.
//
//	b := bridge.New(rt)
//	inc, err := b.Resolve(ctx, obj, "increment", sig)
//	n, err := bridge.Await[int32](ctx, b, inc, 99) // 100
//
// Independent calls are joined with JoinAll or Join2, which start every
// call before waiting on any of them:
//
//	info, license, err := bridge.Join2[ClusterInfo, LicenseInfo](ctx, b,
//	    bridge.NewCall(fetchInfo), bridge.NewCall(fetchLicense))
//
// # Errors
//
// A synchronous throw is an invocation error, an asynchronous rejection a
// rejection error holding the original payload (see errors.Payload), and a
// failed conversion a conversion error. Joined batches wrap the first
// failure by position in an aggregate error (see errors.Index).
//
// # Cancellation
//
// Host calls cannot be retracted. When ctx ends the waiting goroutine
// returns a canceled error and the host's eventual result is discarded.
// There are no bridge-level timeouts; use context.WithTimeout.
package bridge
