// Package host defines the foreign-function interface between native Go code
// and a host runtime that owns callable values and settles their results on
// its own event loop.
//
// # Handles
//
// A Handle is an opaque index into the runtime's arena. Container handles
// (BindNone) refer to objects or instances; callable handles are obtained
// either by name from a container (Resolve, BindNamed) or from a callable
// value passed by reference (Bind, BindDirect):
//
//	sig := host.MustSignature("increment: func(n: s32) -> s32")
//	inc, err := rt.Resolve(ctx, obj, "increment", sig)
//
// Handles stay valid only while their owner is alive. Runtimes re-validate
// them on every Invoke, so a stale handle yields a not-found or closed error.
//
// # Signatures
//
// Signatures are expressed with WIT types from go.bytecodealliance.org/wit.
// Resolve compares the callable's declared signature with the expectation;
// Invoke checks argument values against it before entering the host.
//
// # Tokens
//
// Invoke returns a *Token. It settles exactly once, by Resolve or Reject,
// and dispatches settlement callbacks on the runtime's microtask queue:
//
//	tok.OnSettle(func(s host.Settlement) {
//	    // s.State is Resolved or Rejected
//	})
//
// # Values
//
// Arguments are normalized (Normalize) into bool, numbers, string, []any
// and map[string]any. Settled values are converted back with Convert or
// ConvertTo, which never lose precision: an out-of-range or non-integral
// number is a conversion error.
package host
