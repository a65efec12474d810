// Package wasmhost implements host.Runtime on top of wazero.
//
// A module instance is the container; its exported functions are the
// callables. Core modules carry only core value types, so WIT declarations
// may be supplied at instantiation to describe exports more precisely:
//
//	rt := wasmhost.New(ctx, nil)
//	defer rt.Close()
//
//	inst, err := rt.Instantiate(ctx, "counter", wasm, `
//	    increment: func(n: s32) -> s32;
//	`)
//	inc, err := rt.Resolve(ctx, inst, "increment", nil)
//
// Declared types must lower onto the export's core types (bool, s8..u32 and
// char to i32, s64 and u64 to i64, f32, f64). Anything else is a
// type mismatch at resolve time.
//
// Exports run synchronously on the runtime's event loop. Their token is
// already settled when Invoke returns and its callbacks run on the next
// microtask. A trap is an invocation error.
package wasmhost
