// Package hostbridge lets Go code call into a host runtime whose callables
// return promise-like results settled on the host's own event loop, and lets
// host code call back into Go services such as a search-engine document
// store.
//
// # Architecture Overview
//
//	hostbridge/          Root package: SetLogger for every package
//	├── errors/          Structured errors (phase + kind) and sentinels
//	├── resource/        Arena + index handle table with borrow counts
//	├── eventloop/       Single-goroutine loop with tasks, microtasks and timers
//	├── host/            Runtime interface, handles, signatures, tokens, value conversion
//	├── script/          Go-native host runtime: objects, functions, promises
//	├── wasmhost/        wazero host runtime: module exports as callables
//	├── bridge/          Await a foreign call from a goroutine, join calls
//	├── docstore/        Document store interface and error classification
//	│   ├── memory/      In-process store
//	│   └── opensearch/  OpenSearch store
//	├── telemetry/       Telemetry events, cluster records, receiver
//	├── binding/         Store and receiver exposed to host code, native call helpers
//	└── config/          Environment configuration and logger construction
//
// # Quick Start
//
// Resolve a host callable and await it:
//
//	rt := script.New()
//	defer rt.Close()
//
//	b := bridge.New(rt)
//	h, err := b.Resolve(ctx, receiver, "increment", host.MustSignature("func(n: s32) -> s32"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	n, err := bridge.Await[int32](ctx, b, h, 99) // 100
//
// Issue several calls before waiting on any of them:
//
//	info, license, err := bridge.Join2[telemetry.ClusterInfo, telemetry.License](ctx, b,
//	    bridge.NewCall(fetchClusterInfo),
//	    bridge.NewCall(fetchLicenseInfo),
//	)
//
// # Threading Model
//
// Each runtime owns one event loop goroutine. Every host entry point is
// funnelled onto it, so runtimes and bridges are safe for concurrent use.
// Host functions receive a context that marks the loop, which lets them
// call back into their runtime without deadlocking. Waiting goroutines park
// on a per-call channel and never hold the loop.
//
// # Errors
//
// Failures are *errors.Error values. Match kinds with the sentinels:
//
//	if errors.Is(err, errors.ErrRejection) {
//	    payload, _ := errors.Payload(err)
//	}
package hostbridge
