// Package binding connects the document store and the telemetry receiver
// to a script runtime, and drives host callbacks from Go.
//
// Host direction: NewElastic and NewReceiver create host objects whose
// methods return tokens settled when the native call finishes:
//
//	elastic, err := binding.NewElastic(ctx, rt, store)
//	rt.Set(ctx, rt.Global(), "elastic", elastic.Handle())
//
// Native direction: Call0, CallAsync, CallAsyncOnObject and
// FetchClusterData call into host code through a bridge.Bridge and wait
// for the settled results.
package binding
