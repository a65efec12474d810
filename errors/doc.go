// Package errors provides structured error types for hostbridge.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: field path, Go/WIT type names, the
// offending value and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseConvert, errors.KindConversion).
//		Path("cluster_info", "version").
//		GoType("int32").
//		Value(v).
//		Detail("value out of range").
//		Build()
//
// Or use convenience constructors for the bridge taxonomy:
//
//	errors.NotFound(errors.PhaseResolve, "callable", "increment")
//	errors.Invocation("increment", cause)
//	errors.Rejection("increment", payload)
//	errors.Aggregate(1, 2, cause)
//
// Kind sentinels (ErrNotFound, ErrRejection, ...) match on kind alone:
//
//	if errors.Is(err, errors.ErrRejection) {
//		payload, _ := errors.Payload(err)
//	}
package errors
