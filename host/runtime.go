package host

import "context"

// Runtime is the capability interface a host embedding implements. All
// methods funnel onto the runtime's single event loop, so they are safe to
// call from any goroutine and, with the context a host function receives,
// from inside the runtime itself.
type Runtime interface {
	// Resolve looks up the callable bound to name on container.
	//
	// It fails with a not-found error when the container is invalid or the
	// property is absent or not callable, and with a type-mismatch error when
	// expect is non-nil and differs from the callable's declared signature.
	Resolve(ctx context.Context, container Handle, name string, expect *Signature) (Handle, error)

	// Bind turns a handle to a callable value into a direct-reference
	// callable handle.
	Bind(ctx context.Context, callable Handle, expect *Signature) (Handle, error)

	// Invoke calls h and returns immediately with the token representing the
	// eventual result. A synchronous failure inside the host is an
	// invocation error and no token is produced.
	Invoke(ctx context.Context, h Handle, args ...any) (*Token, error)

	// Done is closed when the runtime has been torn down. Tokens that were
	// still pending at that point never settle.
	Done() <-chan struct{}

	// Close tears the runtime down and invalidates every handle it issued.
	Close() error
}
