package bridge

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/eventloop"
	"github.com/wippyai/hostbridge/host"
)

// Bridge drives native goroutines through foreign calls on a host runtime.
// It holds no per-call state; every call owns its token and channel.
type Bridge struct {
	rt host.Runtime
}

// New creates a bridge over rt.
func New(rt host.Runtime) *Bridge {
	return &Bridge{rt: rt}
}

// Runtime returns the underlying host runtime.
func (b *Bridge) Runtime() host.Runtime {
	return b.rt
}

// Resolve looks up a named callable on container.
func (b *Bridge) Resolve(ctx context.Context, container host.Handle, name string, expect *host.Signature) (host.Handle, error) {
	return b.rt.Resolve(ctx, container, name, expect)
}

// Bind binds a callable passed by reference.
func (b *Bridge) Bind(ctx context.Context, callable host.Handle, expect *host.Signature) (host.Handle, error) {
	return b.rt.Bind(ctx, callable, expect)
}

// Pending is an issued foreign call whose result has not been observed yet.
type Pending struct {
	rt    host.Runtime
	tok   *host.Token
	ch    chan host.Settlement
	name  string
	taken bool
}

// Issue invokes h and registers a one-shot settlement channel without
// waiting. A synchronous failure is returned directly.
func (b *Bridge) Issue(ctx context.Context, h host.Handle, args ...any) (*Pending, error) {
	tok, err := b.rt.Invoke(ctx, h, args...)
	if err != nil {
		return nil, err
	}

	// Buffered so an abandoned waiter never blocks the host's loop.
	ch := make(chan host.Settlement, 1)
	tok.OnSettle(func(s host.Settlement) {
		ch <- s
	})

	Logger().Debug("issued foreign call",
		zap.String("callable", h.Name),
		zap.String("token", tok.ID().String()))

	return &Pending{rt: b.rt, tok: tok, ch: ch, name: h.Name}, nil
}

// Token returns the underlying pending result token.
func (p *Pending) Token() *host.Token {
	return p.tok
}

// errOnLoop is returned when a caller tries to block on the host loop from
// code the loop itself is running. The settlement could only be delivered by
// that same loop.
func errOnLoop() error {
	return errors.InvalidInput(errors.PhaseSettle, "cannot await on the host loop; return a token instead")
}

// Wait suspends until the token settles or ctx ends. It may be called once.
// Calling it with a context handed out by the host loop fails immediately.
func (p *Pending) Wait(ctx context.Context) (any, error) {
	if p.taken {
		return nil, errors.InvalidInput(errors.PhaseSettle, "result of "+p.name+" already consumed")
	}

	// A settled result wins over a cancellation that raced with it.
	select {
	case s := <-p.ch:
		p.taken = true
		return p.outcome(s)
	default:
	}

	if eventloop.InLoop(ctx) {
		return nil, errOnLoop()
	}

	select {
	case s := <-p.ch:
		p.taken = true
		return p.outcome(s)
	case <-ctx.Done():
		Logger().Debug("abandoned foreign call",
			zap.String("callable", p.name),
			zap.String("token", p.tok.ID().String()),
			zap.Error(ctx.Err()))
		return nil, errors.Canceled(errors.PhaseSettle, ctx.Err())
	case <-p.rt.Done():
		// A token settled during shutdown is delivered directly.
		select {
		case s := <-p.ch:
			p.taken = true
			return p.outcome(s)
		default:
			return nil, errors.Closed(errors.PhaseSettle, "host runtime")
		}
	}
}

func (p *Pending) outcome(s host.Settlement) (any, error) {
	if s.State == host.Rejected {
		return nil, errors.Rejection(p.name, s.Reason)
	}
	return s.Value, nil
}

// AwaitForeign invokes h and suspends until the host settles the result.
// A rejection is returned as a rejection error carrying the original
// payload; a synchronous throw is an invocation error.
func (b *Bridge) AwaitForeign(ctx context.Context, h host.Handle, args ...any) (any, error) {
	if eventloop.InLoop(ctx) {
		return nil, errOnLoop()
	}
	p, err := b.Issue(ctx, h, args...)
	if err != nil {
		return nil, err
	}
	return p.Wait(ctx)
}

// Await is AwaitForeign with a lossless conversion of the resolved value
// to T. A failed conversion is a conversion error, never a rejection.
func Await[T any](ctx context.Context, b *Bridge, h host.Handle, args ...any) (T, error) {
	var zero T
	v, err := b.AwaitForeign(ctx, h, args...)
	if err != nil {
		return zero, err
	}
	return host.ConvertTo[T](v)
}
