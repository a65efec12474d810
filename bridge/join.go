package bridge

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/eventloop"
	"github.com/wippyai/hostbridge/host"
)

// Call is one member of a joined batch.
type Call struct {
	Args   []any
	Handle host.Handle
}

// NewCall builds a Call.
func NewCall(h host.Handle, args ...any) Call {
	return Call{Handle: h, Args: args}
}

// JoinAll issues every call before awaiting any of them, then waits for all
// results in position order. It succeeds only if every call resolves. The
// first failure by position is reported as an aggregate error recording
// that position; the other calls keep running and their results are
// discarded.
func (b *Bridge) JoinAll(ctx context.Context, calls []Call) ([]any, error) {
	if eventloop.InLoop(ctx) {
		return nil, errOnLoop()
	}

	pending := make([]*Pending, len(calls))
	for i, c := range calls {
		p, err := b.Issue(ctx, c.Handle, c.Args...)
		if err != nil {
			Logger().Debug("join member failed to start",
				zap.Int("index", i), zap.String("callable", c.Handle.Name), zap.Error(err))
			return nil, errors.Aggregate(i, len(calls), err)
		}
		pending[i] = p
	}

	results := make([]any, len(calls))
	for i, p := range pending {
		v, err := p.Wait(ctx)
		if err != nil {
			Logger().Debug("join member failed",
				zap.Int("index", i), zap.String("callable", calls[i].Handle.Name), zap.Error(err))
			return nil, errors.Aggregate(i, len(calls), err)
		}
		results[i] = v
	}
	return results, nil
}

// Join2 joins two calls and converts their results to A and B.
func Join2[A, B any](ctx context.Context, b *Bridge, first, second Call) (A, B, error) {
	var za A
	var zb B

	results, err := b.JoinAll(ctx, []Call{first, second})
	if err != nil {
		return za, zb, err
	}

	a, err := host.ConvertTo[A](results[0])
	if err != nil {
		return za, zb, errors.Aggregate(0, 2, err)
	}
	bv, err := host.ConvertTo[B](results[1])
	if err != nil {
		return za, zb, errors.Aggregate(1, 2, err)
	}
	return a, bv, nil
}
