package binding

import (
	"context"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/hostbridge/host"
	"github.com/wippyai/hostbridge/script"
	"github.com/wippyai/hostbridge/telemetry"
)

var findEventsSig = host.Func(wit.String{}).Returns(documents)

// Receiver exposes a telemetry receiver to a script runtime.
type Receiver struct {
	rt   *script.Runtime
	recv *telemetry.Receiver
	obj  host.Handle
}

// NewReceiver creates the "telemetryReceiver" host object with an async
// findTelemetryEvents(index) method resolving with a list of event records.
func NewReceiver(ctx context.Context, rt *script.Runtime, recv *telemetry.Receiver) (*Receiver, error) {
	obj, err := rt.NewObject(ctx, "telemetryReceiver")
	if err != nil {
		return nil, err
	}
	r := &Receiver{rt: rt, recv: recv, obj: obj}
	if err := define(ctx, rt, obj, []method{
		{"findTelemetryEvents", findEventsSig, r.findTelemetryEvents},
	}); err != nil {
		return nil, err
	}
	return r, nil
}

// Handle returns the host object handle.
func (r *Receiver) Handle() host.Handle {
	return r.obj
}

func (r *Receiver) findTelemetryEvents(c *script.Call) (any, error) {
	index, err := c.String(0)
	if err != nil {
		return nil, err
	}
	return r.rt.Go(c.Context, c.Name, func(ctx context.Context) (any, error) {
		events, err := r.recv.FindTelemetryEvents(ctx, index)
		if err != nil {
			return nil, err
		}
		return host.Normalize(events), nil
	}), nil
}
