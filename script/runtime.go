package script

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/hostbridge/errors"
	"github.com/wippyai/hostbridge/eventloop"
	"github.com/wippyai/hostbridge/host"
	"github.com/wippyai/hostbridge/resource"
)

// Runtime is a host runtime whose values are Go objects and functions. All
// host state lives on one event loop; handles index into the runtime's
// resource table.
type Runtime struct {
	loop      *eventloop.Loop
	table     *resource.UnifiedTable
	global    *Object
	closeOnce sync.Once
}

var _ host.Runtime = (*Runtime)(nil)

// Option configures a Runtime.
type Option func(*options)

type options struct {
	name string
}

// WithName labels the runtime's event loop in logs.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// New creates a runtime with an empty global object.
func New(opts ...Option) *Runtime {
	o := options{name: "script"}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Runtime{
		loop:  eventloop.New(eventloop.WithName(o.name)),
		table: resource.NewTable(),
	}
	r.table.Subscribe(arenaTrace{runtime: o.name})
	r.global = &Object{name: "globalThis", props: make(map[string]any)}
	r.global.ref = r.table.Insert(typeObject, r.global)
	return r
}

// arenaTrace logs value lifecycle in the runtime's table.
type arenaTrace struct {
	runtime string
}

func (a arenaTrace) OnResourceEvent(e resource.Event) {
	if ce := Logger().Check(zap.DebugLevel, "host value "+e.Type.String()); ce != nil {
		ce.Write(
			zap.String("runtime", a.runtime),
			zap.Uint64("handle", uint64(e.Handle)),
			zap.Uint32("type", e.TypeID),
		)
	}
}

// Loop returns the runtime's event loop.
func (r *Runtime) Loop() *eventloop.Loop {
	return r.loop
}

// Global returns the handle of the global object.
func (r *Runtime) Global() host.Handle {
	return host.Handle{Ref: r.global.ref, Name: r.global.name}
}

// Done is closed once the runtime's loop has stopped.
func (r *Runtime) Done() <-chan struct{} {
	return r.loop.Done()
}

// Close stops the loop and releases every value. Handles become invalid.
func (r *Runtime) Close() error {
	var err error
	r.closeOnce.Do(func() {
		err = r.loop.Close()
		if cerr := r.table.Close(); err == nil {
			err = cerr
		}
	})
	return err
}

// do runs fn on the loop, mapping loop shutdown to a closed error.
func (r *Runtime) do(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.table.Closed() {
		return errors.Closed(errors.PhaseRuntime, "script runtime")
	}
	return r.loop.Do(ctx, fn)
}

func (r *Runtime) object(h host.Handle) (*Object, error) {
	if r.table.Closed() {
		return nil, errors.Closed(errors.PhaseRuntime, "script runtime")
	}
	obj, ok := resource.GetAs[*Object](r.table, h.Ref, typeObject)
	if !ok {
		return nil, errors.NotFound(errors.PhaseResolve, "object", h.String())
	}
	return obj, nil
}

func (r *Runtime) function(h host.Handle) (*Function, error) {
	if r.table.Closed() {
		return nil, errors.Closed(errors.PhaseRuntime, "script runtime")
	}
	fn, ok := resource.GetAs[*Function](r.table, h.Ref, typeFunction)
	if !ok {
		return nil, errors.NotFound(errors.PhaseResolve, "callable", h.Name)
	}
	return fn, nil
}

// NewObject creates an empty object.
func (r *Runtime) NewObject(ctx context.Context, name string) (host.Handle, error) {
	var h host.Handle
	err := r.do(ctx, func(context.Context) error {
		obj := &Object{name: name, props: make(map[string]any)}
		obj.ref = r.table.Insert(typeObject, obj)
		if obj.ref == 0 {
			return errors.Closed(errors.PhaseRuntime, "script runtime")
		}
		h = host.Handle{Ref: obj.ref, Name: name}
		return nil
	})
	return h, err
}

// NewFunction creates a free-standing function value. Pass the returned
// handle to Bind to call it by reference.
func (r *Runtime) NewFunction(ctx context.Context, name string, sig *host.Signature, fn Func) (host.Handle, error) {
	var h host.Handle
	err := r.do(ctx, func(context.Context) error {
		f, err := r.newFunction(name, sig, fn)
		if err != nil {
			return err
		}
		h = host.Handle{Ref: f.ref, Name: name, Sig: sig}
		return nil
	})
	return h, err
}

func (r *Runtime) newFunction(name string, sig *host.Signature, fn Func) (*Function, error) {
	f := &Function{name: name, sig: sig, fn: fn}
	f.ref = r.table.Insert(typeFunction, f)
	if f.ref == 0 {
		return nil, errors.Closed(errors.PhaseRuntime, "script runtime")
	}
	return f, nil
}

// Define binds a new function to name on obj, replacing any previous value.
// Handles resolved against the previous value stop resolving.
func (r *Runtime) Define(ctx context.Context, obj host.Handle, name string, sig *host.Signature, fn Func) error {
	return r.do(ctx, func(context.Context) error {
		o, err := r.object(obj)
		if err != nil {
			return err
		}
		f, err := r.newFunction(name, sig, fn)
		if err != nil {
			return err
		}
		r.replace(o, name, f)
		return nil
	})
}

// Set stores a plain value on obj. A function handle stores the function
// itself; an object handle stores the object.
func (r *Runtime) Set(ctx context.Context, obj host.Handle, name string, value any) error {
	return r.do(ctx, func(context.Context) error {
		o, err := r.object(obj)
		if err != nil {
			return err
		}
		if h, ok := value.(host.Handle); ok {
			v, found := r.table.Get(h.Ref)
			if !found {
				return errors.NotFound(errors.PhaseResolve, "value", h.String())
			}
			r.replace(o, name, v)
			return nil
		}
		r.replace(o, name, host.Normalize(value))
		return nil
	})
}

// Get reads a property of obj. Nested objects and functions are returned
// as handles.
func (r *Runtime) Get(ctx context.Context, obj host.Handle, name string) (any, error) {
	var out any
	err := r.do(ctx, func(context.Context) error {
		o, err := r.object(obj)
		if err != nil {
			return err
		}
		v, ok := o.props[name]
		if !ok {
			return errors.NotFound(errors.PhaseResolve, "property", name)
		}
		switch v := v.(type) {
		case *Object:
			out = host.Handle{Ref: v.ref, Name: v.name}
		case *Function:
			out = host.Handle{Ref: v.ref, Name: v.name, Sig: v.sig}
		default:
			out = v
		}
		return nil
	})
	return out, err
}

// Delete removes name from obj.
func (r *Runtime) Delete(ctx context.Context, obj host.Handle, name string) error {
	return r.do(ctx, func(context.Context) error {
		o, err := r.object(obj)
		if err != nil {
			return err
		}
		r.replace(o, name, nil)
		return nil
	})
}

// replace sets or clears a property, releasing a function that was only
// reachable through it.
func (r *Runtime) replace(o *Object, name string, v any) {
	if prev, ok := o.props[name].(*Function); ok && prev.name == name && prev != v {
		if _, ok := r.table.Remove(prev.ref); !ok {
			Logger().Debug("function still in use, keeping it alive",
				zap.String("function", name))
		}
	}
	if v == nil {
		delete(o.props, name)
		return
	}
	o.props[name] = v
}

// Release drops a value from the arena. Handles to it stop resolving.
func (r *Runtime) Release(ctx context.Context, h host.Handle) error {
	return r.do(ctx, func(context.Context) error {
		if h.Ref == r.global.ref {
			return errors.InvalidInput(errors.PhaseRuntime, "cannot release the global object")
		}
		if _, ok := r.table.Get(h.Ref); !ok {
			return errors.NotFound(errors.PhaseResolve, "value", h.String())
		}
		if _, ok := r.table.Remove(h.Ref); !ok {
			return errors.InvalidInput(errors.PhaseRuntime, "value is in use: "+h.String())
		}
		return nil
	})
}

// Resolve implements host.Runtime.
func (r *Runtime) Resolve(ctx context.Context, container host.Handle, name string, expect *host.Signature) (host.Handle, error) {
	var h host.Handle
	err := r.do(ctx, func(context.Context) error {
		o, err := r.object(container)
		if err != nil {
			return err
		}
		v, ok := o.props[name]
		if !ok {
			return errors.NotFound(errors.PhaseResolve, "callable", name)
		}
		fn, ok := v.(*Function)
		if !ok {
			return errors.New(errors.PhaseResolve, errors.KindNotFound).
				Path(name).
				GoType(fmt.Sprintf("%T", v)).
				Detail("property %q is not callable", name).
				Build()
		}
		if err := host.Match(name, expect, fn.sig); err != nil {
			return err
		}
		h = host.Handle{
			Ref:       fn.ref,
			Container: o.ref,
			Name:      name,
			Sig:       fn.sig,
			Mode:      host.BindNamed,
		}
		return nil
	})
	return h, err
}

// Bind implements host.Runtime.
func (r *Runtime) Bind(ctx context.Context, callable host.Handle, expect *host.Signature) (host.Handle, error) {
	var h host.Handle
	err := r.do(ctx, func(context.Context) error {
		fn, err := r.function(callable)
		if err != nil {
			return err
		}
		if err := host.Match(fn.name, expect, fn.sig); err != nil {
			return err
		}
		h = host.Handle{Ref: fn.ref, Name: fn.name, Sig: fn.sig, Mode: host.BindDirect}
		return nil
	})
	return h, err
}

// Invoke implements host.Runtime.
func (r *Runtime) Invoke(ctx context.Context, h host.Handle, args ...any) (*host.Token, error) {
	if !h.Callable() {
		return nil, errors.NotFound(errors.PhaseInvoke, "callable", h.String())
	}
	args = host.NormalizeArgs(args)

	var tok *host.Token
	err := r.do(ctx, func(ctx context.Context) error {
		fn, this, err := r.revalidate(h)
		if err != nil {
			return err
		}
		if err := h.Sig.CheckArgs(h.Name, args); err != nil {
			return err
		}

		if !r.table.Borrow(fn.ref) {
			return errors.NotFound(errors.PhaseInvoke, "callable", h.Name)
		}
		defer r.table.ReturnBorrow(fn.ref)

		result, err := r.call(&Call{Context: ctx, Runtime: r, this: this, Name: h.Name, Args: args}, fn)
		if err != nil {
			return errors.Invocation(h.Name, err)
		}
		if t, ok := result.(*host.Token); ok {
			tok = t
			return nil
		}
		tok = host.NewToken(r.loop, h.Name)
		tok.Resolve(result)
		return nil
	})
	if err != nil {
		Logger().Debug("invoke failed", zap.String("callable", h.Name), zap.Error(err))
		return nil, err
	}
	return tok, nil
}

// revalidate checks that a callable handle still refers to a live function
// and, for named handles, that the container still binds it under that name.
func (r *Runtime) revalidate(h host.Handle) (*Function, *Object, error) {
	fn, err := r.function(h)
	if err != nil {
		return nil, nil, err
	}
	if h.Mode != host.BindNamed {
		return fn, nil, nil
	}
	o, err := r.object(host.Handle{Ref: h.Container})
	if err != nil {
		return nil, nil, err
	}
	if bound, _ := o.props[h.Name].(*Function); bound != fn {
		return nil, nil, errors.NotFound(errors.PhaseInvoke, "callable", h.Name)
	}
	return fn, o, nil
}

func (r *Runtime) call(c *Call, fn *Function) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn.fn(c)
}

// Promise creates a pending token settled by host code.
func (r *Runtime) Promise(name string) *host.Token {
	return host.NewToken(r.loop, name)
}

// Rejected returns a token already rejected with reason.
func (r *Runtime) Rejected(name string, reason any) *host.Token {
	t := host.NewToken(r.loop, name)
	t.Reject(reason)
	return t
}

// Delay returns a token that resolves with value after d, driven by the
// loop's timers.
func (r *Runtime) Delay(name string, d time.Duration, value any) *host.Token {
	t := host.NewToken(r.loop, name)
	if _, err := r.loop.AfterFunc(d, func() { t.Resolve(value) }); err != nil {
		t.Reject(err)
	}
	return t
}

// Go runs fn on its own goroutine and settles the returned token on the
// loop with its outcome. It is how host functions wait on native I/O
// without blocking the loop. An error from fn becomes the rejection payload.
func (r *Runtime) Go(ctx context.Context, name string, fn func(ctx context.Context) (any, error)) *host.Token {
	t := host.NewToken(r.loop, name)
	ctx = eventloop.Detach(context.WithoutCancel(ctx))

	go func() {
		v, err := r.safeGo(ctx, fn)
		settle := func() {
			if err != nil {
				t.Reject(err)
				return
			}
			t.Resolve(v)
		}
		if perr := r.loop.Post(settle); perr != nil {
			Logger().Debug("runtime closed before async work finished",
				zap.String("callable", name), zap.Error(perr))
		}
	}()
	return t
}

func (r *Runtime) safeGo(ctx context.Context, fn func(ctx context.Context) (any, error)) (v any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx)
}
