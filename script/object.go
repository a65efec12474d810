package script

import (
	"context"
	"fmt"

	"github.com/wippyai/hostbridge/host"
	"github.com/wippyai/hostbridge/resource"
)

const (
	typeObject uint32 = iota + 1
	typeFunction
)

// Func is a host function. Returning a *host.Token makes the call
// asynchronous; any other value resolves the call's token immediately. A
// returned error or a panic is a synchronous throw.
type Func func(c *Call) (any, error)

// Object is a host value with named properties. Properties holding a
// *Function are callable.
type Object struct {
	props map[string]any
	name  string
	ref   resource.Handle
}

// Name is the label the object was created with.
func (o *Object) Name() string { return o.name }

// Function is a callable host value.
type Function struct {
	fn   Func
	sig  *host.Signature
	name string
	ref  resource.Handle
}

// Name is the label the function was created with.
func (f *Function) Name() string { return f.name }

// Signature is the declared signature, or nil when undeclared.
func (f *Function) Signature() *host.Signature { return f.sig }

// Call carries the arguments and receiver of a host function invocation.
type Call struct {
	// Context is marked as running on the runtime's loop, so runtime
	// methods called with it run inline.
	Context context.Context
	Runtime *Runtime
	this    *Object
	Name    string
	Args    []any
}

// This returns the receiver handle. It is zero for direct calls.
func (c *Call) This() host.Handle {
	if c.this == nil {
		return host.Handle{}
	}
	return host.Handle{Ref: c.this.ref, Name: c.this.name}
}

// Prop reads a property of the receiver.
func (c *Call) Prop(name string) (any, bool) {
	if c.this == nil {
		return nil, false
	}
	v, ok := c.this.props[name]
	return v, ok
}

// Arg returns argument i, or nil when absent.
func (c *Call) Arg(i int) any {
	if i < 0 || i >= len(c.Args) {
		return nil
	}
	return c.Args[i]
}

// Int returns argument i as an int64.
func (c *Call) Int(i int) (int64, error) {
	return host.ConvertTo[int64](c.Arg(i))
}

// String returns argument i as a string.
func (c *Call) String(i int) (string, error) {
	s, ok := c.Arg(i).(string)
	if !ok {
		return "", fmt.Errorf("argument %d: expected string, got %T", i, c.Arg(i))
	}
	return s, nil
}
