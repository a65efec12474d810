// Package script is a host runtime whose values are Go objects and
// functions scheduled on a single event loop.
//
// It plays the part of an embedded scripting engine: host code lives in
// Func values, may return a promise (*host.Token) to settle later, may call
// back into native code, and may re-enter the runtime through the context
// it receives.
//
//	rt := script.New()
//	defer rt.Close()
//
//	obj, _ := rt.NewObject(ctx, "receiver")
//	rt.Define(ctx, obj, "increment", host.MustSignature("func(n: s32) -> s32"),
//	    func(c *script.Call) (any, error) {
//	        n, err := c.Int(0)
//	        if err != nil {
//	            return nil, err
//	        }
//	        return c.Runtime.Delay("increment", 10*time.Millisecond, n+1), nil
//	    })
//
// Native I/O is started with Go, which runs on its own goroutine and settles
// the returned token back on the loop.
//
// A Func must never block on a foreign result. Call.Context is bound to the
// loop, and the only thing that can settle the awaited token is that same
// loop, so bridge.Await and friends reject it with an invalid input error.
// Chain with Token.OnSettle and return a token instead:
//
//	p, err := b.Issue(c.Context, callback, n)
//	if err != nil {
//	    return nil, err
//	}
//	out := c.Runtime.Promise(c.Name)
//	p.Token().OnSettle(func(s host.Settlement) { out.Resolve(s.Value) })
//	return out, nil
package script
