// Package eventloop provides the single cooperative event loop a host
// runtime executes on.
//
// A Loop owns exactly one goroutine. Everything that touches host state
// (invoking a callable, settling a token, firing a timer) is funnelled onto
// it, so host code never runs concurrently with itself:
//
//	loop := eventloop.New()
//	defer loop.Close()
//
//	loop.Post(func() { ... })              // task
//	loop.Microtask(func() { ... })         // runs before the next task
//	loop.AfterFunc(100*time.Millisecond, fn)
//
//	err := loop.Do(ctx, func(ctx context.Context) error {
//	    // runs on the loop; the caller waits
//	    return nil
//	})
//
// # Ordering
//
// After every task the microtask queue is drained completely, including
// microtasks queued by microtasks. Tasks run in FIFO order.
//
// # Re-entrancy
//
// The context handed to a Do callback is marked as running on the loop. A
// nested Do with that context runs inline instead of queueing behind the
// task that is waiting for it.
//
// # Shutdown
//
// Close stops accepting work, cancels pending timers and drops queued tasks.
// Do calls waiting on dropped tasks return a closed error. Close must not be
// called from the loop goroutine if the caller also waits on Done.
package eventloop
