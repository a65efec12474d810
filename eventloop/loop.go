package eventloop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/hostbridge/errors"
)

type loopKey struct{}

// Loop is a single-goroutine task queue with a microtask queue and timers.
type Loop struct {
	wake   chan struct{}
	done   chan struct{}
	timers map[*time.Timer]struct{}
	name   string
	tasks  []func()
	micro  []func()
	mu     sync.Mutex
	closed bool
}

// Option configures a Loop.
type Option func(*Loop)

// WithName labels the loop in log output.
func WithName(name string) Option {
	return func(l *Loop) {
		l.name = name
	}
}

// New creates a loop and starts its goroutine.
func New(opts ...Option) *Loop {
	l := &Loop{
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		timers: make(map[*time.Timer]struct{}),
		name:   "host",
	}
	for _, opt := range opts {
		opt(l)
	}
	go l.run()
	return l
}

func (l *Loop) closedErr() error {
	return errors.Closed(errors.PhaseRuntime, l.name+" event loop")
}

// Post queues fn as a task.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return l.closedErr()
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
	l.signal()
	return nil
}

// Microtask queues fn to run after the current task, before any other task.
func (l *Loop) Microtask(fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return l.closedErr()
	}
	l.micro = append(l.micro, fn)
	l.mu.Unlock()
	l.signal()
	return nil
}

// AfterFunc queues fn as a task once d has elapsed. The returned stop
// function reports whether it prevented fn from being queued.
func (l *Loop) AfterFunc(d time.Duration, fn func()) (stop func() bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, l.closedErr()
	}

	var t *time.Timer
	t = time.AfterFunc(d, func() {
		l.mu.Lock()
		delete(l.timers, t)
		l.mu.Unlock()
		if err := l.Post(fn); err != nil {
			Logger().Debug("timer fired after close", zap.String("loop", l.name))
		}
	})
	l.timers[t] = struct{}{}

	return func() bool {
		l.mu.Lock()
		delete(l.timers, t)
		l.mu.Unlock()
		return t.Stop()
	}, nil
}

// OnLoop reports whether ctx was handed out by this loop.
func (l *Loop) OnLoop(ctx context.Context) bool {
	v, _ := ctx.Value(loopKey{}).(*Loop)
	return v == l
}

// InLoop reports whether ctx was handed out by any loop and is still bound
// to it. Blocking on a loop's own work from such a context never returns.
func InLoop(ctx context.Context) bool {
	v, _ := ctx.Value(loopKey{}).(*Loop)
	return v != nil
}

// Do runs fn on the loop and waits for it to return. A panic in fn is
// recovered and returned as an error. If ctx already belongs to this loop
// fn runs inline.
//
// If ctx ends first, Do returns a canceled error without waiting; fn still
// runs unless it had not started yet.
func (l *Loop) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if l.OnLoop(ctx) {
		return l.call(ctx, fn)
	}

	result := make(chan error, 1)
	err := l.Post(func() {
		if err := ctx.Err(); err != nil {
			result <- errors.Canceled(errors.PhaseInvoke, err)
			return
		}
		result <- l.call(context.WithValue(ctx, loopKey{}, l), fn)
	})
	if err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return errors.Canceled(errors.PhaseInvoke, ctx.Err())
	case <-l.done:
		// The task may have completed just before shutdown.
		select {
		case err := <-result:
			return err
		default:
			return l.closedErr()
		}
	}
}

func (l *Loop) call(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}

// Close stops the loop. Queued tasks are dropped and timers stopped.
func (l *Loop) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	for t := range l.timers {
		t.Stop()
	}
	l.timers = nil
	l.mu.Unlock()
	l.signal()
	return nil
}

// Done is closed once the loop goroutine has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Closed reports whether Close has been called.
func (l *Loop) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		for len(l.tasks) == 0 && len(l.micro) == 0 && !l.closed {
			l.mu.Unlock()
			<-l.wake
			l.mu.Lock()
		}
		if l.closed {
			dropped := len(l.tasks) + len(l.micro)
			l.tasks = nil
			l.micro = nil
			l.mu.Unlock()
			if dropped > 0 {
				Logger().Debug("event loop closed with queued work",
					zap.String("loop", l.name), zap.Int("dropped", dropped))
			}
			return
		}

		var task func()
		if len(l.micro) == 0 {
			task = l.tasks[0]
			l.tasks[0] = nil
			l.tasks = l.tasks[1:]
		}
		l.mu.Unlock()

		if task != nil {
			l.safe(task)
		}
		l.drainMicrotasks()
	}
}

func (l *Loop) drainMicrotasks() {
	for {
		l.mu.Lock()
		if len(l.micro) == 0 || l.closed {
			l.mu.Unlock()
			return
		}
		fn := l.micro[0]
		l.micro[0] = nil
		l.micro = l.micro[1:]
		l.mu.Unlock()

		l.safe(fn)
	}
}

func (l *Loop) safe(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Error("event loop task panicked",
				zap.String("loop", l.name), zap.Any("panic", r))
		}
	}()
	fn()
}

// Detach returns a context that keeps ctx's values but is no longer marked
// as running on any loop. Use it before handing a loop context to another
// goroutine.
func Detach(ctx context.Context) context.Context {
	return context.WithValue(ctx, loopKey{}, (*Loop)(nil))
}
