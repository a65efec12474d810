package host

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the lifecycle state of a Token.
type State uint8

const (
	Pending State = iota
	Resolved
	Rejected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Settlement is the terminal outcome of a Token. Reason holds the original
// rejection payload, which need not be an error.
type Settlement struct {
	Value  any
	Reason any
	State  State
}

// Scheduler queues callbacks on a host runtime's event loop.
// *eventloop.Loop satisfies it.
type Scheduler interface {
	Microtask(fn func()) error
}

// Token is a pending result produced by a host runtime. It transitions from
// Pending to Resolved or Rejected exactly once. Settlement callbacks always
// run on the scheduler's microtask queue, never inline, in registration
// order.
type Token struct {
	sched     Scheduler
	callbacks []func(Settlement)
	result    Settlement
	name      string
	id        uuid.UUID
	mu        sync.Mutex
}

// NewToken creates a pending token whose callbacks are dispatched on sched.
func NewToken(sched Scheduler, name string) *Token {
	return &Token{
		sched: sched,
		name:  name,
		id:    uuid.New(),
	}
}

// ID identifies the token in logs.
func (t *Token) ID() uuid.UUID { return t.id }

// Name is the callable that produced the token.
func (t *Token) Name() string { return t.name }

// State returns the current state.
func (t *Token) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result.State
}

// Result returns the settlement and whether the token is terminal.
func (t *Token) Result() (Settlement, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result, t.result.State != Pending
}

// Resolve settles the token with v. It returns false if the token was
// already settled.
func (t *Token) Resolve(v any) bool {
	return t.settle(Settlement{State: Resolved, Value: v})
}

// Reject settles the token with the rejection payload reason. It returns
// false if the token was already settled.
func (t *Token) Reject(reason any) bool {
	return t.settle(Settlement{State: Rejected, Reason: reason})
}

// OnSettle registers fn to run once the token settles. Registering on a
// settled token still dispatches through the scheduler.
func (t *Token) OnSettle(fn func(Settlement)) {
	t.mu.Lock()
	if t.result.State == Pending {
		t.callbacks = append(t.callbacks, fn)
		t.mu.Unlock()
		return
	}
	result := t.result
	t.mu.Unlock()

	t.dispatch(fn, result)
}

func (t *Token) settle(s Settlement) bool {
	t.mu.Lock()
	if t.result.State != Pending {
		t.mu.Unlock()
		Logger().Debug("ignoring second settlement",
			zap.String("token", t.id.String()),
			zap.String("callable", t.name),
			zap.Stringer("state", s.State))
		return false
	}
	t.result = s
	callbacks := t.callbacks
	t.callbacks = nil
	t.mu.Unlock()

	for _, fn := range callbacks {
		t.dispatch(fn, s)
	}
	return true
}

// dispatch queues fn on the scheduler. Once the scheduler is gone nothing
// else can run on it, so the callback is delivered directly.
func (t *Token) dispatch(fn func(Settlement), s Settlement) {
	if err := t.sched.Microtask(func() { fn(s) }); err != nil {
		Logger().Debug("scheduler unavailable, delivering settlement directly",
			zap.String("token", t.id.String()),
			zap.Error(err))
		fn(s)
	}
}
