package errors

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseResolve Phase = "resolve" // callable lookup and binding
	PhaseInvoke  Phase = "invoke"  // synchronous part of a foreign call
	PhaseSettle  Phase = "settle"  // asynchronous settlement of a token
	PhaseConvert Phase = "convert" // host value to Go value
	PhaseJoin    Phase = "join"    // aggregated foreign calls
	PhaseStore   Phase = "store"   // document store requests
	PhaseConfig  Phase = "config"  // configuration loading
	PhaseRuntime Phase = "runtime" // host runtime lifecycle
	PhaseParse   Phase = "parse"   // signature parsing
)

// Kind categorizes the error
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindTypeMismatch Kind = "type_mismatch"
	KindInvocation   Kind = "invocation"
	KindConversion   Kind = "conversion"
	KindRejection    Kind = "rejection"
	KindAggregate    Kind = "aggregate"
	KindIO           Kind = "io"
	KindCanceled     Kind = "canceled"
	KindClosed       Kind = "closed"
	KindOverflow     Kind = "overflow"
	KindInvalidInput Kind = "invalid_input"
	KindInvalidData  Kind = "invalid_data"
)

// Kind sentinels. They match any *Error of the same kind regardless of phase:
//
//	if errors.Is(err, errors.ErrRejection) { ... }
var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrTypeMismatch = &Error{Kind: KindTypeMismatch}
	ErrInvocation   = &Error{Kind: KindInvocation}
	ErrConversion   = &Error{Kind: KindConversion}
	ErrRejection    = &Error{Kind: KindRejection}
	ErrAggregate    = &Error{Kind: KindAggregate}
	ErrIO           = &Error{Kind: KindIO}
	ErrCanceled     = &Error{Kind: KindCanceled}
	ErrClosed       = &Error{Kind: KindClosed}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	GoType  string
	WitType string
	Detail  string
	Path    []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.WitType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.WitType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", WIT type ")
			b.WriteString(e.WitType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("WIT type ")
			b.WriteString(e.WitType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.WitType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target without a phase
// matches on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// WitType sets the WIT type name
func (b *Builder) WitType(t string) *Builder {
	b.err.WitType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// KindOf returns the kind of the outermost *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Find returns the first *Error of the given kind in err's chain.
func Find(err error, kind Kind) (*Error, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == kind {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return nil, false
}

// Payload returns the original host value carried by a rejection anywhere
// in err's chain.
func Payload(err error) (any, bool) {
	e, ok := Find(err, KindRejection)
	if !ok {
		return nil, false
	}
	return e.Value, true
}

// Index returns the batch position recorded by an aggregate error.
func Index(err error) (int, bool) {
	e, ok := Find(err, KindAggregate)
	if !ok || len(e.Path) == 0 {
		return 0, false
	}
	n, convErr := strconv.Atoi(e.Path[0])
	if convErr != nil {
		return 0, false
	}
	return n, true
}

// Convenience constructors for the bridge taxonomy

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, witType string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindTypeMismatch,
		Path:    path,
		GoType:  goType,
		WitType: witType,
	}
}

// SignatureMismatch reports a callable whose declared signature differs
// from the expected one.
func SignatureMismatch(name, want, got string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindTypeMismatch,
		Path:   []string{name},
		Detail: fmt.Sprintf("expected %s, callable declares %s", want, got),
	}
}

// Invocation wraps a synchronous failure raised while entering the host.
func Invocation(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseInvoke,
		Kind:   KindInvocation,
		Detail: fmt.Sprintf("call %s", name),
		Cause:  cause,
	}
}

// Conversion creates a conversion error for a settled value
func Conversion(path []string, value any, goType, detail string) *Error {
	return &Error{
		Phase:  PhaseConvert,
		Kind:   KindConversion,
		Path:   path,
		GoType: goType,
		Value:  value,
		Detail: detail,
	}
}

// Overflow creates an overflow error
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		GoType: targetType,
		Detail: fmt.Sprintf("value %v overflows %s", value, targetType),
		Value:  value,
	}
}

// Rejection wraps the payload a host runtime rejected a token with.
// A payload that is itself an error becomes the cause as well.
func Rejection(name string, payload any) *Error {
	e := &Error{
		Phase:  PhaseSettle,
		Kind:   KindRejection,
		Detail: fmt.Sprintf("%s rejected", name),
		Value:  payload,
	}
	if cause, ok := payload.(error); ok {
		e.Cause = cause
	} else if payload != nil {
		e.Detail = fmt.Sprintf("%s rejected: %v", name, payload)
	}
	return e
}

// Aggregate records the first failure of a joined batch by position.
func Aggregate(index, size int, cause error) *Error {
	return &Error{
		Phase:  PhaseJoin,
		Kind:   KindAggregate,
		Path:   []string{strconv.Itoa(index)},
		Detail: fmt.Sprintf("call %d of %d failed", index, size),
		Cause:  cause,
	}
}

// Transport creates a document store error for network or auth failures.
func Transport(op string, cause error) *Error {
	return &Error{
		Phase:  PhaseStore,
		Kind:   KindIO,
		Detail: fmt.Sprintf("%s: transport failure", op),
		Cause:  cause,
	}
}

// Server creates a document store error for a failed status code.
func Server(op string, status int, body string) *Error {
	e := &Error{
		Phase:  PhaseStore,
		Kind:   KindIO,
		Detail: fmt.Sprintf("%s: server responded %d", op, status),
		Value:  status,
	}
	if body != "" {
		e.Detail += ": " + body
	}
	return e
}

// Status returns the server status code carried by an I/O error anywhere
// in err's chain, including one a host rejected a token with.
func Status(err error) (int, bool) {
	e, ok := Find(err, KindIO)
	if !ok {
		return 0, false
	}
	status, ok := e.Value.(int)
	return status, ok
}

// Canceled wraps a context error observed while waiting on the host.
func Canceled(phase Phase, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindCanceled,
		Detail: "abandoned while waiting",
		Cause:  cause,
	}
}

// Closed reports use of a runtime, loop or table after teardown.
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", what),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}
