package host

import (
	"fmt"

	"github.com/wippyai/hostbridge/resource"
)

// BindMode records how a callable handle was obtained.
type BindMode uint8

const (
	// BindNone marks a handle to a non-callable value such as a container object.
	BindNone BindMode = iota
	// BindDirect marks a callable passed by reference.
	BindDirect
	// BindNamed marks a callable looked up by name on a container. Invoking
	// it binds the container as the receiver.
	BindNamed
)

func (m BindMode) String() string {
	switch m {
	case BindNone:
		return "value"
	case BindDirect:
		return "direct"
	case BindNamed:
		return "named"
	default:
		return fmt.Sprintf("BindMode(%d)", uint8(m))
	}
}

// Handle is a native reference to a value owned by a host runtime. It is an
// index into the runtime's arena and is only meaningful to the runtime that
// issued it. Runtimes re-validate handles on every use.
type Handle struct {
	Sig       *Signature
	Name      string
	Ref       resource.Handle
	Container resource.Handle
	Mode      BindMode
}

// IsZero reports whether h was never issued.
func (h Handle) IsZero() bool {
	return h.Ref == 0
}

// Callable reports whether h refers to a bound callable.
func (h Handle) Callable() bool {
	return h.Mode == BindDirect || h.Mode == BindNamed
}

func (h Handle) String() string {
	name := h.Name
	if name == "" {
		name = "<anonymous>"
	}
	if h.Sig != nil {
		return fmt.Sprintf("%s(%s %s #%d)", name, h.Mode, h.Sig, h.Ref)
	}
	return fmt.Sprintf("%s(%s #%d)", name, h.Mode, h.Ref)
}
