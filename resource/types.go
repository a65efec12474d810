package resource

// Handle is an opaque reference to a value in a table. The low 32 bits index
// the arena slot and the high 32 bits carry the slot generation, so a handle
// outliving its value never aliases whatever later reuses the slot.
// Handle 0 is reserved and always invalid.
type Handle uint64

func makeHandle(slot, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(slot))
}

func (h Handle) slot() uint32 { return uint32(h) }
func (h Handle) gen() uint32  { return uint32(h >> 32) }

// Event types for lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

func (t EventType) String() string {
	if t == EventDropped {
		return "dropped"
	}
	return "created"
}

// Event represents a lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	TypeID uint32
	Type   EventType
}

// Observer receives notifications about lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Backend provides the underlying storage mechanism.
type Backend interface {
	// Create stores a value and returns a handle.
	Create(typeID uint32, value any) (Handle, error)

	// Get retrieves a value by handle.
	Get(handle Handle) (any, bool)

	// Drop removes a value and returns (value, true) if its destructor should run.
	// Returns (nil, false) if handle is stale or has outstanding borrows.
	Drop(handle Handle) (any, bool)

	// Borrow pins a handle so Drop fails until the borrow is returned.
	Borrow(handle Handle) bool

	// ReturnBorrow releases a pin taken by Borrow.
	ReturnBorrow(handle Handle) bool

	// Close releases all values held by the backend.
	Close() error
}

// Table manages values with type information and observer support.
type Table interface {
	// Insert adds a value and returns its handle.
	Insert(typeID uint32, value any) Handle

	// Get retrieves a value by handle.
	Get(handle Handle) (any, bool)

	// GetTyped retrieves a value only if it matches the expected type.
	GetTyped(handle Handle, typeID uint32) (any, bool)

	// Remove drops a value and returns (value, true) if found.
	Remove(handle Handle) (any, bool)

	// Borrow pins a live handle for the duration of an operation.
	Borrow(handle Handle) bool

	// ReturnBorrow releases a pin taken by Borrow.
	ReturnBorrow(handle Handle) bool

	// Subscribe adds an observer for lifecycle events.
	Subscribe(Observer)

	// Unsubscribe removes an observer.
	Unsubscribe(Observer)

	// Len returns the number of live values.
	Len() int

	// Clear drops all values.
	Clear()

	// Close releases all values and stops accepting operations.
	Close() error
}

// Dropper is optionally implemented by values that need cleanup.
type Dropper interface {
	Drop()
}
