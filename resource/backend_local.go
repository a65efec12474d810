package resource

import (
	"errors"
	"sync"
)

var (
	ErrClosed            = errors.New("resource backend closed")
	ErrOutstandingBorrow = errors.New("cannot drop resource with outstanding borrows")
)

// LocalBackend is an in-memory arena with borrow tracking and slot reuse.
type LocalBackend struct {
	entries  []entry
	freeList []uint32
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value       any
	typeID      uint32
	gen         uint32
	borrowCount uint32
	valid       bool
}

// NewLocalBackend creates a new in-memory backend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{
		entries:  make([]entry, 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

// Create stores a value and returns a handle.
func (b *LocalBackend) Create(typeID uint32, value any) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrClosed
	}

	if len(b.freeList) > 0 {
		slot := b.freeList[len(b.freeList)-1]
		b.freeList = b.freeList[:len(b.freeList)-1]
		e := &b.entries[slot-1]
		e.gen++
		e.typeID = typeID
		e.value = value
		e.valid = true
		return makeHandle(slot, e.gen), nil
	}

	b.entries = append(b.entries, entry{
		typeID: typeID,
		value:  value,
		gen:    1,
		valid:  true,
	})
	return makeHandle(uint32(len(b.entries)), 1), nil
}

// lookup returns the live entry for handle. Callers hold b.mu.
func (b *LocalBackend) lookup(handle Handle) *entry {
	if handle == 0 {
		return nil
	}
	slot := handle.slot()
	if slot == 0 || int(slot) > len(b.entries) {
		return nil
	}
	e := &b.entries[slot-1]
	if !e.valid || e.gen != handle.gen() {
		return nil
	}
	return e
}

// Get retrieves a value by handle.
func (b *LocalBackend) Get(handle Handle) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return nil, false
	}
	return e.value, true
}

// Drop removes a value and returns (value, true) if destructor should be called.
func (b *LocalBackend) Drop(handle Handle) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil || e.borrowCount > 0 {
		return nil, false
	}

	value := e.value
	e.valid = false
	e.value = nil
	e.borrowCount = 0
	b.freeList = append(b.freeList, handle.slot())

	return value, true
}

// Close releases all values.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for i := range b.entries {
		if b.entries[i].valid {
			if d, ok := b.entries[i].value.(Dropper); ok {
				d.Drop()
			}
			b.entries[i].valid = false
			b.entries[i].value = nil
		}
	}

	b.entries = nil
	b.freeList = nil
	return nil
}

// Borrow increments the borrow count for a handle.
func (b *LocalBackend) Borrow(handle Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil {
		return false
	}
	e.borrowCount++
	return true
}

// ReturnBorrow decrements the borrow count for a handle.
func (b *LocalBackend) ReturnBorrow(handle Handle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	e := b.lookup(handle)
	if e == nil || e.borrowCount == 0 {
		return false
	}
	e.borrowCount--
	return true
}

// Borrows returns the outstanding borrow count for a handle.
func (b *LocalBackend) Borrows(handle Handle) uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return 0
	}
	return e.borrowCount
}

// TypeID returns the type ID for a handle.
func (b *LocalBackend) TypeID(handle Handle) (uint32, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e := b.lookup(handle)
	if e == nil {
		return 0, false
	}
	return e.typeID, true
}

// Len returns the number of live values.
func (b *LocalBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, e := range b.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Each iterates over all live values.
func (b *LocalBackend) Each(fn func(Handle, uint32, any) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for i, e := range b.entries {
		if e.valid {
			if !fn(makeHandle(uint32(i+1), e.gen), e.typeID, e.value) {
				break
			}
		}
	}
}
