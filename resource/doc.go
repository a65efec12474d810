// Package resource provides the arena + index handle table shared by the
// host runtimes.
//
// Host objects and callables never cross into Go as garbage-collected
// references. Each runtime owns a table; handles are opaque indices into it
// and their lifetime ends when the value is removed or the table is closed.
//
// # Handle Table
//
//	table := resource.NewTable()
//
//	// Insert a value, get a handle
//	handle := table.Insert(typeID, myValue)
//
//	// Retrieve value by handle
//	value, ok := table.Get(handle)
//
//	// Remove and get value
//	value, ok := table.Remove(handle)
//
// # Generations
//
// Slots are reused after removal. Every handle carries the generation of the
// slot it was issued for, so a stale handle fails lookup instead of resolving
// to the slot's new occupant.
//
// # Borrows
//
// Borrow pins a handle for the duration of an operation (for example an
// in-flight foreign call). Remove refuses to drop a pinned value:
//
//	if table.Borrow(h) {
//	    defer table.ReturnBorrow(h)
//	    // h cannot be removed here
//	}
//
// # Type Safety
//
// Handles are typed; each kind of value gets a type ID:
//
//	value, ok := table.GetTyped(h, TypeCallable)
//
// # Observers
//
// Observers are notified of EventCreated and EventDropped, which the host
// runtimes use for debug logging of handle lifetimes.
//
// # Memory Management
//
// Values are not garbage collected. Close releases everything and calls
// Drop on values implementing Dropper.
package resource
