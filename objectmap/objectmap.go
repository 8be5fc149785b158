// Package objectmap gives locally owned objects numeric ids that a remote
// peer can use to address them, so frames never carry local pointers.
//
// Ids come from a counter that only moves forward for the life of the
// mapper. A withdrawn id is erased immediately and never handed out again,
// so a late frame naming it resolves to nothing instead of to whatever
// object was published next.
package objectmap

import (
	"errors"
	"fmt"
	"math"
	"reflect"
)

// ID addresses a published object.
type ID uint32

// CreateNew is reserved to mean "no object yet"; it is never assigned.
const CreateNew ID = 0

var (
	// ErrExhausted is returned once every id has been handed out.
	ErrExhausted = errors.New("objectmap: id space exhausted")
	// ErrUnhashable is returned for a handle that cannot be a map key, such
	// as a slice or map stored in an interface-typed mapper.
	ErrUnhashable = errors.New("objectmap: handle is not comparable")
)

// Mapper maps ids to handles. It is owned by one node and, like the rest of
// the node's state, is only used from the node's goroutine.
//
// T may be an interface type; handles are then checked at run time and
// pointers are the usual choice.
type Mapper[T comparable] struct {
	next    ID
	byID    map[ID]T
	byValue map[T]ID
	dynamic bool // T is an interface, so a handle may hold an unhashable value
}

// New creates an empty mapper.
func New[T comparable]() *Mapper[T] {
	return &Mapper[T]{
		next:    CreateNew + 1,
		byID:    make(map[ID]T),
		byValue: make(map[T]ID),
		dynamic: reflect.TypeOf((*T)(nil)).Elem().Kind() == reflect.Interface,
	}
}

func (m *Mapper[T]) hashable(handle T) bool {
	if !m.dynamic {
		return true
	}
	v := reflect.ValueOf(&handle).Elem()
	return v.IsNil() || v.Elem().Comparable()
}

// Publish assigns an id to handle. Publishing a handle that is already
// published returns its existing id.
func (m *Mapper[T]) Publish(handle T) (ID, error) {
	if !m.hashable(handle) {
		return CreateNew, fmt.Errorf("%w: %T", ErrUnhashable, handle)
	}
	if id, ok := m.byValue[handle]; ok {
		return id, nil
	}
	if m.next == CreateNew {
		return CreateNew, ErrExhausted
	}
	id := m.next
	if id == math.MaxUint32 {
		m.next = CreateNew
	} else {
		m.next++
	}
	m.byID[id] = handle
	m.byValue[handle] = id
	return id, nil
}

// Resolve returns the handle for id. A missing id is a normal condition:
// the object has not arrived yet or is already gone.
func (m *Mapper[T]) Resolve(id ID) (T, bool) {
	h, ok := m.byID[id]
	return h, ok
}

// Lookup returns the id under which handle is published.
func (m *Mapper[T]) Lookup(handle T) (ID, bool) {
	if !m.hashable(handle) {
		return CreateNew, false
	}
	id, ok := m.byValue[handle]
	return id, ok
}

// Withdraw erases id. It reports whether id was published.
func (m *Mapper[T]) Withdraw(id ID) bool {
	h, ok := m.byID[id]
	if !ok {
		return false
	}
	delete(m.byID, id)
	delete(m.byValue, h)
	return true
}

// WithdrawHandle erases whatever id handle is published under.
func (m *Mapper[T]) WithdrawHandle(handle T) bool {
	if !m.hashable(handle) {
		return false
	}
	id, ok := m.byValue[handle]
	if !ok {
		return false
	}
	return m.Withdraw(id)
}

// Len returns the number of published objects.
func (m *Mapper[T]) Len() int {
	return len(m.byID)
}
