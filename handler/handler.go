// Package handler maps numeric handler indices to receive-side callbacks.
//
// A Registry is filled in during program start, before any node begins
// ticking, and is then sealed. The index is a bare integer that both ends
// must agree on, so registration order has to be the same in client and
// server builds; a mismatch shows up as ErrUnregistered or ErrArity on the
// receiving side and the connection stays up.
//
// Dispatch pipeline:
//
//	Rpc frame → Lookup(index) → arity check → middleware chain → Func
package handler

import (
	"context"
	"errors"
	"fmt"
	"rigelnet/message"
	"rigelnet/remote"
	"sort"
	"sync"
)

var (
	ErrUnregistered = errors.New("handler: unregistered handler index")
	ErrArity        = errors.New("handler: argument count mismatch")
	ErrDuplicate    = errors.New("handler: index already registered")
	ErrSealed       = errors.New("handler: registry is sealed")
)

// AnyArity accepts any argument count.
const AnyArity = -1

// Node is the receiving side of a call, as seen by a handler.
type Node interface {
	Send(to *remote.Descriptor, index uint32, args ...any) error
}

// Request is one dispatched call.
type Request struct {
	Node   Node
	Sender *remote.Descriptor
	Entry  *Entry
	Call   *message.Call
}

// Func handles a call.
type Func func(ctx context.Context, req *Request) error

// Middleware wraps a Func.
type Middleware func(next Func) Func

// Chain composes middlewares so the first one runs outermost:
//
//	Chain(A, B, C)(f) → A(B(C(f)))
func Chain(middlewares ...Middleware) Middleware {
	return func(next Func) Func {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Entry is a registered handler.
type Entry struct {
	Index uint32
	Name  string // Optional, for logs
	Arity int    // Expected argument count, or AnyArity
	Func  Func

	wrapped Func // Func behind the middleware chain, set by Seal
}

func (e *Entry) String() string {
	if e.Name != "" {
		return fmt.Sprintf("%d (%s)", e.Index, e.Name)
	}
	return fmt.Sprintf("%d", e.Index)
}

// Registry is the dispatch table. Each node is given one; several nodes in a
// process may share the same registry.
type Registry struct {
	mu          sync.RWMutex
	entries     map[uint32]*Entry
	middlewares []Middleware
	sealed      bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uint32]*Entry)}
}

// Register adds a handler for index accepting any argument count.
func (r *Registry) Register(index uint32, name string, fn Func) error {
	return r.RegisterEntry(Entry{Index: index, Name: name, Arity: AnyArity, Func: fn})
}

// RegisterEntry adds a handler.
func (r *Registry) RegisterEntry(e Entry) error {
	if e.Func == nil {
		return fmt.Errorf("handler: nil func for index %d", e.Index)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrSealed
	}
	if existing, ok := r.entries[e.Index]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, existing)
	}
	r.entries[e.Index] = &e
	return nil
}

// Use registers a middleware. Middlewares are applied in the order they are added.
func (r *Registry) Use(mw ...Middleware) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return ErrSealed
	}
	r.middlewares = append(r.middlewares, mw...)
	return nil
}

// Seal freezes the registry and wraps every entry in the middleware chain. Nodes seal their
// registry on the first tick; sealing twice is a no-op.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return
	}
	chain := Chain(r.middlewares...)
	for _, e := range r.entries {
		e.wrapped = chain(e.Func)
	}
	r.sealed = true
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Lookup returns the entry for index.
func (r *Registry) Lookup(index uint32) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[index]
	return e, ok
}

// Entries returns every entry ordered by index.
func (r *Registry) Entries() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Dispatch runs the handler for call. An unknown index yields
// ErrUnregistered and a wrong argument count ErrArity; neither is fatal to
// the connection.
func (r *Registry) Dispatch(ctx context.Context, node Node, sender *remote.Descriptor, call *message.Call) error {
	r.Seal()

	e, ok := r.Lookup(call.Index)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnregistered, call.Index)
	}
	if e.Arity != AnyArity && call.Args.Len() != e.Arity {
		return fmt.Errorf("%w: handler %s wants %d, got %d", ErrArity, e, e.Arity, call.Args.Len())
	}

	req := &Request{Node: node, Sender: sender, Entry: e, Call: call}
	return e.wrapped(ctx, req)
}
