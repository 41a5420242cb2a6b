package rpcserver

import (
	"errors"
	"sync"

	"github.com/tzrikka/nexrpc/pkg/rpcctx"
	"github.com/tzrikka/nexrpc/pkg/wire"
)

// Handler is generated code for one service: given a methodID it
// deserializes that method's request composite, runs the effective
// middleware stack around the user's method implementation, and serializes
// the response (or error) as a response frame. conn identifies the
// connection the call arrived on, letting a stream-open method register the
// new stream with the right connection's registry.
type Handler func(ctx *rpcctx.Context, methodID, requestID uint64, conn *Conn, mw []Middleware, r *wire.Reader) ([]byte, error)

// ErrDuplicateService is returned by Group.Service when serviceID has
// already been registered anywhere in the same registry tree.
var ErrDuplicateService = errors.New("rpcserver: service already registered")

// registryIndex is the single serviceID-to-owner index shared by every group
// in a tree, so that a lookup can start at any group yet still find a
// service registered anywhere in the tree.
type registryIndex struct {
	mu      sync.RWMutex
	owners  map[uint64]*Group
	handler map[uint64]Handler
}

func newRegistryIndex() *registryIndex {
	return &registryIndex{owners: make(map[uint64]*Group), handler: make(map[uint64]Handler)}
}

func (idx *registryIndex) register(serviceID uint64, owner *Group, h Handler) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if _, exists := idx.handler[serviceID]; exists {
		return ErrDuplicateService
	}
	idx.owners[serviceID] = owner
	idx.handler[serviceID] = h
	return nil
}

func (idx *registryIndex) lookup(serviceID uint64) (Handler, *Group, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	h, ok := idx.handler[serviceID]
	if !ok {
		return nil, nil, false
	}
	return h, idx.owners[serviceID], true
}

// Group is one node of the service registry tree. Each group owns an
// ordered middleware list; groups form a parent chain, and the effective
// middleware stack for a service is the concatenation from the root group
// down to the group that registered it, root applied outermost.
type Group struct {
	parent *Group
	idx    *registryIndex

	mu sync.RWMutex
	mw []Middleware
}

func newRootGroup() *Group {
	return &Group{idx: newRegistryIndex()}
}

// Use appends middleware to this group's stack.
func (g *Group) Use(mw ...Middleware) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mw = append(g.mw, mw...)
}

// Service registers serviceID's handler as owned by this group. It returns
// ErrDuplicateService if serviceID was already registered anywhere in the
// tree.
func (g *Group) Service(serviceID uint64, h Handler) error {
	return g.idx.register(serviceID, g, h)
}

// Group pushes a new child group, runs fn with it active, then returns
// control to the caller.
func (g *Group) Group(fn func(*Group)) {
	child := &Group{parent: g, idx: g.idx}
	fn(child)
}

// middlewareStack returns this group's middleware concatenated after every
// ancestor's, root first.
func (g *Group) middlewareStack() []Middleware {
	var stack []Middleware
	if g.parent != nil {
		stack = append(stack, g.parent.middlewareStack()...)
	}
	g.mu.RLock()
	stack = append(stack, g.mw...)
	g.mu.RUnlock()
	return stack
}
