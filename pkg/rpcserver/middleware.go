package rpcserver

import "github.com/tzrikka/nexrpc/pkg/rpcctx"

// UserFunc is a single RPC method's business logic: it takes the already
// deserialized request composite and returns the response composite, or an
// error to be reported to the caller.
type UserFunc func(ctx *rpcctx.Context, req any) (any, error)

// Middleware wraps a UserFunc with cross-cutting behavior (logging, rate
// limiting, authentication). The effective call for a method is the
// right-fold of the owning group's middleware stack, root applied
// outermost, over the user's method implementation.
type Middleware func(next UserFunc) UserFunc

// Chain right-folds mw over terminal: mw[0] (the outermost, root-most
// middleware) runs first. Generated (or hand-written) service Handlers call
// this to apply the middleware stack a Handler receives around their
// business method.
func Chain(mw []Middleware, terminal UserFunc) UserFunc {
	h := terminal
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
