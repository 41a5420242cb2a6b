package middleware

import (
	"errors"

	"golang.org/x/time/rate"

	"github.com/tzrikka/nexrpc/pkg/rpcctx"
	"github.com/tzrikka/nexrpc/pkg/rpcserver"
)

// ErrRateLimited is returned (as the ERROR response body's message) when a
// call is rejected by RateLimitServer.
var ErrRateLimited = errors.New("rpc: rate limit exceeded")

// RateLimitServer bounds the rate of inbound calls accepted by the group it
// is installed on, via a single shared token bucket. Every connection calling
// through that group draws from the same bucket; it is not scoped per
// connection.
func RateLimitServer(r rate.Limit, burst int) rpcserver.Middleware {
	lim := rate.NewLimiter(r, burst)
	return func(next rpcserver.UserFunc) rpcserver.UserFunc {
		return func(ctx *rpcctx.Context, req any) (any, error) {
			if !lim.Allow() {
				return nil, ErrRateLimited
			}
			return next(ctx, req)
		}
	}
}
