package middleware

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tzrikka/nexrpc/pkg/rpcclient"
	"github.com/tzrikka/nexrpc/pkg/rpcctx"
	"github.com/tzrikka/nexrpc/pkg/rpcserver"
	"github.com/tzrikka/nexrpc/pkg/wire"
)

// BearerTokenMetadataKey is the context metadata key, part of the value
// mapping serialized on the wire, that carries a JWT bearer token.
const BearerTokenMetadataKey = "authorization"

// ErrMissingBearerToken and ErrInvalidBearerToken are the causes reported
// (as the ERROR response body's message) when AuthJWTServer rejects a call.
var (
	ErrMissingBearerToken = errors.New("rpc: missing bearer token")
	ErrInvalidBearerToken = errors.New("rpc: invalid bearer token")
)

// AuthJWTClient injects a bearer token into every outbound call's context
// metadata, so the server side can verify it with AuthJWTServer.
func AuthJWTClient(token string) rpcclient.Middleware {
	return func(next rpcclient.Handler) rpcclient.Handler {
		return func(ctx *rpcctx.Context, methodID uint64, payload wire.Composite) (*wire.Reader, error) {
			ctx.Put(BearerTokenMetadataKey, []byte(token))
			return next(ctx, methodID, payload)
		}
	}
}

// AuthJWTServer verifies the bearer token carried in a call's context
// metadata against keyFunc, the same way [jwt.Parser.Parse] resolves a
// signing key from the token's header.
func AuthJWTServer(keyFunc jwt.Keyfunc) rpcserver.Middleware {
	return func(next rpcserver.UserFunc) rpcserver.UserFunc {
		return func(ctx *rpcctx.Context, req any) (any, error) {
			raw, ok := ctx.Get(BearerTokenMetadataKey)
			if !ok || len(raw) == 0 {
				return nil, ErrMissingBearerToken
			}

			token, err := jwt.Parse(string(raw), keyFunc)
			if err != nil || !token.Valid {
				return nil, fmt.Errorf("%w: %v", ErrInvalidBearerToken, err)
			}

			return next(ctx, req)
		}
	}
}
