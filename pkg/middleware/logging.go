// Package middleware ships optional interceptors demonstrating the client
// and server middleware chain extension point: logging, rate limiting, and
// JWT bearer-token verification. None of them is a mandatory wire feature.
package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/tzrikka/nexrpc/pkg/rpcclient"
	"github.com/tzrikka/nexrpc/pkg/rpcctx"
	"github.com/tzrikka/nexrpc/pkg/rpcserver"
	"github.com/tzrikka/nexrpc/pkg/wire"
)

// LoggingClient logs every outbound call's method ID, duration, and outcome.
func LoggingClient(l *slog.Logger) rpcclient.Middleware {
	return func(next rpcclient.Handler) rpcclient.Handler {
		return func(ctx *rpcctx.Context, methodID uint64, payload wire.Composite) (*wire.Reader, error) {
			start := time.Now()
			resp, err := next(ctx, methodID, payload)
			logCall(l, methodID, time.Since(start), err)
			return resp, err
		}
	}
}

// LoggingServer logs every inbound call's duration and outcome. The method ID
// is not logged: a server-side UserFunc does not receive it.
func LoggingServer(l *slog.Logger) rpcserver.Middleware {
	return func(next rpcserver.UserFunc) rpcserver.UserFunc {
		return func(ctx *rpcctx.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			logCall(l, 0, time.Since(start), err)
			return resp, err
		}
	}
}

func logCall(l *slog.Logger, methodID uint64, d time.Duration, err error) {
	attrs := []slog.Attr{slog.Duration("duration", d)}
	if methodID != 0 {
		attrs = append(attrs, slog.Uint64("method_id", methodID))
	}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
		l.LogAttrs(context.Background(), slog.LevelWarn, "rpc call failed", attrs...)
		return
	}
	l.LogAttrs(context.Background(), slog.LevelInfo, "rpc call completed", attrs...)
}
