// Package pingpong is a hand-written stand-in for generated client/server
// code, exercising the unary request/response path over [rpcclient.Client]
// and [rpcserver.Server].
package pingpong

import (
	"time"

	"github.com/tzrikka/nexrpc/pkg/frame"
	"github.com/tzrikka/nexrpc/pkg/rpcclient"
	"github.com/tzrikka/nexrpc/pkg/rpcctx"
	"github.com/tzrikka/nexrpc/pkg/rpcserver"
	"github.com/tzrikka/nexrpc/pkg/wire"
)

// ServiceID and MethodPing are the stable 64-bit identifiers an IDL compiler
// would assign to this service and its one method.
const (
	ServiceID  uint64 = 1
	MethodPing uint64 = 1
)

// PingRequest carries the counter a ping call increments.
type PingRequest struct {
	Count uint32
}

func (p PingRequest) BitSize() int                   { return wire.Uint32BitSize(p.Count) }
func (p PingRequest) Serialize(w *wire.Writer) error { return wire.WriteUint32(w, p.Count) }
func (p *PingRequest) Deserialize(r *wire.Reader) error {
	v, err := wire.ReadUint32(r)
	if err != nil {
		return err
	}
	p.Count = v
	return nil
}

// PingResponse carries the server's incremented counter.
type PingResponse struct {
	Count uint32
}

func (p PingResponse) BitSize() int                   { return wire.Uint32BitSize(p.Count) }
func (p PingResponse) Serialize(w *wire.Writer) error { return wire.WriteUint32(w, p.Count) }
func (p *PingResponse) Deserialize(r *wire.Reader) error {
	v, err := wire.ReadUint32(r)
	if err != nil {
		return err
	}
	p.Count = v
	return nil
}

// Register binds ServiceID's Ping method on g. sleep, when non-zero, delays
// every response by that long before answering — used to exercise a
// client's context deadline. The server-side context is decoded from the
// request frame and carries no deadline, so nothing cuts the sleep short.
func Register(g *rpcserver.Group, sleep time.Duration) error {
	return g.Service(ServiceID, func(ctx *rpcctx.Context, methodID, requestID uint64, conn *rpcserver.Conn, mw []rpcserver.Middleware, r *wire.Reader) ([]byte, error) {
		var req PingRequest
		if err := req.Deserialize(r); err != nil {
			return nil, err
		}

		business := func(ctx *rpcctx.Context, req any) (any, error) {
			if sleep > 0 {
				select {
				case <-time.After(sleep):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			p := req.(PingRequest)
			return PingResponse{Count: p.Count + 1}, nil
		}

		resp, err := rpcserver.Chain(mw, business)(ctx, req)
		if err != nil {
			return frame.WriteResponse(requestID, frame.ResponseKindError,
				wire.StringBitSize(err.Error()), func(w *wire.Writer) error { return wire.WriteString(w, err.Error()) })
		}

		respPayload := resp.(PingResponse)
		return frame.WriteResponse(requestID, frame.ResponseKindMessage, respPayload.BitSize(), respPayload.Serialize)
	})
}

// Client wraps an [rpcclient.Client] bound to ServiceID with a typed Ping
// method.
type Client struct {
	c *rpcclient.Client
}

// NewClient wraps c, which must already have been constructed with
// ServiceID as its serviceID.
func NewClient(c *rpcclient.Client) *Client {
	return &Client{c: c}
}

// Ping calls MethodPing with count and returns the server's incremented
// counter.
func (cl *Client) Ping(ctx *rpcctx.Context, count uint32) (uint32, error) {
	r, err := cl.c.Call(ctx, MethodPing, &PingRequest{Count: count})
	if err != nil {
		return 0, err
	}

	var resp PingResponse
	if err := resp.Deserialize(r); err != nil {
		return 0, err
	}
	return resp.Count, nil
}
