// Package echo is a hand-written stand-in for generated client/server code,
// exercising the bidirectional stream path over [rpcclient.Client],
// [rpcserver.Server], and [rpcstream.Stream].
package echo

import (
	"sync/atomic"

	"github.com/tzrikka/nexrpc/pkg/frame"
	"github.com/tzrikka/nexrpc/pkg/rpcclient"
	"github.com/tzrikka/nexrpc/pkg/rpcctx"
	"github.com/tzrikka/nexrpc/pkg/rpcserver"
	"github.com/tzrikka/nexrpc/pkg/rpcstream"
	"github.com/tzrikka/nexrpc/pkg/wire"
)

const (
	ServiceID        uint64 = 2
	MethodOpenStream uint64 = 1 // opens the stream; a unary call answered with the new streamID
	MethodSend       uint64 = 2 // sent on the stream itself, once open
)

// OpenRequest carries no fields: opening a stream needs nothing but the
// call itself.
type OpenRequest struct{}

func (OpenRequest) BitSize() int                      { return 0 }
func (OpenRequest) Serialize(w *wire.Writer) error    { return nil }
func (*OpenRequest) Deserialize(r *wire.Reader) error { return nil }

// OpenResponse carries the server-assigned streamID that all subsequent
// stream messages (in both directions) are addressed to.
type OpenResponse struct{ StreamID uint64 }

func (r OpenResponse) BitSize() int                   { return wire.Uint64BitSize(r.StreamID) }
func (r OpenResponse) Serialize(w *wire.Writer) error { return wire.WriteUint64(w, r.StreamID) }
func (r *OpenResponse) Deserialize(rd *wire.Reader) error {
	id, err := wire.ReadUint64(rd)
	if err != nil {
		return err
	}
	r.StreamID = id
	return nil
}

// SendRequest is one message sent over an open stream.
type SendRequest struct{ Text string }

func (r SendRequest) BitSize() int                   { return wire.StringBitSize(r.Text) }
func (r SendRequest) Serialize(w *wire.Writer) error { return wire.WriteString(w, r.Text) }
func (r *SendRequest) Deserialize(rd *wire.Reader) error {
	s, err := wire.ReadString(rd)
	if err != nil {
		return err
	}
	r.Text = s
	return nil
}

// SendResponse acknowledges a stream message with a sequential, per-stream
// message ID assigned by whichever side received it (messageIDs 1..5 in
// sequence, per stream).
type SendResponse struct {
	Status    string
	MessageID uint64
}

func (r SendResponse) BitSize() int {
	return wire.StringBitSize(r.Status) + wire.Uint64BitSize(r.MessageID)
}

func (r SendResponse) Serialize(w *wire.Writer) error {
	if err := wire.WriteString(w, r.Status); err != nil {
		return err
	}
	return wire.WriteUint64(w, r.MessageID)
}

func (r *SendResponse) Deserialize(rd *wire.Reader) error {
	status, err := wire.ReadString(rd)
	if err != nil {
		return err
	}
	id, err := wire.ReadUint64(rd)
	if err != nil {
		return err
	}
	r.Status = status
	r.MessageID = id
	return nil
}

// Register installs the echo service on g: a unary open method that
// allocates a stream on the accepting connection, and a per-stream incoming
// handler that acknowledges every message with a sequential messageID.
func Register(g *rpcserver.Group) error {
	return g.Service(ServiceID, func(ctx *rpcctx.Context, methodID, requestID uint64, conn *rpcserver.Conn, mw []rpcserver.Middleware, r *wire.Reader) ([]byte, error) {
		if methodID != MethodOpenStream {
			return frame.WriteResponse(requestID, frame.ResponseKindError,
				wire.StringBitSize("unknown method"), func(w *wire.Writer) error { return wire.WriteString(w, "unknown method") })
		}

		var req OpenRequest
		if err := req.Deserialize(r); err != nil {
			return nil, err
		}

		stream := conn.OpenStream()
		var nextID atomic.Uint64
		stream.SetIncomingHandler(func(methodID uint64, r *wire.Reader) (wire.Composite, error) {
			var msg SendRequest
			if err := msg.Deserialize(r); err != nil {
				return nil, err
			}
			return &SendResponse{Status: "received", MessageID: nextID.Add(1)}, nil
		})

		business := func(ctx *rpcctx.Context, req any) (any, error) {
			return OpenResponse{StreamID: stream.ID}, nil
		}
		resp, err := rpcserver.Chain(mw, business)(ctx, req)
		if err != nil {
			return frame.WriteResponse(requestID, frame.ResponseKindError,
				wire.StringBitSize(err.Error()), func(w *wire.Writer) error { return wire.WriteString(w, err.Error()) })
		}

		respPayload := resp.(OpenResponse)
		return frame.WriteResponse(requestID, frame.ResponseKindMessage, respPayload.BitSize(), respPayload.Serialize)
	})
}

// Client is the caller side of the echo service: it opens a unary call to
// obtain a streamID, then exchanges stream messages over it.
type Client struct {
	c *rpcclient.Client
}

func NewClient(c *rpcclient.Client) *Client {
	return &Client{c: c}
}

// OpenStream calls the unary open method and registers the returned
// streamID against the client's stream registry: the client side adopts
// the server-assigned ID rather than minting its own.
func (cl *Client) OpenStream(ctx *rpcctx.Context) (*rpcstream.Stream, error) {
	r, err := cl.c.Call(ctx, MethodOpenStream, &OpenRequest{})
	if err != nil {
		return nil, err
	}
	var resp OpenResponse
	if err := resp.Deserialize(r); err != nil {
		return nil, err
	}
	return cl.c.OpenStream(resp.StreamID), nil
}

// CloseStream closes a stream previously returned by OpenStream, notifying
// the server so it tears down its own side.
func (cl *Client) CloseStream(s *rpcstream.Stream) error {
	return cl.c.CloseStream(s.ID)
}

// Send sends one message over an already-open stream and waits for its
// acknowledgement.
func Send(ctx *rpcctx.Context, s *rpcstream.Stream, text string) (*SendResponse, error) {
	r, err := rpcstream.Call(ctx, s, MethodSend, &SendRequest{Text: text})
	if err != nil {
		return nil, err
	}
	var resp SendResponse
	if err := resp.Deserialize(r); err != nil {
		return nil, err
	}
	return &resp, nil
}
