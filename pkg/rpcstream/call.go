package rpcstream

import (
	"github.com/tzrikka/nexrpc/pkg/frame"
	"github.com/tzrikka/nexrpc/pkg/rpcctx"
	"github.com/tzrikka/nexrpc/pkg/wire"
)

// Call sends a stream-message frame over s carrying payload, and waits for
// the matching stream-response, bounded by ctx's deadline if it has one
// (mirroring the client's main-table timeout behavior).
func Call(ctx *rpcctx.Context, s *Stream, methodID uint64, payload wire.Composite) (*wire.Reader, error) {
	requestID := s.NextRequestID()

	ch, err := s.Register(requestID)
	if err != nil {
		return nil, err
	}

	hdr := frame.StreamMessageHeader{StreamID: s.ID, RequestID: requestID, MethodID: methodID}
	msg, err := frame.WriteStreamMessage(hdr, payload.BitSize(), payload.Serialize)
	if err != nil {
		s.Forget(requestID)
		return nil, err
	}

	if err := s.Send(msg); err != nil {
		s.Forget(requestID)
		return nil, err
	}

	select {
	case res, ok := <-ch:
		if !ok {
			return nil, s.Err()
		}
		return res.r, res.err
	case <-doneChan(ctx):
		s.Forget(requestID)
		return nil, ctx.Err()
	}
}

// doneChan returns ctx's cancellation channel, or nil (which blocks forever
// in a select) when ctx is nil.
func doneChan(ctx *rpcctx.Context) <-chan struct{} {
	if ctx == nil {
		return nil
	}
	return ctx.Done()
}
