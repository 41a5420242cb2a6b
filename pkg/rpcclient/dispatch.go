package rpcclient

import (
	"log/slog"

	"github.com/tzrikka/nexrpc/pkg/frame"
	"github.com/tzrikka/nexrpc/pkg/wire"
)

// onMessage is the transport's inbound message callback. It classifies the
// frame by its 16-octet prefix and demultiplexes it to the matching pending
// request, stream, or stream-close.
func (c *Client) onMessage(msg []byte) {
	r := wire.NewReader(msg)

	kind, err := frame.ReadPrefix(r)
	if err != nil {
		c.protocolViolation("unrecognized frame prefix", err)
		return
	}

	switch kind {
	case frame.KindResponse:
		c.handleResponse(r)
	case frame.KindStreamResponse:
		c.handleStreamResponse(r)
	case frame.KindStreamClose:
		c.handleStreamClose(r)
	default:
		c.protocolViolation("unexpected frame kind on client connection", nil)
	}
}

func (c *Client) handleResponse(r *wire.Reader) {
	requestID, kind, err := frame.ReadResponseHeader(r)
	if err != nil {
		c.protocolViolation("malformed response frame", err)
		return
	}

	var result pendingResult
	if kind == frame.ResponseKindError {
		msg, err := wire.ReadString(r)
		if err != nil {
			c.protocolViolation("malformed error response body", err)
			return
		}
		result.err = RemoteError(msg)
	} else {
		result.r = r
	}

	c.mu.Lock()
	ch, ok := c.pending[requestID]
	if ok {
		delete(c.pending, requestID)
	}
	c.mu.Unlock()

	if !ok {
		// A late response racing a context-deadline timeout is expected and
		// tolerated rather than treated as fatal.
		c.logger.Warn("rpc client: response for unknown or expired request",
			slog.Uint64("request_id", requestID))
		return
	}

	ch <- result
}

func (c *Client) handleStreamResponse(r *wire.Reader) {
	streamID, requestID, kind, err := frame.ReadStreamResponseHeader(r)
	if err != nil {
		c.protocolViolation("malformed stream-response frame", err)
		return
	}

	s, ok := c.streams.Get(streamID)
	if !ok {
		c.logger.Warn("rpc client: stream-response for unknown stream", slog.Uint64("stream_id", streamID))
		return
	}

	if !s.Deliver(requestID, kind, r) {
		c.logger.Warn("rpc client: stream-response for unknown or expired request",
			slog.Uint64("stream_id", streamID), slog.Uint64("request_id", requestID))
	}
}

func (c *Client) handleStreamClose(r *wire.Reader) {
	streamID, err := frame.ReadStreamClose(r)
	if err != nil {
		c.protocolViolation("malformed stream-close frame", err)
		return
	}

	if s, ok := c.streams.Get(streamID); ok {
		s.Close(nil)
		c.streams.Remove(streamID)
	}
}

// protocolViolation logs and disconnects: any frame this client cannot parse
// or classify is fatal for the connection.
func (c *Client) protocolViolation(msg string, err error) {
	if err != nil {
		c.logger.Error("rpc client: "+msg, slog.Any("error", err))
	} else {
		c.logger.Error("rpc client: " + msg)
	}
	c.Disconnect()
}
