// Package rpcstream implements the per-stream request table and close
// semantics shared by the client and server stream halves. A Stream
// is created once a stream-open method call returns a streamID; from then on
// it owns its own requestID space and its own "closed" lifecycle, decoupled
// from the client/server request table that carried the original call.
package rpcstream

import (
	"errors"
	"sync"

	"github.com/tzrikka/nexrpc/pkg/frame"
	"github.com/tzrikka/nexrpc/pkg/wire"
)

// IncomingHandler processes an inbound stream-message frame addressed to
// this stream and returns the response composite, or an error to be
// reported back as an ERROR stream-response: messages flow either
// direction and each carries an RPC-like request/response shape. A
// stream-message frame carries no context (only requests do). Streams
// that only originate calls (the common client role) leave
// this unset.
type IncomingHandler func(methodID uint64, r *wire.Reader) (wire.Composite, error)

// ErrClosed is returned by Call, and delivered to every outstanding
// request, once a stream has been closed locally or remotely.
var ErrClosed = errors.New("rpcstream: stream closed")

// RemoteError is returned by Call when the peer answers a stream message
// with an ERROR stream-response. Its string is the peer's message.
type RemoteError string

func (e RemoteError) Error() string { return string(e) }

// result is what a dispatched stream-response resolves to: either the
// response body reader (MESSAGE) or a RemoteError (ERROR) — never both.
type result struct {
	r   *wire.Reader
	err error
}

// Sender transmits an already-framed stream message or stream-close frame
// on the connection the stream is attached to. Both the client and server
// sides supply their own implementation over their respective connections.
type Sender interface {
	Send(msg []byte) error
}

// Stream is one multiplexed, bidirectional message exchange running over a
// single underlying connection, identified by a streamID that both peers
// agree on.
type Stream struct {
	ID      uint64
	sender  Sender
	handler IncomingHandler

	mu        sync.Mutex
	nextReqID uint64
	pending   map[uint64]chan result
	closed    bool
	closeErr  error
}

// New wraps an established stream identified by id, whose frames are
// transmitted through sender.
func New(id uint64, sender Sender) *Stream {
	return &Stream{
		ID:      id,
		sender:  sender,
		pending: make(map[uint64]chan result),
	}
}

// NextRequestID allocates the next stream-local requestID for an outbound
// stream-message frame.
func (s *Stream) NextRequestID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextReqID++
	return s.nextReqID
}

// Register records a pending stream request and returns the channel its
// response (or failure) will be delivered on. It fails immediately if the
// stream is already closed.
func (s *Stream) Register(requestID uint64) (chan result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, s.closeErr
	}

	ch := make(chan result, 1)
	s.pending[requestID] = ch
	return ch, nil
}

// Forget removes a pending request without delivering a response, used when
// a caller stops waiting (e.g. on a context deadline).
func (s *Stream) Forget(requestID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, requestID)
}

// Deliver routes an inbound stream-response to the matching pending
// request, interpreting kind as frame.ResponseKindError or
// ResponseKindMessage. A miss is tolerated the same way the client's main
// request table tolerates one: it can legitimately happen on a timeout
// race.
func (s *Stream) Deliver(requestID uint64, kind uint8, body *wire.Reader) bool {
	s.mu.Lock()
	ch, ok := s.pending[requestID]
	if ok {
		delete(s.pending, requestID)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}

	if kind == frame.ResponseKindError {
		msg, err := wire.ReadString(body)
		if err != nil {
			ch <- result{err: err}
			return true
		}
		ch <- result{err: RemoteError(msg)}
		return true
	}

	ch <- result{r: body}
	return true
}

// Send transmits an already-encoded stream-message (or stream-response)
// frame on the stream's connection.
func (s *Stream) Send(msg []byte) error {
	return s.sender.Send(msg)
}

// SetIncomingHandler installs the function that answers inbound
// stream-message frames addressed to this stream.
func (s *Stream) SetIncomingHandler(h IncomingHandler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// HandleIncoming processes an inbound stream-message frame and sends the
// resulting stream-response (or ERROR stream-response) back on the stream's
// connection. It is a no-op, by design, if no IncomingHandler was installed
// — a stream that only originates calls has nothing to answer with.
func (s *Stream) HandleIncoming(hdr frame.StreamMessageHeader, r *wire.Reader) error {
	s.mu.Lock()
	h := s.handler
	s.mu.Unlock()
	if h == nil {
		return nil
	}

	resp, err := h(hdr.MethodID, r)

	var msg []byte
	var encErr error
	if err != nil {
		msg, encErr = frame.WriteStreamResponse(hdr.StreamID, hdr.RequestID, frame.ResponseKindError,
			wire.StringBitSize(err.Error()), func(w *wire.Writer) error { return wire.WriteString(w, err.Error()) })
	} else {
		msg, encErr = frame.WriteStreamResponse(hdr.StreamID, hdr.RequestID, frame.ResponseKindMessage,
			resp.BitSize(), resp.Serialize)
	}
	if encErr != nil {
		return encErr
	}

	return s.sender.Send(msg)
}

// IsClosed reports whether the stream has been closed, locally or remotely.
func (s *Stream) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Err returns the reason the stream was closed, or nil if it is still open.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeErr
}

// CloseLocal closes the stream from this side: it sends a stream-close
// frame carrying the streamID to the peer, then completes every outstanding
// request the same way Close does. It is idempotent: a second call, or one
// racing the peer's own close, is a no-op.
func (s *Stream) CloseLocal() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	msg, err := frame.WriteStreamClose(s.ID)
	if err != nil {
		return err
	}
	sendErr := s.sender.Send(msg)
	s.Close(ErrClosed)
	return sendErr
}

// Close marks the stream closed and completes every outstanding request
// with cause ("Failure coupling"). It is idempotent: a second call is a
// no-op, matching remote-close racing local-close.
func (s *Stream) Close(cause error) {
	if cause == nil {
		cause = ErrClosed
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.closeErr = cause
	pending := s.pending
	s.pending = make(map[uint64]chan result)
	s.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
}
