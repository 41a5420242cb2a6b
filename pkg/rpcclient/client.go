// Package rpcclient implements the client half of the RPC core: a
// connection state machine, a concurrent request table keyed by requestID,
// response demultiplexing off the transport's callback, and the middleware
// chain applied to every outbound call.
package rpcclient

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tzrikka/nexrpc/pkg/frame"
	"github.com/tzrikka/nexrpc/pkg/metrics"
	"github.com/tzrikka/nexrpc/pkg/rpcctx"
	"github.com/tzrikka/nexrpc/pkg/rpcstream"
	"github.com/tzrikka/nexrpc/pkg/transport"
	"github.com/tzrikka/nexrpc/pkg/wire"
)

// State is one of the client's connection states.
type State int

const (
	NotConnected State = iota
	Connected
	Failed
)

func (s State) String() string {
	switch s {
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "not_connected"
	}
}

// ErrNotConnected is returned by Call when the client is not CONNECTED.
var ErrNotConnected = errors.New("rpcclient: not connected")

// ErrConnectionClosed completes every pending request when the transport
// reports an orderly close.
var ErrConnectionClosed = errors.New("rpcclient: connection closed")

// RemoteError is returned by Call when the server answers with an ERROR
// response. Its string is the server's message.
type RemoteError string

func (e RemoteError) Error() string { return string(e) }

// pendingResult is what a dispatched response resolves to: either the
// response body reader (MESSAGE) or a RemoteError (ERROR) — never both.
type pendingResult struct {
	r   *wire.Reader
	err error
}

// Handler is the terminal shape a middleware chain is built around: it takes
// a framed method call and returns the raw response reader.
type Handler func(ctx *rpcctx.Context, methodID uint64, payload wire.Composite) (*wire.Reader, error)

// Middleware wraps a Handler with cross-cutting behavior. The effective
// handler for a call is the right-fold of the chain over the terminal
// "actually send" handler, so the first middleware in the slice is
// outermost.
type Middleware func(next Handler) Handler

// chain right-folds mw over terminal, so mw[0] runs first and innermost
// reaches terminal last.
func chain(mw []Middleware, terminal Handler) Handler {
	h := terminal
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// Client is one logical connection to an RPC server, built over a
// transport.ClientTransport.
type Client struct {
	transport transport.ClientTransport
	serviceID uint64
	handler   Handler

	logger  *slog.Logger
	metrics *zerolog.Logger

	mu      sync.Mutex
	state   State
	conn    transport.Connection
	pending map[uint64]chan pendingResult
	nextID  uint64
	failErr error

	streams *rpcstream.Registry
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithMiddleware installs the client's send-path middleware chain, outermost
// first.
func WithMiddleware(mw ...Middleware) Option {
	return func(c *Client) {
		c.handler = chain(mw, c.send)
	}
}

// WithLogger overrides the client's logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics enables per-call CSV metrics (pkg/metrics), recording one line
// per outbound RPC keyed by method ID.
func WithMetrics(l zerolog.Logger) Option {
	return func(c *Client) { c.metrics = &l }
}

// New builds a Client bound to serviceID over t. Call Connect before issuing
// any RPCs.
func New(t transport.ClientTransport, serviceID uint64, opts ...Option) *Client {
	c := &Client{
		transport: t,
		serviceID: serviceID,
		logger:    slog.Default(),
		pending:   make(map[uint64]chan pendingResult),
		streams:   rpcstream.NewRegistry(),
	}
	c.handler = c.send

	var seed [8]byte
	if _, err := rand.Read(seed[:]); err == nil {
		c.nextID = binary.BigEndian.Uint64(seed[:])
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the client's current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the transport. It is idempotent while CONNECTED.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.state == Connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conn, err := c.transport.Connect()
	if err != nil {
		c.mu.Lock()
		c.state = Failed
		c.failErr = err
		c.mu.Unlock()
		return err
	}

	conn.SetMessageHandler(c.onMessage)
	conn.SetFailHandler(c.onFail)
	conn.SetCloseHandler(c.onClose)

	c.mu.Lock()
	c.conn = conn
	c.state = Connected
	c.failErr = nil
	c.mu.Unlock()

	return nil
}

// Disconnect closes the underlying connection and returns the client to
// NOT_CONNECTED from any state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = NotConnected
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.streams.CloseAll(ErrConnectionClosed)
	c.failAllPending()
}

// Streams returns the registry of streams opened over this client's
// connection.
func (c *Client) Streams() *rpcstream.Registry {
	return c.streams
}

// OpenStream registers a stream under the server-assigned streamID returned
// by a stream-open method call: subsequent stream
// messages carry that same ID, so the registry key and the wire ID match.
func (c *Client) OpenStream(streamID uint64) *rpcstream.Stream {
	s := rpcstream.New(streamID, connSender{c})
	c.streams.Add(s)
	return s
}

// CloseStream closes streamID from this side, notifying the server over the
// wire, and drops it from the client's stream registry. It is a no-op if
// streamID is not open.
func (c *Client) CloseStream(streamID uint64) error {
	s, ok := c.streams.Get(streamID)
	if !ok {
		return nil
	}
	err := s.CloseLocal()
	c.streams.Remove(streamID)
	return err
}

// connSender adapts the client's current connection to rpcstream.Sender.
type connSender struct{ c *Client }

func (s connSender) Send(msg []byte) error {
	s.c.mu.Lock()
	conn := s.c.conn
	s.c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.Send(msg)
}

func (c *Client) onFail(err error) {
	c.mu.Lock()
	c.state = Failed
	c.failErr = err
	c.mu.Unlock()

	c.streams.CloseAll(err)
	c.failAllPending()
	c.logger.Error("rpc client: transport failure", slog.Any("error", err))
}

func (c *Client) onClose() {
	c.mu.Lock()
	c.state = NotConnected
	c.mu.Unlock()

	c.streams.CloseAll(ErrConnectionClosed)
	c.failAllPending()
}

// failAllPending completes every outstanding request by closing its sink;
// send() resolves the closed channel to c.failErr (or ErrConnectionClosed
// when no failure was recorded), so the cause only needs to live in
// c.failErr, not be threaded through here too.
func (c *Client) failAllPending() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[uint64]chan pendingResult)
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
}

// Call invokes methodID with payload, running the client's middleware chain,
// and returns the response reader positioned at the response body.
func (c *Client) Call(ctx *rpcctx.Context, methodID uint64, payload wire.Composite) (*wire.Reader, error) {
	resp, err := c.handler(ctx, methodID, payload)
	if c.metrics != nil {
		metrics.CountOutboundCall(*c.metrics, time.Now(), methodID, err)
	}
	return resp, err
}

// send is the terminal handler every middleware chain is built around.
func (c *Client) send(ctx *rpcctx.Context, methodID uint64, payload wire.Composite) (*wire.Reader, error) {
	c.mu.Lock()
	if c.state != Connected {
		err := ErrNotConnected
		if c.state == Failed && c.failErr != nil {
			err = c.failErr
		}
		c.mu.Unlock()
		return nil, err
	}

	c.nextID++
	requestID := c.nextID
	ch := make(chan pendingResult, 1)
	c.pending[requestID] = ch
	conn := c.conn
	c.mu.Unlock()

	hdr := frame.RequestHeader{Context: ctx, RequestID: requestID, ServiceID: c.serviceID, MethodID: methodID}
	msg, err := frame.WriteRequest(hdr, payload.BitSize(), payload.Serialize)
	if err != nil {
		c.forget(requestID)
		return nil, err
	}

	if err := conn.Send(msg); err != nil {
		c.forget(requestID)
		return nil, fmt.Errorf("rpcclient: send failed: %w", err)
	}

	select {
	case result, ok := <-ch:
		if !ok {
			c.mu.Lock()
			err := c.failErr
			c.mu.Unlock()
			if err == nil {
				err = ErrConnectionClosed
			}
			return nil, err
		}
		return result.r, result.err
	case <-doneChan(ctx):
		c.forget(requestID)
		return nil, ctx.Err()
	}
}

func (c *Client) forget(requestID uint64) {
	c.mu.Lock()
	delete(c.pending, requestID)
	c.mu.Unlock()
}

func doneChan(ctx *rpcctx.Context) <-chan struct{} {
	if ctx == nil {
		return nil
	}
	return ctx.Done()
}
