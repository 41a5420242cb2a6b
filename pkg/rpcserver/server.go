// Package rpcserver implements the server half of the RPC core: the
// accept/poll/dispatch loop, the connection registry, the service/group
// registry tree, and dispatch with "Service not found" and panic recovery at
// the dispatch boundary.
package rpcserver

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tzrikka/nexrpc/pkg/frame"
	"github.com/tzrikka/nexrpc/pkg/metrics"
	"github.com/tzrikka/nexrpc/pkg/rpcstream"
	"github.com/tzrikka/nexrpc/pkg/transport"
	"github.com/tzrikka/nexrpc/pkg/wire"
)

// pollInterval is the server loop's sleep between ticks.
const pollInterval = time.Millisecond

// message is one inbound frame queued for dispatch, tagged with the
// connection it arrived on so the response is written back to the right
// place and connection teardown is never blocked on pending messages.
type message struct {
	connID uint64
	data   []byte
}

// Conn wraps one accepted connection with its own closed flag and stream
// registry. Generated stream-open handlers receive it so they can register
// the new stream against the right connection.
type Conn struct {
	id      uint64
	logID   string // short, log-friendly ID distinct from the numeric id
	conn    transport.Connection
	streams *rpcstream.Registry

	mu     sync.Mutex
	closed bool
}

// OpenStream allocates a new locally-numbered stream on this connection and
// registers it in the connection's stream registry.
func (c *Conn) OpenStream() *rpcstream.Stream {
	return c.streams.Open(connSender{c})
}

// CloseStream closes streamID from this side, notifying the client over the
// wire, and drops it from the connection's stream registry. It is a no-op
// if streamID is not open.
func (c *Conn) CloseStream(streamID uint64) error {
	s, ok := c.streams.Get(streamID)
	if !ok {
		return nil
	}
	err := s.CloseLocal()
	c.streams.Remove(streamID)
	return err
}

// connSender adapts a *Conn to rpcstream.Sender.
type connSender struct{ c *Conn }

func (s connSender) Send(msg []byte) error { return s.c.conn.Send(msg) }

// Server is one RPC listener: an accept/dispatch loop over a
// transport.ServerTransport, a service registry tree, and a connection
// registry.
type Server struct {
	transport transport.ServerTransport
	root      *Group
	logger    *slog.Logger
	metrics   *zerolog.Logger

	mu      sync.Mutex
	conns   map[uint64]*Conn
	nextID  uint64
	queue   []message
	running bool
	done    chan struct{}
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithLogger overrides the server's logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics enables per-call CSV metrics (pkg/metrics), recording one line
// per dispatched request keyed by service and method ID.
func WithMetrics(l zerolog.Logger) Option {
	return func(s *Server) { s.metrics = &l }
}

// New builds a Server over t. Call Run to start accepting connections.
func New(t transport.ServerTransport, opts ...Option) *Server {
	s := &Server{
		transport: t,
		root:      newRootGroup(),
		logger:    slog.Default(),
		conns:     make(map[uint64]*Conn),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the server's root service group, for registering services
// and group-scoped middleware before (or after) Run.
func (s *Server) Root() *Group {
	return s.root
}

// Run starts the background accept/dispatch loop and blocks until Shutdown
// is called.
func (s *Server) Run() error {
	if err := s.transport.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	s.running = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	for {
		s.mu.Lock()
		running := s.running
		s.mu.Unlock()
		if !running {
			break
		}

		s.transport.Poll()
		s.acceptNew()
		s.drainQueue()
		s.pruneClosed()

		time.Sleep(pollInterval)
	}

	close(s.done)
	return nil
}

// Shutdown stops the accept loop, closes the listener, waits for the loop to
// exit, then closes every open connection.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	done := s.done
	s.mu.Unlock()

	_ = s.transport.Close()
	<-done

	s.mu.Lock()
	conns := s.conns
	s.conns = make(map[uint64]*Conn)
	s.mu.Unlock()

	// Closing is fanned out: a slow or wedged transport.Connection.Close on
	// one connection must not delay tearing down the rest.
	var g errgroup.Group
	for _, c := range conns {
		g.Go(func() error {
			c.streams.CloseAll(transport.ErrClosed)
			if err := c.conn.Close(); err != nil {
				s.logger.Error("rpc server: error closing connection during shutdown",
					slog.Uint64("connection_id", c.id), slog.String("connection_log_id", c.logID), slog.Any("error", err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Server) acceptNew() {
	for {
		conn, err := s.transport.Accept()
		if err != nil {
			s.logger.Error("rpc server: accept failed", slog.Any("error", err))
			return
		}
		if conn == nil {
			return
		}

		s.mu.Lock()
		s.nextID++
		id := s.nextID
		entry := &Conn{id: id, logID: shortuuid.New(), conn: conn, streams: rpcstream.NewRegistry()}
		s.conns[id] = entry
		s.mu.Unlock()

		s.logger.Info("rpc server: connection accepted",
			slog.Uint64("connection_id", id), slog.String("connection_log_id", entry.logID))

		conn.SetMessageHandler(func(data []byte) { s.enqueue(id, data) })
		conn.SetFailHandler(func(err error) { s.closeConn(id, err) })
		conn.SetCloseHandler(func() { s.closeConn(id, nil) })
	}
}

func (s *Server) enqueue(connID uint64, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, message{connID: connID, data: data})
}

func (s *Server) drainQueue() {
	s.mu.Lock()
	queue := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, m := range queue {
		s.dispatch(m)
	}
}

func (s *Server) closeConn(connID uint64, cause error) {
	s.mu.Lock()
	entry, ok := s.conns[connID]
	s.mu.Unlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	entry.closed = true
	entry.mu.Unlock()

	if cause != nil {
		entry.streams.CloseAll(cause)
		s.logger.Error("rpc server: connection failed",
			slog.Uint64("connection_id", connID), slog.String("connection_log_id", entry.logID), slog.Any("error", cause))
	} else {
		entry.streams.CloseAll(transport.ErrClosed)
	}
}

func (s *Server) pruneClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range s.conns {
		entry.mu.Lock()
		closed := entry.closed
		entry.mu.Unlock()
		if closed {
			delete(s.conns, id)
		}
	}
}

func (s *Server) connByID(id uint64) (*Conn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.conns[id]
	return e, ok
}

func (s *Server) dispatch(m message) {
	entry, ok := s.connByID(m.connID)
	if !ok {
		return
	}

	r := wire.NewReader(m.data)
	kind, err := frame.ReadPrefix(r)
	if err != nil {
		s.logger.Error("rpc server: unrecognized frame prefix", slog.Any("error", err))
		return
	}

	switch kind {
	case frame.KindRequest:
		s.dispatchRequest(entry, r)
	case frame.KindStreamMessage:
		s.dispatchStreamMessage(entry, r)
	case frame.KindStreamClose:
		s.dispatchStreamClose(entry, r)
	default:
		s.logger.Error("rpc server: unexpected frame kind", slog.Int("kind", int(kind)))
	}
}

func (s *Server) dispatchRequest(entry *Conn, r *wire.Reader) {
	hdr, err := frame.ReadRequestHeader(r)
	if err != nil {
		s.logger.Error("rpc server: malformed request frame", slog.Any("error", err))
		return
	}

	handler, owner, ok := s.root.idx.lookup(hdr.ServiceID)
	if !ok {
		s.writeError(entry, hdr.RequestID, "Service not found")
		return
	}

	resp, callErr := s.invoke(handler, owner.middlewareStack(), entry, hdr, r)
	if s.metrics != nil {
		metrics.CountInboundCall(*s.metrics, time.Now(), hdr.ServiceID, hdr.MethodID, callErr)
	}
	if resp != nil {
		_ = entry.conn.Send(resp)
	}
}

// invoke runs the method's generated Handler with panic recovery at the
// dispatch boundary, mirroring the teacher's HTTP handler panic-recovery
// idiom. It returns the response frame to send, and
// the call's outcome for metrics (nil on success).
func (s *Server) invoke(h Handler, mw []Middleware, conn *Conn, hdr frame.RequestHeader, r *wire.Reader) ([]byte, error) {
	var resp []byte
	var err error

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("rpc server: handler panicked", slog.Any("panic", rec))
				err = fmt.Errorf("internal error: %v", rec)
				resp, _ = frame.WriteResponse(hdr.RequestID, frame.ResponseKindError,
					wire.StringBitSize("internal error"), func(w *wire.Writer) error {
						return wire.WriteString(w, "internal error")
					})
			}
		}()
		resp, err = h(hdr.Context, hdr.MethodID, hdr.RequestID, conn, mw, r)
	}()

	if err != nil {
		s.logger.Error("rpc server: handler failed", slog.Any("error", err))
		callErr := err
		resp, err = frame.WriteResponse(hdr.RequestID, frame.ResponseKindError,
			wire.StringBitSize(callErr.Error()), func(w *wire.Writer) error {
				return wire.WriteString(w, callErr.Error())
			})
		if err != nil {
			return nil, callErr
		}
		return resp, callErr
	}
	return resp, nil
}

func (s *Server) writeError(entry *Conn, requestID uint64, msg string) {
	resp, err := frame.WriteResponse(requestID, frame.ResponseKindError,
		wire.StringBitSize(msg), func(w *wire.Writer) error {
			return wire.WriteString(w, msg)
		})
	if err != nil {
		s.logger.Error("rpc server: failed to encode error response", slog.Any("error", err))
		return
	}
	_ = entry.conn.Send(resp)
}
