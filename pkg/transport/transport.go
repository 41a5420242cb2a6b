// Package transport defines the polymorphic contract between the RPC cores
// (client, server, stream) and a concrete carrier. The core never
// parses length prefixes itself; each transport delivers whole messages to
// the handlers it is given.
package transport

import "errors"

// ErrClosed reports use of a transport that is closed or not yet bound: the
// stream-socket transports return it from Send after Close and from Accept
// before Listen.
var ErrClosed = errors.New("transport: closed")

// MessageHandler is invoked once per whole inbound message.
type MessageHandler func(msg []byte)

// FailHandler is invoked on an abnormal disconnect. Exactly one of
// FailHandler or CloseHandler fires for any given disconnect.
type FailHandler func(err error)

// CloseHandler is invoked on an orderly disconnect.
type CloseHandler func()

// Connection is one logical duplex message channel.
type Connection interface {
	// Send transmits a single message frame. Framing below the message
	// boundary (length prefix, WebSocket binary frame, etc.) is the
	// transport's concern, not the caller's.
	Send(msg []byte) error

	SetMessageHandler(fn MessageHandler)
	SetFailHandler(fn FailHandler)
	SetCloseHandler(fn CloseHandler)

	Close() error
}

// ClientTransport establishes outbound connections.
type ClientTransport interface {
	Connect() (Connection, error)
	Shutdown()
}

// ServerTransport accepts inbound connections.
type ServerTransport interface {
	Listen() error

	// Accept is non-blocking: it returns (nil, nil) when no connection is
	// pending, rather than blocking the server's poll loop.
	Accept() (Connection, error)

	// Poll drives pending I/O without blocking; the server loop calls it
	// once per tick.
	Poll()

	Close() error
}
