package ws

import (
	"bufio"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/tzrikka/nexrpc/pkg/transport"
)

// Conn is an open RFC 6455 WebSocket client connection. It implements
// transport.Connection directly: binary WebSocket messages become whole
// inbound messages, and message boundaries are already preserved by the
// WebSocket framing, so no additional length-prefixing is needed.
type Conn struct {
	// Initialized before the handshake.
	logger  *slog.Logger
	client  *http.Client
	headers http.Header

	// Initialized after the handshake.
	bufio  *bufio.ReadWriter
	writer chan internalMessage
	closer io.ReadWriteCloser

	// No need for synchronization: value changes are possible only in
	// one direction (false to true), and are always done by a single
	// function, which is guaranteed to run in a single goroutine.
	closeReceived bool

	closeSent   bool
	closeSentMu sync.RWMutex

	// Only for the purpose of minimizing memory allocations (safely),
	// not for state management or memory sharing of any kind.
	readBuf  [8]byte
	writeBuf [8]byte
	closeBuf [maxControlPayload]byte

	// For unit-testing only.
	nonceGen io.Reader

	mu        sync.Mutex
	onMessage transport.MessageHandler
	onFail    transport.FailHandler
	onClose   transport.CloseHandler
}

// internalMessage is used to synchronize concurrent calls to [Conn.writeFrame].
type internalMessage struct {
	Opcode Opcode
	Data   []byte
	err    chan<- error
}

// SetMessageHandler installs the callback invoked for every inbound binary
// data message. Non-binary messages (text, control frames already handled
// internally) never reach it.
func (c *Conn) SetMessageHandler(fn transport.MessageHandler) {
	c.mu.Lock()
	c.onMessage = fn
	c.mu.Unlock()
}

// SetFailHandler installs the fail callback. The read loop reports every
// disconnect, read errors included, through the close handler, so this
// callback is never invoked by Conn.
func (c *Conn) SetFailHandler(fn transport.FailHandler) {
	c.mu.Lock()
	c.onFail = fn
	c.mu.Unlock()
}

// SetCloseHandler installs the callback invoked once the read loop exits,
// whether the closing handshake completed normally or the peer vanished.
func (c *Conn) SetCloseHandler(fn transport.CloseHandler) {
	c.mu.Lock()
	c.onClose = fn
	c.mu.Unlock()
}

// Send transmits msg as a single WebSocket binary data message, blocking
// until it has been written to the wire (or failed).
func (c *Conn) Send(msg []byte) error {
	return <-c.sendBinaryMessage(msg)
}

// Close performs the WebSocket closing handshake with the normal-closure
// status code, satisfying transport.Connection.
func (c *Conn) Close() error {
	c.closeWithStatus(StatusNormalClosure)
	return nil
}

// readMessages runs as a [Conn] goroutine, to call [Conn.readMessage]
// continuously, in order to process control and data frames, and dispatch
// binary data messages to the installed message handler.
func (c *Conn) readMessages() {
	msg := c.readMessage()
	for msg != nil {
		if msg.Opcode == OpcodeBinary {
			c.mu.Lock()
			onMessage := c.onMessage
			c.mu.Unlock()
			if onMessage != nil {
				onMessage(msg.Data)
			}
		}
		msg = c.readMessage()
	}

	c.mu.Lock()
	onClose := c.onClose
	c.mu.Unlock()
	if onClose != nil {
		onClose()
	}
}

// writeMessages runs as a [Conn] goroutine, to synchronize concurrent
// calls to [Conn.writeFrame]. For the time being, this package doesn't
// need to implement frame fragmentation in outbound messages.
func (c *Conn) writeMessages() {
	for msg := range c.writer {
		msg.err <- c.writeFrame(msg.Opcode, msg.Data)
		// The message's error channel can be used at most once.
		close(msg.err)
	}
}
