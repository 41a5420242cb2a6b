package streamconn

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/tzrikka/nexrpc/pkg/transport"
)

// Conn adapts a net.Conn stream into a [transport.Connection] by running a
// background read loop that frames inbound bytes and dispatches them to the
// registered message handler.
type Conn struct {
	nc net.Conn

	mu        sync.Mutex
	onMessage transport.MessageHandler
	onFail    transport.FailHandler
	onClose   transport.CloseHandler
	closed    bool
}

// New starts the read loop over nc and returns the wrapping Conn.
func New(nc net.Conn) *Conn {
	c := &Conn{nc: nc}
	go c.readLoop()
	return c
}

func (c *Conn) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.ErrClosed
	}
	return writeFrame(c.nc, msg)
}

func (c *Conn) SetMessageHandler(fn transport.MessageHandler) {
	c.mu.Lock()
	c.onMessage = fn
	c.mu.Unlock()
}

func (c *Conn) SetFailHandler(fn transport.FailHandler) {
	c.mu.Lock()
	c.onFail = fn
	c.mu.Unlock()
}

func (c *Conn) SetCloseHandler(fn transport.CloseHandler) {
	c.mu.Lock()
	c.onClose = fn
	c.mu.Unlock()
}

func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.nc.Close()
}

func (c *Conn) readLoop() {
	for {
		msg, err := readFrame(c.nc)
		if err != nil {
			c.mu.Lock()
			localClose := c.closed
			c.closed = true
			onFail, onClose := c.onFail, c.onClose
			c.mu.Unlock()

			if localClose {
				// Close() already tore the connection down; no callback fires
				// for a disconnect the local side initiated.
				return
			}
			if errors.Is(err, io.EOF) {
				if onClose != nil {
					onClose()
				}
			} else if onFail != nil {
				onFail(err)
			}
			return
		}

		c.mu.Lock()
		onMessage := c.onMessage
		c.mu.Unlock()
		if onMessage != nil {
			onMessage(msg)
		}
	}
}
