package streamconn

import (
	"errors"
	"net"
	"time"

	"github.com/tzrikka/nexrpc/pkg/transport"
)

// acceptPollInterval bounds how long a single Accept attempt blocks before
// reporting "no pending connection", matching the server's 1ms poll loop
// closely enough that new connections are not starved between ticks.
const acceptPollInterval = 5 * time.Millisecond

// deadlineListener is implemented by both *net.TCPListener and
// *net.UnixListener, letting Listener share one Accept implementation.
type deadlineListener interface {
	net.Listener
	SetDeadline(t time.Time) error
}

// Listener implements transport.ServerTransport's Listen/Accept/Poll/Close
// over any net.Listener that supports a read deadline.
type Listener struct {
	network string
	addr    string
	ln      deadlineListener
}

// NewListener prepares a Listener for network ("tcp" or "unix") and addr;
// Listen() performs the actual bind.
func NewListener(network, addr string) *Listener {
	return &Listener{network: network, addr: addr}
}

// Listen binds the address. Once the Listener is bound, further calls (such
// as the one rpcserver.Server.Run makes) return nil and keep the first bind.
func (l *Listener) Listen() error {
	if l.ln != nil {
		return nil
	}
	ln, err := net.Listen(l.network, l.addr)
	if err != nil {
		return err
	}
	dl, ok := ln.(deadlineListener)
	if !ok {
		_ = ln.Close()
		return errors.New("streamconn: listener does not support deadlines")
	}
	l.ln = dl
	return nil
}

// Accept returns (nil, nil) when no connection arrived within
// acceptPollInterval, matching the non-blocking contract of
// transport.ServerTransport.
func (l *Listener) Accept() (transport.Connection, error) {
	if l.ln == nil {
		return nil, transport.ErrClosed
	}
	_ = l.ln.SetDeadline(time.Now().Add(acceptPollInterval))

	nc, err := l.ln.Accept()
	if err != nil {
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return nil, nil
		}
		return nil, err
	}
	return New(nc), nil
}

// Poll is a no-op: each accepted Conn drives its own read loop goroutine, so
// there is no shared I/O to pump here.
func (l *Listener) Poll() {}

// Addr returns the bound local address, useful when the listener was
// constructed with an ephemeral port/path. It is nil before Listen succeeds.
func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

func (l *Listener) Close() error {
	if l.ln == nil {
		return nil
	}
	return l.ln.Close()
}
