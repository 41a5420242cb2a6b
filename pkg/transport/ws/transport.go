package ws

import (
	"context"

	"github.com/tzrikka/nexrpc/pkg/transport"
)

// ClientTransport dials a WebSocket URL on each Connect call. It implements
// transport.ClientTransport only: a server-side WebSocket acceptor is a
// documented gap, since the adapted RFC 6455 implementation is client-only
// by design.
type ClientTransport struct {
	url  string
	opts []DialOpt
}

// NewClientTransport prepares a transport that dials url ("ws://..." or
// "wss://...") on each Connect call, forwarding opts to Dial.
func NewClientTransport(url string, opts ...DialOpt) *ClientTransport {
	return &ClientTransport{url: url, opts: opts}
}

// Connect dials the configured URL and returns the resulting *Conn, which
// implements transport.Connection directly.
func (t *ClientTransport) Connect() (transport.Connection, error) {
	return Dial(context.Background(), t.url, t.opts...)
}

// Shutdown is a no-op: a WebSocket client transport holds no state across
// connections beyond what each Conn already owns.
func (t *ClientTransport) Shutdown() {}
