// Package tcp implements transport.ClientTransport and
// transport.ServerTransport over plain TCP, using the shared
// length-delimited framer in streamconn.
package tcp

import (
	"net"

	"github.com/tzrikka/nexrpc/pkg/transport"
	"github.com/tzrikka/nexrpc/pkg/transport/internal/streamconn"
)

// ClientTransport dials addr on each Connect call.
type ClientTransport struct {
	addr string
}

func NewClientTransport(addr string) *ClientTransport {
	return &ClientTransport{addr: addr}
}

func (t *ClientTransport) Connect() (transport.Connection, error) {
	nc, err := net.Dial("tcp", t.addr)
	if err != nil {
		return nil, err
	}
	return streamconn.New(nc), nil
}

// Shutdown is a no-op: a TCP client transport holds no state across
// connections.
func (t *ClientTransport) Shutdown() {}

// ServerTransport accepts TCP connections on addr.
type ServerTransport struct {
	*streamconn.Listener
}

func NewServerTransport(addr string) *ServerTransport {
	return &ServerTransport{Listener: streamconn.NewListener("tcp", addr)}
}
