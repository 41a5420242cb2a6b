// Package unix implements transport.ClientTransport and
// transport.ServerTransport over Unix domain sockets, sharing the same
// length-delimited framer as the tcp package.
package unix

import (
	"net"

	"github.com/tzrikka/nexrpc/pkg/transport"
	"github.com/tzrikka/nexrpc/pkg/transport/internal/streamconn"
)

// ClientTransport dials the socket at path on each Connect call.
type ClientTransport struct {
	path string
}

func NewClientTransport(path string) *ClientTransport {
	return &ClientTransport{path: path}
}

func (t *ClientTransport) Connect() (transport.Connection, error) {
	nc, err := net.Dial("unix", t.path)
	if err != nil {
		return nil, err
	}
	return streamconn.New(nc), nil
}

func (t *ClientTransport) Shutdown() {}

// ServerTransport accepts connections on the socket at path.
type ServerTransport struct {
	*streamconn.Listener
}

func NewServerTransport(path string) *ServerTransport {
	return &ServerTransport{Listener: streamconn.NewListener("unix", path)}
}
