package relay

import (
	"context"
	"io"
	"net"
)

// Connection represents one end of a relayed byte stream
type Connection interface {
	io.ReadWriteCloser
}

// Dialer opens outbound connections to destinations.
// *net.Dialer satisfies it.
type Dialer interface {
	// DialContext connects to address on the named network
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}
