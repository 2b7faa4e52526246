package netserve

import (
	"context"
	"net"

	"github.com/NetPo4ki/go-supervise/supervise"
)

// TCPServer accepts TCP connections and runs one handler task per
// connection. It satisfies stack.Resource.
type TCPServer struct {
	s streamServer
}

// NewTCPServer configures a server for addr as understood by
// net.Listen; "127.0.0.1:0" asks the system for a free port, readable
// from Addr after Open.
func NewTCPServer(addr string, handler Handler, opts ...supervise.Option) *TCPServer {
	return &TCPServer{s: streamServer{network: "tcp", addr: addr, handler: handler, opts: opts}}
}

// Open binds the listener and starts accepting connections.
func (t *TCPServer) Open(ctx context.Context) error { return t.s.open(ctx) }

// Close stops the listener, cancels the acceptor and every
// per-connection task, and waits for all of them to finish.
func (t *TCPServer) Close(ctx context.Context) error { return t.s.close(ctx) }

// Addr returns the effective listen address after Open, nil before.
func (t *TCPServer) Addr() net.Addr { return t.s.address() }
