package netserve

import (
	"context"
	"os"

	"github.com/NetPo4ki/go-supervise/supervise"
)

// UnixServer accepts connections on a UNIX domain socket and runs one
// handler task per connection. It satisfies stack.Resource.
type UnixServer struct {
	path string
	s    streamServer
}

// NewUnixServer configures a server for the socket at path.
func NewUnixServer(path string, handler Handler, opts ...supervise.Option) *UnixServer {
	return &UnixServer{
		path: path,
		s:    streamServer{network: "unix", addr: path, handler: handler, opts: opts},
	}
}

// Open binds the socket and starts accepting connections. A stale
// socket file left behind by a crashed process is removed first.
func (u *UnixServer) Open(ctx context.Context) error {
	if fi, err := os.Stat(u.path); err == nil && fi.Mode()&os.ModeSocket != 0 {
		_ = os.Remove(u.path)
	}
	return u.s.open(ctx)
}

// Close stops the listener, cancels the acceptor and every
// per-connection task, and waits for all of them to finish. The
// socket file is removed by the listener.
func (u *UnixServer) Close(ctx context.Context) error { return u.s.close(ctx) }

// Path returns the socket path.
func (u *UnixServer) Path() string { return u.path }
