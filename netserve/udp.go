package netserve

import (
	"context"
	"errors"
	"net"

	"go.uber.org/multierr"

	"github.com/NetPo4ki/go-supervise/supervise"
)

// UDPServer owns a packet socket and a single handler task that serves
// it. It satisfies stack.Resource.
type UDPServer struct {
	addr    string
	handler PacketHandler
	opts    []supervise.Option

	conn net.PacketConn
	task *supervise.Single
}

// NewUDPServer configures a server for addr as understood by
// net.ListenPacket.
func NewUDPServer(addr string, handler PacketHandler, opts ...supervise.Option) *UDPServer {
	return &UDPServer{addr: addr, handler: handler, opts: opts}
}

// Open binds the socket and starts the handler task.
func (u *UDPServer) Open(ctx context.Context) error {
	conn, err := (&net.ListenConfig{}).ListenPacket(ctx, "udp", u.addr)
	if err != nil {
		return err
	}
	u.conn = conn
	u.task = supervise.Supervise(ctx, func(ctx context.Context) error {
		stop := context.AfterFunc(ctx, func() { conn.Close() })
		defer stop()
		err := u.handler(ctx, conn)
		if ctx.Err() != nil {
			// The socket was closed under the handler to unblock it.
			return ctx.Err()
		}
		return err
	}, u.opts...)
	return nil
}

// Close cancels the handler task, waits for it, and shuts the socket.
func (u *UDPServer) Close(ctx context.Context) error {
	if u.conn == nil {
		return nil
	}
	var errs error
	if err := u.task.Close(ctx); err != nil && !supervise.IsCancellation(err) {
		errs = multierr.Append(errs, err)
	}
	if err := u.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = multierr.Append(errs, err)
	}
	return errs
}

// LocalAddr returns the effective bind address after Open, nil before.
func (u *UDPServer) LocalAddr() net.Addr {
	if u.conn == nil {
		return nil
	}
	return u.conn.LocalAddr()
}
