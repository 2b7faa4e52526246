// Package netserve provides socket servers that run as scoped
// resources: per-connection handlers live in a task pool, and every
// handler has finished before Close returns.
package netserve

import (
	"context"
	"errors"
	"net"

	"go.uber.org/multierr"

	"github.com/NetPo4ki/go-supervise/supervise"
)

// Handler serves one established connection. The connection is closed
// when the handler returns, and also when the handler's context is
// cancelled, so a handler blocked on I/O unblocks during teardown.
type Handler func(ctx context.Context, conn net.Conn) error

// PacketHandler serves a packet endpoint until its context is
// cancelled.
type PacketHandler func(ctx context.Context, conn net.PacketConn) error

// streamServer is the shared listener/pool mechanics behind TCPServer
// and UnixServer.
type streamServer struct {
	network string
	addr    string
	handler Handler
	opts    []supervise.Option

	ln     net.Listener
	pool   *supervise.Pool
	accept *supervise.Single
}

func (s *streamServer) open(ctx context.Context) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, s.network, s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.pool = supervise.NewPool(ctx, s.opts...)
	s.accept = supervise.Supervise(ctx, s.acceptLoop, s.opts...)
	return nil
}

func (s *streamServer) acceptLoop(ctx context.Context) error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		if _, err := s.pool.Spawn(func(ctx context.Context) error {
			defer conn.Close()
			stop := context.AfterFunc(ctx, func() { conn.Close() })
			defer stop()
			err := s.handler(ctx, conn)
			if ctx.Err() != nil {
				// The conn was closed under the handler to unblock it.
				return ctx.Err()
			}
			return err
		}); err != nil {
			// Pool already drained; the server is shutting down.
			conn.Close()
			return nil
		}
	}
}

func (s *streamServer) close(ctx context.Context) error {
	if s.ln == nil {
		return nil
	}
	var errs error
	if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		errs = multierr.Append(errs, err)
	}
	if err := s.accept.Close(ctx); err != nil && !supervise.IsCancellation(err) {
		errs = multierr.Append(errs, err)
	}
	if err := s.pool.Close(ctx); err != nil && !supervise.IsCancellation(err) {
		errs = multierr.Append(errs, err)
	}
	return errs
}

func (s *streamServer) address() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}
