package netserve

import (
	"bufio"
	"context"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NetPo4ki/go-supervise/stack"
	"github.com/NetPo4ki/go-supervise/supervise"
)

// echoLines writes every received line back to the peer.
func echoLines(_ context.Context, conn net.Conn) error {
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		if _, err := conn.Write(append(sc.Bytes(), '\n')); err != nil {
			return err
		}
	}
	return sc.Err()
}

func TestTCPServerEcho(t *testing.T) {
	t.Parallel()
	srv := NewTCPServer("127.0.0.1:0", echoLines)
	require.NoError(t, srv.Open(context.Background()))
	defer func() { require.NoError(t, srv.Close(context.Background())) }()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("ping\n"))
	require.NoError(t, err)
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ping\n", line)
}

func TestTCPServerCloseCancelsBlockedHandlers(t *testing.T) {
	t.Parallel()
	srv := NewTCPServer("127.0.0.1:0", func(ctx context.Context, conn net.Conn) error {
		// Block on the peer without ever writing.
		_, err := io.ReadAll(conn)
		if err != nil && ctx.Err() == nil {
			return err
		}
		return ctx.Err()
	})
	require.NoError(t, srv.Open(context.Background()))

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	closed := make(chan error, 1)
	go func() { closed <- srv.Close(context.Background()) }()
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not unblock the connection handler")
	}
}

func TestUnixServerEcho(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "echo.sock")
	srv := NewUnixServer(path, echoLines)
	require.NoError(t, srv.Open(context.Background()))
	defer func() { require.NoError(t, srv.Close(context.Background())) }()

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("ping\n"))
	require.NoError(t, err)
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ping\n", line)
}

func TestUDPServerEcho(t *testing.T) {
	t.Parallel()
	srv := NewUDPServer("127.0.0.1:0", func(ctx context.Context, conn net.PacketConn) error {
		buf := make([]byte, 1024)
		for {
			n, addr, err := conn.ReadFrom(buf)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return err
			}
			if _, err := conn.WriteTo(buf[:n], addr); err != nil {
				return err
			}
		}
	})
	require.NoError(t, srv.Open(context.Background()))
	defer func() { require.NoError(t, srv.Close(context.Background())) }()

	conn, err := net.Dial("udp", srv.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 16)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))
}

func TestServerOnStack(t *testing.T) {
	t.Parallel()
	s := stack.New()
	ctx := context.Background()

	pool := supervise.NewPool(ctx)
	s.Push(pool.Close)

	srv := NewTCPServer("127.0.0.1:0", echoLines)
	require.NoError(t, s.Open(ctx, srv))
	require.NotNil(t, srv.Addr())

	require.NoError(t, s.Close(ctx))
	// The server is down once the stack unwound.
	_, err := net.DialTimeout("tcp", srv.Addr().String(), 100*time.Millisecond)
	assert.Error(t, err)
}
