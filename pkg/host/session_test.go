package host

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionProcessesCommands(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	sess := NewSession(server)
	cp := &captureParser{chars: "X"}
	sess.Parser().AddCommandParser(cp)
	go sess.Run(context.Background())

	_, err := client.Write([]byte("Xhello\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return sess.Parser().NumBufferedCmds() == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, sess.Control(nil))
	require.Equal(t, []string{"Xhello"}, cp.submitted)
}

func TestSessionEcho(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	sess := NewSession(server)
	sess.SetEcho(true)
	go sess.Run(context.Background())

	_, err := client.Write([]byte("abc\n"))
	require.NoError(t, err)
	echoed := make([]byte, 4)
	_, err = io.ReadFull(client, echoed)
	require.NoError(t, err)
	require.Equal(t, []byte("abc\n"), echoed)
}

func TestSessionStopsWithContext(t *testing.T) {
	_, server := net.Pipe()
	sess := NewSession(server)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("session did not stop")
	}
}

type testListener struct {
	conns chan io.ReadWriteCloser
	done  chan struct{}
}

func newTestListener() *testListener {
	return &testListener{
		conns: make(chan io.ReadWriteCloser),
		done:  make(chan struct{}),
	}
}

func (l *testListener) Accept() (io.ReadWriteCloser, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.done:
		return nil, io.EOF
	}
}

func (l *testListener) Close() error {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	return nil
}

func TestServerSessionLifecycle(t *testing.T) {
	lis := newTestListener()
	cp := &captureParser{chars: "X"}
	srv := NewServer(lis, func(sess *Session) {
		sess.Parser().AddCommandParser(cp)
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx)

	client, server := net.Pipe()
	defer client.Close()
	lis.conns <- server

	_, err := client.Write([]byte("Xping\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		sessions := srv.snapshot()
		return len(sessions) == 1 && sessions[0].Parser().NumBufferedCmds() == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, srv.Control(nil))
	require.Equal(t, []string{"Xping"}, cp.submitted)

	client.Close()
	require.Eventually(t, func() bool {
		return len(srv.snapshot()) == 0
	}, time.Second, time.Millisecond)
}
