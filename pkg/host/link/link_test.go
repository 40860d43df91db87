package link

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func TestListenSpecErrors(t *testing.T) {
	_, err := Listen("udp://:1")
	require.Error(t, err)
	_, err = Listen("serial:///dev/null?baud=bogus")
	require.Error(t, err)
	_, err = Listen("/no/such/device")
	require.Error(t, err)
}

func TestTCPRoundTrip(t *testing.T) {
	lis, err := Listen("tcp://127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()
	tcp, ok := lis.(*TCPListener)
	require.True(t, ok)

	client, err := net.Dial("tcp", tcp.Addr().String())
	require.NoError(t, err)
	defer client.Close()
	conn, err := lis.Accept()
	require.NoError(t, err)
	defer conn.Close()

	_, err = client.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf[:n]))

	_, err = conn.Write([]byte("pong"))
	require.NoError(t, err)
	n, err = client.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "pong", string(buf[:n]))

	require.NoError(t, lis.Close())
	_, err = lis.Accept()
	require.Error(t, err)
}

func TestWebsocketRoundTrip(t *testing.T) {
	lis, err := Listen("ws://127.0.0.1:0/maple")
	require.NoError(t, err)
	ws, ok := lis.(*WebsocketListener)
	require.True(t, ok)

	url := "ws://" + ws.Addr().String() + "/maple"
	client, err := websocket.Dial(url, "", "http://127.0.0.1/")
	require.NoError(t, err)
	defer client.Close()
	conn, err := lis.Accept()
	require.NoError(t, err)

	_, err = client.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 16)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf[:n]))

	_, err = conn.Write([]byte("pong"))
	require.NoError(t, err)
	n, err = client.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "pong", string(buf[:n]))

	require.NoError(t, conn.Close())
	require.NoError(t, lis.Close())
	_, err = lis.Accept()
	require.Equal(t, ErrClosed, err)
}
