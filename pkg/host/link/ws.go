package link

import (
	"io"
	"net"
	"net/http"
	"sync"

	"golang.org/x/net/websocket"
)

// WebsocketListener accepts sessions over websocket connections.
type WebsocketListener struct {
	server    *http.Server
	listener  net.Listener
	conns     chan *wsConn
	done      chan struct{}
	closeOnce sync.Once
}

// wsConn keeps the websocket handler parked until the session closes the
// connection, as the websocket package tears the connection down when its
// handler returns.
type wsConn struct {
	*websocket.Conn
	done chan struct{}
	once sync.Once
}

func (c *wsConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// ListenWebsocket serves websocket sessions on addr under path.
func ListenWebsocket(addr, path string) (*WebsocketListener, error) {
	if path == "" {
		path = "/"
	}
	nl, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	l := &WebsocketListener{
		listener: nl,
		conns:    make(chan *wsConn),
		done:     make(chan struct{}),
	}
	mux := http.NewServeMux()
	mux.Handle(path, websocket.Handler(l.serve))
	l.server = &http.Server{Handler: mux}
	go l.server.Serve(nl)
	return l, nil
}

func (l *WebsocketListener) serve(conn *websocket.Conn) {
	conn.PayloadType = websocket.BinaryFrame
	c := &wsConn{Conn: conn, done: make(chan struct{})}
	select {
	case l.conns <- c:
		<-c.done
	case <-l.done:
	}
}

// Addr reports the bound address.
func (l *WebsocketListener) Addr() net.Addr {
	return l.listener.Addr()
}

// Accept waits for the next websocket connection.
func (l *WebsocketListener) Accept() (io.ReadWriteCloser, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.done:
		return nil, ErrClosed
	}
}

// Close stops the listener and drops pending connections.
func (l *WebsocketListener) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return l.server.Close()
}
