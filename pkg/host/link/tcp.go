package link

import (
	"io"
	"net"
)

// TCPListener accepts sessions over TCP connections.
type TCPListener struct {
	net.Listener
}

// ListenTCP starts listening on addr, e.g. ":3737".
func ListenTCP(addr string) (*TCPListener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &TCPListener{l}, nil
}

// Accept waits for the next connection.
func (l *TCPListener) Accept() (io.ReadWriteCloser, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return conn, nil
}
