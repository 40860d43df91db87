package link

import (
	"io"
	"sync"

	"github.com/tarm/serial"
)

// SerialListener hands out a single serial port connection.
type SerialListener struct {
	port      *serial.Port
	conns     chan io.ReadWriteCloser
	done      chan struct{}
	closeOnce sync.Once
}

// ListenSerial opens a serial port by device name, e.g. "/dev/ttyUSB0".
func ListenSerial(name string, baud int) (*SerialListener, error) {
	port, err := serial.OpenPort(&serial.Config{Name: name, Baud: baud})
	if err != nil {
		return nil, err
	}
	l := &SerialListener{
		port:  port,
		conns: make(chan io.ReadWriteCloser, 1),
		done:  make(chan struct{}),
	}
	l.conns <- port
	return l, nil
}

// Accept returns the port on the first call, then blocks until the
// listener is closed.
func (l *SerialListener) Accept() (io.ReadWriteCloser, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.done:
		return nil, ErrClosed
	}
}

// Close releases the port.
func (l *SerialListener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.port.Close()
	})
	return err
}
