// Package link provides byte stream transports for host sessions:
// TCP sockets, websockets and serial ports, selected by an address spec.
package link

import (
	"errors"
	"io"
	"net/url"
	"strconv"
)

// DefaultBaud is used for serial links when the spec does not name one.
const DefaultBaud = 115200

// ErrClosed is returned by Accept after the listener is closed.
var ErrClosed = errors.New("listener closed")

// Listener accepts byte stream connections from external programs.
type Listener interface {
	io.Closer
	Accept() (io.ReadWriteCloser, error)
}

// Listen creates a listener from an address spec:
//
//	tcp://:3737                      TCP socket
//	ws://:3737/maple                 websocket endpoint
//	serial:///dev/ttyUSB0?baud=9600  serial port
//	/dev/ttyUSB0                     serial port at DefaultBaud
func Listen(spec string) (Listener, error) {
	u, err := url.Parse(spec)
	if err != nil {
		return nil, err
	}
	name := u.Path
	if name == "" {
		name = u.Host
	}
	switch u.Scheme {
	case "tcp":
		return ListenTCP(u.Host)
	case "ws":
		return ListenWebsocket(u.Host, u.Path)
	case "serial":
		baud := DefaultBaud
		if s := u.Query().Get("baud"); s != "" {
			if baud, err = strconv.Atoi(s); err != nil {
				return nil, err
			}
		}
		return ListenSerial(name, baud)
	case "":
		return ListenSerial(name, DefaultBaud)
	}
	return nil, errors.New("unsupported link spec " + spec)
}
