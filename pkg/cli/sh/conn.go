package sh

import (
	"bufio"
	"errors"
	"io"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/tarm/serial"
	"golang.org/x/net/websocket"

	"github.com/maplebus/maple.go/pkg/host/link"
)

// DefaultTimeout bounds the wait for the first reply line.
const DefaultTimeout = time.Second

// DialTimeout bounds TCP connection establishment.
const DialTimeout = 3 * time.Second

// ErrTimeout indicates no reply line arrived in time.
var ErrTimeout = errors.New("reply timeout")

// Conn is a line oriented connection to a host link. One command is
// outstanding at a time, replies are matched by arrival order.
type Conn struct {
	Addr string
	// Timeout overrides DefaultTimeout when non-zero.
	Timeout time.Duration

	conn  io.ReadWriteCloser
	lines chan string
	mu    sync.Mutex
}

// Dial connects a host link address. Address forms follow link.Listen
// specs, with a bare path meaning a serial port.
func Dial(addr string) (*Conn, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, err
	}
	var rwc io.ReadWriteCloser
	switch u.Scheme {
	case "tcp":
		rwc, err = net.DialTimeout("tcp", u.Host, DialTimeout)
	case "ws":
		rwc, err = websocket.Dial(addr, "", "http://localhost/")
	case "serial", "":
		name := u.Path
		if name == "" {
			name = u.Host
		}
		baud := link.DefaultBaud
		if s := u.Query().Get("baud"); s != "" {
			if baud, err = strconv.Atoi(s); err != nil {
				return nil, err
			}
		}
		rwc, err = serial.OpenPort(&serial.Config{Name: name, Baud: baud})
	default:
		return nil, errors.New("unsupported link address " + addr)
	}
	if err != nil {
		return nil, err
	}
	c := &Conn{Addr: addr, conn: rwc, lines: make(chan string, 16)}
	go c.readLoop()
	return c, nil
}

func (c *Conn) readLoop() {
	scanner := bufio.NewScanner(c.conn)
	for scanner.Scan() {
		c.lines <- scanner.Text()
	}
	close(c.lines)
}

// Do sends one command line and waits for the reply line.
func (c *Conn) Do(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.send(cmd); err != nil {
		return "", err
	}
	select {
	case line, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-time.After(c.timeout()):
		return "", ErrTimeout
	}
}

// Collect sends one command line and gathers reply lines until the
// stream stays idle.
func (c *Conn) Collect(cmd string, idle time.Duration) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.send(cmd); err != nil {
		return nil, err
	}
	var out []string
	wait := c.timeout()
	for {
		select {
		case line, ok := <-c.lines:
			if !ok {
				if len(out) > 0 {
					return out, nil
				}
				return nil, io.EOF
			}
			out = append(out, line)
			wait = idle
		case <-time.After(wait):
			if len(out) == 0 {
				return nil, ErrTimeout
			}
			return out, nil
		}
	}
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

func (c *Conn) send(cmd string) error {
	c.drain()
	_, err := io.WriteString(c.conn, cmd+"\n")
	return err
}

// drain discards stale lines left over from earlier commands.
func (c *Conn) drain() {
	for {
		select {
		case _, ok := <-c.lines:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) timeout() time.Duration {
	if c.Timeout != 0 {
		return c.Timeout
	}
	return DefaultTimeout
}
