package host

import (
	"context"
	"io"
	"sync"

	"github.com/golang/glog"

	fx "github.com/maplebus/maple.go/pkg/framework"
)

// HelpChar prints command usage on interactive sessions.
const HelpChar byte = 'h'

// Listener accepts command streams from one transport.
type Listener interface {
	io.Closer
	// Accept blocks until the next stream arrives.
	Accept() (io.ReadWriteCloser, error)
}

// lockedWriter serializes responses; parsers write from the loop
// goroutine while overflow reports come from the stream reader.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

// Session binds one command stream. Its Run side pumps received bytes
// into the stream parser; its Control side processes one command per
// loop iteration.
type Session struct {
	conn   io.ReadWriteCloser
	out    *lockedWriter
	parser *StreamParser

	mu   sync.Mutex
	echo bool
}

// NewSession wraps conn. Register command parsers on Parser before
// the stream starts; they respond through Writer.
func NewSession(conn io.ReadWriteCloser) *Session {
	s := &Session{conn: conn}
	s.out = &lockedWriter{w: conn}
	s.parser = NewStreamParser(s.out, HelpChar)
	return s
}

// Writer returns the shared response writer. Safe from any goroutine.
func (s *Session) Writer() io.Writer {
	return s.out
}

// Parser returns the stream parser of this session.
func (s *Session) Parser() *StreamParser {
	return s.parser
}

// SetEcho turns echoing of received bytes on or off.
func (s *Session) SetEcho(on bool) {
	s.mu.Lock()
	s.echo = on
	s.mu.Unlock()
}

func (s *Session) echoOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.echo
}

// Run implements Runnable. It returns when the stream ends.
func (s *Session) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, s.conn, s.readLoop)
}

func (s *Session) readLoop() error {
	buf := make([]byte, 512)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			if s.echoOn() {
				s.out.Write(buf[:n])
			}
			s.parser.AddChars(buf[:n])
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Control implements Controller.
func (s *Session) Control(cc fx.ControlContext) error {
	s.parser.Process()
	return nil
}

// AddToLoop implements LoopAdder for a standalone session over a
// fixed stream, a direct serial link typically.
func (s *Session) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvLink, s)
}

// Server runs one session per accepted stream. Sessions come and go
// with their streams while the server stays on the loop.
type Server struct {
	// Setup wires a new session's command parsers before any of its
	// bytes flow.
	Setup func(*Session)

	listener Listener

	mu       sync.Mutex
	sessions []*Session
}

// NewServer serves sessions accepted from l.
func NewServer(l Listener, setup func(*Session)) *Server {
	return &Server{Setup: setup, listener: l}
}

// AddToLoop implements LoopAdder.
func (s *Server) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvLink, s)
}

// Control implements Controller. Every live session processes at most
// one command per iteration.
func (s *Server) Control(cc fx.ControlContext) error {
	for _, sess := range s.snapshot() {
		sess.parser.Process()
	}
	return nil
}

// Run implements Runnable. It accepts streams until the listener
// closes.
func (s *Server) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, s.listener, func() error {
		return s.acceptLoop(ctx)
	})
}

func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return err
		}
		sess := NewSession(conn)
		if s.Setup != nil {
			s.Setup(sess)
		}
		s.track(sess)
		go s.runSession(ctx, sess)
	}
}

func (s *Server) runSession(ctx context.Context, sess *Session) {
	defer s.untrack(sess)
	if err := sess.Run(ctx); err != nil && err != context.Canceled {
		glog.Errorf("host session: %v", err)
	}
}

func (s *Server) track(sess *Session) {
	s.mu.Lock()
	s.sessions = append(s.sessions, sess)
	s.mu.Unlock()
}

func (s *Server) untrack(sess *Session) {
	s.mu.Lock()
	for i, cur := range s.sessions {
		if cur == sess {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
}

func (s *Server) snapshot() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Session(nil), s.sessions...)
}
