package host

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// MaxQueueSize bounds the bytes a stream may buffer ahead of
// processing. A command that would grow the queue past it is dropped
// whole and reported; commands already terminated stay queued.
const MaxQueueSize = 2048

// Character classes of the stream protocol.
const (
	whitespaceChars = "\r\n\t "
	eolChars        = "\r\n"
	backspaceChars  = "\x08\x7f"
)

// StreamParser splits one byte stream into commands. AddChars feeds
// it from the stream's reader goroutine; Process hands at most one
// complete command per call to the parser claiming its first byte, on
// the loop goroutine. The two sides share one lock.
//
// A BinaryStartChar escape suspends all interpretation, so terminator
// and backspace bytes inside binary data pass through intact.
type StreamParser struct {
	w        io.Writer
	helpChar byte

	mu         sync.Mutex
	queue      []byte
	endMarkers []int
	parsers    []CommandParser
	lastIsEol  bool
	overflow   bool
	// Binary escape bookkeeping. binParsed counts header bytes
	// consumed and is -1 outside an escape.
	binParsed int
	binSize   int
	binLeft   int
}

// NewStreamParser creates a parser responding over w. A command
// consisting of helpChar prints usage for every registered parser.
func NewStreamParser(w io.Writer, helpChar byte) *StreamParser {
	return &StreamParser{w: w, helpChar: helpChar, binParsed: -1}
}

// AddCommandParser registers a handler. Routing tries parsers in
// registration order.
func (p *StreamParser) AddCommandParser(parser CommandParser) {
	p.mu.Lock()
	p.parsers = append(p.parsers, parser)
	p.mu.Unlock()
}

// AddChars consumes received bytes. Safe from any goroutine.
func (p *StreamParser) AddChars(chars []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range chars {
		p.addChar(c)
	}
}

func (p *StreamParser) addChar(c byte) {
	if len(p.queue) >= MaxQueueSize && c != 0x08 {
		p.overflow = true
	}
	switch {
	case p.binParsed >= 0:
		p.binParsed++
		p.binLeft--
		switch p.binParsed {
		case 1:
			p.binSize = int(c) << 8
		case 2:
			p.binSize |= int(c)
			p.binLeft = p.binSize
		}
		if p.binLeft == 0 {
			p.binParsed = -1
		}
		p.push(c)
	case c == BinaryStartChar:
		p.binParsed, p.binSize, p.binLeft = 0, 0, 2
		p.push(c)
		p.lastIsEol = false
	case p.overflow:
		if isEol(c) {
			fmt.Fprintf(p.w, "Error: Command input overflow %d\n", len(p.queue))
			if len(p.endMarkers) == 0 {
				p.queue = p.queue[:0]
			} else {
				// Drop only the command that overflowed; the complete
				// ones ahead of it still get processed.
				p.queue = p.queue[:p.endMarkers[len(p.endMarkers)-1]+1]
			}
			p.overflow = false
			p.lastIsEol = true
		} else {
			p.lastIsEol = false
		}
	case isBackspace(c):
		// A terminator seals the command; backspace cannot reach past
		// it.
		if !p.lastIsEol && len(p.queue) > 0 {
			p.queue = p.queue[:len(p.queue)-1]
		}
	case isEol(c):
		if !p.lastIsEol {
			p.endMarkers = append(p.endMarkers, len(p.queue))
			p.queue = append(p.queue, 0)
			p.lastIsEol = true
		}
	default:
		p.queue = append(p.queue, c)
		p.lastIsEol = false
	}
}

func (p *StreamParser) push(c byte) {
	if !p.overflow {
		p.queue = append(p.queue, c)
	}
}

// Process handles at most one buffered command and returns. Empty
// commands are discarded silently; a command no parser claims gets an
// error response.
func (p *StreamParser) Process() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.endMarkers) == 0 {
		return
	}
	pos := p.endMarkers[0]
	cmd := p.queue[:pos]
	for len(cmd) > 0 && isWhitespace(cmd[0]) {
		cmd = cmd[1:]
	}
	if len(cmd) > 0 {
		if cmd[0] == p.helpChar {
			p.printHelp()
		} else if parser := p.route(cmd[0]); parser != nil {
			parser.Submit(cmd)
		} else {
			io.WriteString(p.w, "Error: Invalid command\n")
		}
	}
	p.endMarkers = p.endMarkers[1:]
	p.queue = append(p.queue[:0], p.queue[pos+1:]...)
	for i := range p.endMarkers {
		p.endMarkers[i] -= pos + 1
	}
}

// NumBufferedChars reports the bytes held in the queue.
func (p *StreamParser) NumBufferedChars() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// NumBufferedCmds reports the complete commands awaiting Process.
func (p *StreamParser) NumBufferedCmds() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.endMarkers)
}

func (p *StreamParser) route(c byte) CommandParser {
	for _, parser := range p.parsers {
		if strings.IndexByte(parser.CommandChars(), c) >= 0 {
			return parser
		}
	}
	return nil
}

func (p *StreamParser) printHelp() {
	io.WriteString(p.w, "HELP\n"+
		"Command structure: [whitespace]<command-char>[command]<\\n>\n"+
		"\n"+
		"COMMANDS:\n")
	fmt.Fprintf(p.w, "%c: Prints this help\n", p.helpChar)
	for _, parser := range p.parsers {
		parser.PrintHelp()
	}
}

func isWhitespace(c byte) bool { return strings.IndexByte(whitespaceChars, c) >= 0 }
func isEol(c byte) bool        { return strings.IndexByte(eolChars, c) >= 0 }
func isBackspace(c byte) bool  { return strings.IndexByte(backspaceChars, c) >= 0 }
