package host

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/maplebus/maple.go/pkg/maple"
	"github.com/maplebus/maple.go/pkg/maple/node"
	"github.com/maplebus/maple.go/pkg/maple/sched"
	"github.com/maplebus/maple.go/pkg/maple/screen"
)

// InterfaceVersion is reported to XV queries; flycast checks it
// against the protocol revision it speaks.
const InterfaceVersion = "1.00"

// Player bundles what flycast commands reach on one port: the address
// the host transmits from, the endpoint external packets go out
// through, the node watching the port and the screen kept for its
// display.
type Player struct {
	HostAddr byte
	Endpoint *sched.EndpointScheduler
	Node     *node.MainNode
	Screen   *screen.Data
}

// FlycastParser accepts commands from a flycast emulator: packets to
// put on the bus, written as hex words or in a binary escape, plus a
// small set of subcommands for screens, identity and echo control.
// Every command draws exactly one response line.
type FlycastParser struct {
	// Echo, when set, receives the XH echo toggle.
	Echo func(on bool)

	w       io.Writer
	serial  string
	players []*Player
}

// NewFlycastParser creates the parser responding over w. The serial
// answers XS queries.
func NewFlycastParser(w io.Writer, serial string, players []*Player) *FlycastParser {
	return &FlycastParser{w: w, serial: serial, players: players}
}

// CommandChars implements CommandParser. X is reserved for commands
// from a flycast emulator.
func (p *FlycastParser) CommandChars() string {
	return "X"
}

// PrintHelp implements CommandParser.
func (p *FlycastParser) PrintHelp() {
	io.WriteString(p.w, "X: commands from a flycast emulator\n")
}

// Submit implements CommandParser. The X routed here is followed by
// either a subcommand or a packet to put on the bus.
func (p *FlycastParser) Submit(cmd []byte) {
	if len(cmd) == 0 {
		return
	}
	line := cmd[1:]
	for len(line) > 0 && isWhitespace(line[0]) {
		line = line[1:]
	}
	if len(line) == 0 || line[0] != BinaryStartChar {
		// Binary data keeps its trailing bytes; anything else sheds
		// them.
		for len(line) > 0 && isWhitespace(line[len(line)-1]) {
			line = line[:len(line)-1]
		}
	}
	if len(line) > 0 {
		switch line[0] {
		case '-':
			p.resetScreens(line[1:])
			return
		case 'P':
			p.selectScreen(line[1:])
			return
		case 'S':
			fmt.Fprintf(p.w, "%s\n", p.serial)
			return
		case '?':
			p.nodeSummary(line[1:])
			return
		case 'V':
			fmt.Fprintf(p.w, "%s\n", InterfaceVersion)
			return
		case 'H':
			p.setEcho(line[1:])
			return
		case BinaryStartChar:
			p.submitBinary(line[1:])
			return
		}
	}
	p.submitHex(line)
}

// resetScreens serves X-: reset every player's screen and report the
// count, or X-N to reset one and report 1, 0 when N is out of range.
func (p *FlycastParser) resetScreens(arg []byte) {
	idx, ok := parseIndex(arg)
	if !ok || idx < 0 {
		for _, player := range p.players {
			player.Screen.ResetToDefault()
		}
		fmt.Fprintf(p.w, "%d\n", len(p.players))
		return
	}
	if idx < len(p.players) {
		p.players[idx].Screen.ResetToDefault()
		io.WriteString(p.w, "1\n")
		return
	}
	io.WriteString(p.w, "0\n")
}

// selectScreen serves XP <player> <screen>: load a stock frame into a
// player's screen.
func (p *FlycastParser) selectScreen(arg []byte) {
	in, out := -1, -1
	fmt.Sscanf(string(arg), "%d %d", &in, &out)
	if in >= 0 && in < len(p.players) && out >= 0 && out < screen.NumDefaultScreens {
		p.players[in].Screen.SetToDefault(out)
		io.WriteString(p.w, "1\n")
		return
	}
	io.WriteString(p.w, "0\n")
}

// nodeSummary serves X?N with the device summary of node N.
func (p *FlycastParser) nodeSummary(arg []byte) {
	idx, ok := parseIndex(arg)
	if !ok || idx < 0 || idx >= len(p.players) {
		io.WriteString(p.w, "NULL\n")
		return
	}
	fmt.Fprintf(p.w, "%s\n", p.players[idx].Node.Summary())
}

// setEcho serves XH1 and XH0.
func (p *FlycastParser) setEcho(arg []byte) {
	on, ok := parseIndex(arg)
	switch {
	case ok && on == 1:
		p.echo(true)
		io.WriteString(p.w, "ECHO ON\n")
	case ok && on == 0:
		p.echo(false)
		io.WriteString(p.w, "ECHO OFF\n")
	default:
		io.WriteString(p.w, "*failed invalid data\n")
	}
}

func (p *FlycastParser) echo(on bool) {
	if p.Echo != nil {
		p.Echo(on)
	}
}

// submitBinary reads BinaryStartChar framing: a big endian length,
// four frame bytes, then big endian payload words.
func (p *FlycastParser) submitBinary(rest []byte) {
	if len(rest) < 2 {
		io.WriteString(p.w, "*failed missing data\n")
		return
	}
	claimed := int(rest[0])<<8 | int(rest[1])
	data := rest[2:]
	if claimed < 4 || len(data) < 4 {
		io.WriteString(p.w, "*failed missing data\n")
		return
	}
	frame := maple.Frame{
		Command:       data[0],
		RecipientAddr: data[1],
		SenderAddr:    data[2],
		Length:        data[3],
	}
	claimed -= 4
	data = data[4:]
	if claimed%4 != 0 || claimed > len(data) {
		io.WriteString(p.w, "*failed missing data\n")
		return
	}
	p.send(frame, maple.BytesToWords(data[:claimed]), true)
}

// submitHex reads a frame word and payload words as groups of eight
// hex digits. Bytes that are not hex digits separate the groups.
func (p *FlycastParser) submitHex(line []byte) {
	first, digits, pos := parseHexWord(line, 0)
	if digits != 8 {
		io.WriteString(p.w, "*failed missing data\n")
		return
	}
	var payload []uint32
	for pos < len(line) {
		word, digits, next := parseHexWord(line, pos)
		if digits != 8 && digits != 0 {
			// A trailing partial word means the line was cut short.
			io.WriteString(p.w, "*failed missing data\n")
			return
		}
		if digits == 8 {
			payload = append(payload, word)
		}
		pos = next
	}
	p.send(maple.FrameFromWord(first), payload, false)
}

func (p *FlycastParser) send(f maple.Frame, payload []uint32, binary bool) {
	pkt := &maple.Packet{Frame: f, Payload: payload}
	if !pkt.IsValid() {
		io.WriteString(p.w, "*failed packet invalid\n")
		return
	}
	player := p.resolveSender(pkt)
	if player == nil {
		io.WriteString(p.w, "*failed invalid sender\n")
		return
	}
	player.Endpoint.Add(&sched.Transmission{
		Target:         p.echoTransmitter(binary),
		Packet:         pkt,
		ExpectResponse: true,
	})
}

// resolveSender picks the player whose address the packet carries.
// With a single player the packet is taken regardless and its
// addresses rewritten to that player's port.
func (p *FlycastParser) resolveSender(pkt *maple.Packet) *Player {
	if len(p.players) == 1 {
		player := p.players[0]
		pkt.SenderAddr = player.HostAddr
		pkt.RecipientAddr = pkt.RecipientAddr&^maple.AddrPortMask | player.HostAddr
		return player
	}
	for _, player := range p.players {
		if pkt.SenderAddr == player.HostAddr {
			return player
		}
	}
	return nil
}

// echoTransmitter reports a transmission's outcome back over the
// stream, in the same form the request used.
func (p *FlycastParser) echoTransmitter(binary bool) sched.Transmitter {
	onComplete := p.echoText
	if binary {
		onComplete = p.echoBinary
	}
	return &sched.TransmitterFuncs{
		OnFailed:   p.echoFailed,
		OnComplete: onComplete,
	}
}

func (p *FlycastParser) echoFailed(writeFailed, readFailed bool, tx *sched.Transmission) {
	if writeFailed {
		io.WriteString(p.w, "*failed write\n")
		return
	}
	io.WriteString(p.w, "*failed read\n")
}

func (p *FlycastParser) echoText(response *maple.Packet, tx *sched.Transmission) {
	fmt.Fprintf(p.w, "%02X %02X %02X %02X",
		response.Command, response.RecipientAddr, response.SenderAddr, response.Length)
	for _, word := range response.Payload {
		fmt.Fprintf(p.w, " %08X", word)
	}
	io.WriteString(p.w, "\n")
}

func (p *FlycastParser) echoBinary(response *maple.Packet, tx *sched.Transmission) {
	size := 4 + 4*len(response.Payload)
	buf := make([]byte, 0, 4+size)
	buf = append(buf, BinaryStartChar, byte(size>>8), byte(size))
	buf = append(buf, response.Command, response.RecipientAddr, response.SenderAddr, response.Length)
	buf = append(buf, maple.WordsToBytes(response.Payload)...)
	buf = append(buf, '\n')
	p.w.Write(buf)
}

// parseHexWord accumulates up to eight hex digits from line starting
// at pos, most significant nibble first, skipping bytes that are not
// hex digits. It returns the word, the digit count and the position
// parsing stopped at.
func parseHexWord(line []byte, pos int) (word uint32, digits, next int) {
	for next = pos; next < len(line) && digits < 8; next++ {
		var v uint32
		switch c := line[next]; {
		case c >= '0' && c <= '9':
			v = uint32(c - '0')
		case c >= 'a' && c <= 'f':
			v = uint32(c-'a') + 0xa
		case c >= 'A' && c <= 'F':
			v = uint32(c-'A') + 0xa
		default:
			continue
		}
		word |= v << uint((7-digits)*4)
		digits++
	}
	return
}

// parseIndex reads an optionally signed integer, honoring 0x and
// leading zero base prefixes.
func parseIndex(arg []byte) (int, bool) {
	s := strings.TrimSpace(string(arg))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, false
	}
	return int(v), true
}
