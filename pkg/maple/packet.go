package maple

// Bit timing. The bus sustains a minimum edge period of 300ns, and each
// bit takes two edges.
const (
	MinClockPeriodNs = 300
	NsPerBit         = 2 * MinClockPeriodNs
)

// MaxPayloadWords is the largest payload the frame length byte can describe.
const MaxPayloadWords = 255

// Frame is the leading word of every packet: command code, recipient
// and sender addresses, and payload length in words.
type Frame struct {
	Command       byte
	RecipientAddr byte
	SenderAddr    byte
	Length        byte
}

// Word packs the frame into its wire word, command in the most
// significant byte.
func (f Frame) Word() uint32 {
	return uint32(f.Command)<<24 | uint32(f.RecipientAddr)<<16 |
		uint32(f.SenderAddr)<<8 | uint32(f.Length)
}

// FrameFromWord unpacks a wire word into a Frame.
func FrameFromWord(w uint32) Frame {
	return Frame{
		Command:       byte(w >> 24),
		RecipientAddr: byte(w >> 16),
		SenderAddr:    byte(w >> 8),
		Length:        byte(w),
	}
}

// Packet is a frame plus its payload words.
type Packet struct {
	Frame
	Payload []uint32
}

// NewPacket builds a packet with Length derived from the payload.
// The packet takes ownership of the payload slice.
func NewPacket(command, recipient, sender byte, payload []uint32) *Packet {
	return &Packet{
		Frame: Frame{
			Command:       command,
			RecipientAddr: recipient,
			SenderAddr:    sender,
			Length:        byte(len(payload)),
		},
		Payload: payload,
	}
}

// IsValid reports whether the frame length agrees with the payload.
func (p *Packet) IsValid() bool {
	return p != nil &&
		len(p.Payload) <= MaxPayloadWords &&
		int(p.Length) == len(p.Payload)
}

// TakePayload moves the payload out of the packet, leaving it empty.
// Use when handing the words to another owner so no aliasing remains.
func (p *Packet) TakePayload() []uint32 {
	words := p.Payload
	p.Payload = nil
	return words
}

// TotalBits is the on-wire size: frame word, payload words and the
// trailing checksum byte.
func (p *Packet) TotalBits() uint32 {
	return 32*uint32(1+len(p.Payload)) + 8
}

// TxDurationNs is the nominal time to clock the packet out.
func (p *Packet) TxDurationNs() uint64 {
	return uint64(p.TotalBits()) * NsPerBit
}

func xorWordBytes(crc byte, w uint32) byte {
	return crc ^ byte(w) ^ byte(w>>8) ^ byte(w>>16) ^ byte(w>>24)
}

// Checksum computes the 8-bit packet checksum: a byte-wise XOR across
// the frame word and every payload word.
func (p *Packet) Checksum() byte {
	crc := xorWordBytes(0, p.Frame.Word())
	for _, w := range p.Payload {
		crc = xorWordBytes(crc, w)
	}
	return crc
}

// ChecksumWords computes the same XOR checksum over raw words, as
// captured off the wire before any framing is interpreted.
func ChecksumWords(words []uint32) byte {
	var crc byte
	for _, w := range words {
		crc = xorWordBytes(crc, w)
	}
	return crc
}
