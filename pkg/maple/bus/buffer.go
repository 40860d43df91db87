package bus

import (
	"github.com/maplebus/maple.go/pkg/maple"
)

// NsPerLoop is the duration of one delay loop spin in the transmit
// unit, two thirds of a bit time. Chunk headers express inter-chunk
// delays in these loops.
const NsPerLoop = maple.NsPerBit * 2 / 3

// ReEntryMarker prefixes every chunk after the first in a chunked
// transfer. All ones is never a legal bit count header, so the
// transmit unit can tell the two apart.
const ReEntryMarker uint32 = 0xffffffff

// endSeq encodes the end-of-packet line pattern as halfword steps of
// (line state << 8 | hold count): with clock B held low, clock A
// pulses twice, then both lines return high.
var endSeq = [7]uint16{0x0201, 0x0001, 0x0201, 0x0001, 0x0201, 0x0301, 0x0300}

// Chunking splits a write into delayed chunks so slow peripherals can
// drain their receive buffers mid packet. The zero value disables it.
type Chunking struct {
	// Words per chunk, counting the frame word.
	Words uint32
	// DelayUs pauses the line before each chunk after the first. It
	// must stay below 26ms so the loop count fits its header field.
	DelayUs uint32
}

func (c Chunking) active(totalWords uint32) bool {
	return c.DelayUs > 0 && c.Words > 0 && c.Words < totalWords
}

func flipWordBytes(w uint32) uint32 {
	return w<<24 | w<<8&0x00ff0000 | w>>8&0x0000ff00 | w>>24
}

func swapU16(v uint16) uint16 {
	return v<<8 | v>>8
}

// assembleTx builds the word sequence handed to the transmit unit: a
// byte-flipped bit count, the frame word, the payload, the checksum
// and the end sequence. Chunked transfers restate bit counts per chunk
// and carry the checksum bits only in the final one. The returned
// extra time covers the inter-chunk delays for deadline accounting.
func assembleTx(pkt *maple.Packet, c Chunking) (words []uint32, extraTimeUs uint64) {
	frameWord := pkt.Frame.Word()
	crc := pkt.Checksum()
	totalWords := uint32(1 + len(pkt.Payload))

	if !c.active(totalWords) {
		words = make([]uint32, 0, totalWords+5)
		words = append(words, flipWordBytes(pkt.TotalBits()), frameWord)
		words = append(words, pkt.Payload...)
		return appendEndSequence(words, crc), 0
	}

	loops := swapU16(uint16(uint64(c.DelayUs) * 1000 / NsPerLoop))
	chunks := (totalWords - 1) / c.Words
	words = make([]uint32, 0, totalWords+5+2*chunks)
	words = append(words, flipWordBytes(c.Words*32), frameWord)
	words = append(words, pkt.Payload[:c.Words-1]...)

	remaining := pkt.Payload[c.Words-1:]
	for len(remaining) > 0 {
		n := uint32(len(remaining))
		if n > c.Words {
			n = c.Words
		}
		bits := uint16(n * 32)
		if n == uint32(len(remaining)) {
			bits += 8 // checksum rides the final chunk
		}
		words = append(words, ReEntryMarker,
			uint32(loops)|uint32(swapU16(bits))<<16)
		words = append(words, remaining[:n]...)
		remaining = remaining[n:]
		extraTimeUs += uint64(c.DelayUs) + 1
	}
	return appendEndSequence(words, crc), extraTimeUs
}

func appendEndSequence(words []uint32, crc byte) []uint32 {
	return append(words,
		uint32(crc)|uint32(endSeq[0])<<16,
		uint32(endSeq[1])|uint32(endSeq[2])<<16,
		uint32(endSeq[3])|uint32(endSeq[4])<<16,
		uint32(endSeq[5])|uint32(endSeq[6])<<16)
}

// TxTransfer is a transmit buffer decoded back into its parts, for
// backends that interpret the buffer in software.
type TxTransfer struct {
	// Chunks hold the packet words in wire order; the first chunk
	// begins with the frame word. Unchunked transfers have one chunk.
	Chunks [][]uint32
	// DelayLoops is the spin count before each chunk after the first.
	DelayLoops uint16
	Checksum   byte
}

// Words flattens the chunks back into frame-first packet words.
func (t *TxTransfer) Words() []uint32 {
	if len(t.Chunks) == 1 {
		return t.Chunks[0]
	}
	var words []uint32
	for _, c := range t.Chunks {
		words = append(words, c...)
	}
	return words
}

// DecodeTxBuffer parses an assembled transmit buffer. It returns false
// for anything assembleTx could not have produced.
func DecodeTxBuffer(buf []uint32) (*TxTransfer, bool) {
	if len(buf) < 6 {
		return nil, false
	}
	t := &TxTransfer{}
	bits := flipWordBytes(buf[0])
	rest := buf[1:]
	for {
		final := bits%32 == 8
		n := bits / 32
		if n == 0 || uint32(len(rest)) < n {
			return nil, false
		}
		t.Chunks = append(t.Chunks, rest[:n])
		rest = rest[n:]
		if final {
			break
		}
		// A further chunk follows its re-entry marker and header.
		if len(rest) < 2 || rest[0] != ReEntryMarker {
			return nil, false
		}
		t.DelayLoops = swapU16(uint16(rest[1]))
		bits = uint32(swapU16(uint16(rest[1] >> 16)))
		rest = rest[2:]
	}
	if len(rest) != 4 {
		return nil, false
	}
	t.Checksum = byte(rest[0])
	if rest[0]>>16 != uint32(endSeq[0]) {
		return nil, false
	}
	return t, true
}
