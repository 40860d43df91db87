package bus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maplebus/maple.go/pkg/maple"
)

func TestAssembleTxUnchunked(t *testing.T) {
	pkt := maple.NewPacket(maple.CmdGetCondition, 0x20, 0x00, []uint32{0x01000000})

	words, extraUs := assembleTx(pkt, Chunking{})
	require.Equal(t, uint64(0), extraUs)
	require.Equal(t, []uint32{
		0x48000000, // 72 bits, byte flipped
		0x09200001,
		0x01000000,
		0x02010029, // checksum 0x29 plus end sequence
		0x02010001,
		0x02010001,
		0x03000301,
	}, words)
}

func TestAssembleTxChunked(t *testing.T) {
	pkt := maple.NewPacket(maple.CmdBlockWrite, 0x01, 0x40, []uint32{1, 2, 3, 4, 5})

	words, extraUs := assembleTx(pkt, Chunking{Words: 3, DelayUs: 100})
	require.Equal(t, uint64(101), extraUs)
	require.Equal(t, []uint32{
		0x60000000, // first chunk: 3 words, 96 bits
		0x0c014005,
		1, 2,
		ReEntryMarker,
		0x6800fa00, // 104 bits including checksum, 250 delay loops
		3, 4, 5,
		0x02010049,
		0x02010001,
		0x02010001,
		0x03000301,
	}, words)
}

func TestAssembleTxChunkAccounting(t *testing.T) {
	pkt := maple.NewPacket(maple.CmdBlockWrite, 0x01, 0x40, []uint32{1, 2, 3, 4, 5})

	words, extraUs := assembleTx(pkt, Chunking{Words: 2, DelayUs: 100})
	require.Equal(t, uint64(202), extraUs)

	markers := 0
	for _, w := range words {
		if w == ReEntryMarker {
			markers++
		}
	}
	require.Equal(t, 2, markers)
}

func TestChunkingInactive(t *testing.T) {
	cases := []struct {
		name  string
		c     Chunking
		total uint32
	}{
		{"zero value", Chunking{}, 6},
		{"no delay", Chunking{Words: 2}, 6},
		{"covers whole packet", Chunking{Words: 6, DelayUs: 100}, 6},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.False(t, c.c.active(c.total))
		})
	}
}

func TestFlipWordBytes(t *testing.T) {
	require.Equal(t, uint32(0x78563412), flipWordBytes(0x12345678))
	require.Equal(t, uint32(0x48000000), flipWordBytes(72))
}

func TestDecodeTxBuffer(t *testing.T) {
	pkt := maple.NewPacket(maple.CmdBlockWrite, 0x01, 0x40, []uint32{1, 2, 3, 4, 5})
	packetWords := append([]uint32{pkt.Frame.Word()}, pkt.Payload...)

	cases := []struct {
		name     string
		chunking Chunking
		chunks   int
		loops    uint16
	}{
		{"unchunked", Chunking{}, 1, 0},
		{"chunked", Chunking{Words: 2, DelayUs: 100}, 3, 250},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			buf, _ := assembleTx(pkt, c.chunking)
			tr, ok := DecodeTxBuffer(buf)
			require.True(t, ok)
			require.Len(t, tr.Chunks, c.chunks)
			require.Equal(t, c.loops, tr.DelayLoops)
			require.Equal(t, packetWords, tr.Words())
			require.Equal(t, pkt.Checksum(), tr.Checksum)
		})
	}

	_, ok := DecodeTxBuffer([]uint32{1, 2, 3})
	require.False(t, ok)
}
