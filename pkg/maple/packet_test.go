package maple

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrameWord(t *testing.T) {
	cases := []struct {
		name  string
		frame Frame
		word  uint32
	}{
		{"info request", Frame{Command: CmdDeviceInfoRequest, RecipientAddr: 0x20}, 0x01200000},
		{"condition reply", Frame{Command: CmdRespDataXfer, SenderAddr: 0x20, Length: 3}, 0x08002003},
		{"max length", Frame{Command: CmdBlockWrite, RecipientAddr: 0x01, SenderAddr: 0x40, Length: 0xff}, 0x0c0140ff},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.word, c.frame.Word())
			require.Equal(t, c.frame, FrameFromWord(c.word))
		})
	}
}

func TestPacketIsValid(t *testing.T) {
	p := NewPacket(CmdGetCondition, 0x20, 0x00, []uint32{FnController})
	require.True(t, p.IsValid())

	p.Length = 2
	require.False(t, p.IsValid())

	var nilPkt *Packet
	require.False(t, nilPkt.IsValid())
}

func TestPacketChecksum(t *testing.T) {
	p := NewPacket(CmdGetCondition, 0x20, 0x00, []uint32{0x01000000})
	require.Equal(t, byte(0x29), p.Checksum())

	// Any single bit flip must change an XOR checksum.
	p.Payload[0] ^= 1 << 7
	require.NotEqual(t, byte(0x29), p.Checksum())

	words := append([]uint32{p.Frame.Word()}, p.Payload...)
	require.Equal(t, p.Checksum(), ChecksumWords(words))
}

func TestPacketTxTiming(t *testing.T) {
	p := NewPacket(CmdDeviceInfoRequest, 0x20, 0x00, nil)
	require.Equal(t, uint32(40), p.TotalBits())
	require.Equal(t, uint64(40*NsPerBit), p.TxDurationNs())

	p = NewPacket(CmdBlockWrite, 0x20, 0x00, make([]uint32, 10))
	require.Equal(t, uint32(32*11+8), p.TotalBits())
}

func TestTakePayload(t *testing.T) {
	p := NewPacket(CmdSetCondition, 0x20, 0x00, []uint32{1, 2, 3})
	words := p.TakePayload()
	require.Equal(t, []uint32{1, 2, 3}, words)
	require.Nil(t, p.Payload)
}

func TestAddresses(t *testing.T) {
	require.Equal(t, byte(0x00), PortAddr(0))
	require.Equal(t, byte(0x40), PortAddr(1))
	require.Equal(t, byte(0xc0), PortAddr(3))
	require.Equal(t, 2, PortIndex(0x80|AddrMain))

	require.True(t, IsMain(0x20))
	require.False(t, IsMain(0x01))

	require.Equal(t, byte(0x41), SubAddr(1, 0))
	require.Equal(t, byte(0x50), SubAddr(1, 4))
	require.Equal(t, []int{0, 2}, SubSlots(0x25))
	require.Nil(t, SubSlots(0x20))
}
