package peripheral

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maplebus/maple.go/pkg/maple"
	"github.com/maplebus/maple.go/pkg/maple/screen"
)

type testMemory struct {
	data []byte
}

func (m *testMemory) Size() uint32               { return uint32(len(m.data)) }
func (m *testMemory) LastActivityTimeUs() uint64 { return 0 }

func (m *testMemory) Read(offset, size uint32) []byte {
	if offset+size > uint32(len(m.data)) {
		return nil
	}
	return append([]byte(nil), m.data[offset:offset+size]...)
}

func (m *testMemory) Write(offset uint32, data []byte) bool {
	if offset+uint32(len(data)) > uint32(len(m.data)) {
		return false
	}
	copy(m.data[offset:], data)
	return true
}

func fnRequest(command byte, payload []uint32) *maple.Packet {
	return maple.NewPacket(command, maple.AddrMain, 0, payload)
}

func TestStorageMediaInfo(t *testing.T) {
	s := NewStorage(&testMemory{data: make([]byte, 2*BlockSize)})
	require.Equal(t, uint32(2), s.Blocks())

	resp := s.HandlePacket(fnRequest(maple.CmdGetMemoryInfo,
		[]uint32{maple.FnStorage}))
	require.NotNil(t, resp)
	require.Equal(t, maple.CmdRespDataXfer, resp.Command)
	require.Equal(t, []uint32{maple.FnStorage, 1 << 16, 0x02000401}, resp.Payload)
}

func TestStorageBlockWriteReadRoundTrip(t *testing.T) {
	s := NewStorage(&testMemory{data: make([]byte, 2*BlockSize)})

	var want []uint32
	for phase := 0; phase < WritePhases; phase++ {
		words := make([]uint32, phaseSize/4)
		for i := range words {
			words[i] = uint32(phase)<<24 | uint32(i)
		}
		want = append(want, words...)
		location := uint32(phase)<<16 | 1
		resp := s.HandlePacket(fnRequest(maple.CmdBlockWrite,
			append([]uint32{maple.FnStorage, location}, words...)))
		require.NotNil(t, resp, "phase %d", phase)
		require.Equal(t, maple.CmdRespAck, resp.Command)
	}

	resp := s.HandlePacket(fnRequest(maple.CmdBlockRead,
		[]uint32{maple.FnStorage, 1}))
	require.NotNil(t, resp)
	require.Equal(t, maple.CmdRespDataXfer, resp.Command)
	require.Equal(t, []uint32{maple.FnStorage, 1}, resp.Payload[:2])
	require.Equal(t, want, resp.Payload[2:])
}

func TestStorageRejectsBadLocations(t *testing.T) {
	s := NewStorage(&testMemory{data: make([]byte, 2*BlockSize)})

	// Block out of range, phase out of range, short write payload,
	// read of a single phase.
	require.Nil(t, s.HandlePacket(fnRequest(maple.CmdBlockRead,
		[]uint32{maple.FnStorage, 2})))
	require.Nil(t, s.HandlePacket(fnRequest(maple.CmdBlockWrite,
		append([]uint32{maple.FnStorage, 4 << 16}, make([]uint32, phaseSize/4)...))))
	require.Nil(t, s.HandlePacket(fnRequest(maple.CmdBlockWrite,
		[]uint32{maple.FnStorage, 0, 1, 2})))
	require.Nil(t, s.HandlePacket(fnRequest(maple.CmdBlockRead,
		[]uint32{maple.FnStorage, 1<<16 | 1})))
}

func TestStorageLastError(t *testing.T) {
	s := NewStorage(&testMemory{data: make([]byte, BlockSize)})
	resp := s.HandlePacket(fnRequest(maple.CmdGetLastError,
		[]uint32{maple.FnStorage, 0}))
	require.NotNil(t, resp)
	require.Equal(t, maple.CmdRespAck, resp.Command)
}

func TestScreenBlockWrite(t *testing.T) {
	data := screen.New(0)
	data.ReadData()
	s := NewScreen(data)

	frame := make([]uint32, screen.Words)
	for i := range frame {
		frame[i] = uint32(i) * 0x01010101
	}
	resp := s.HandlePacket(fnRequest(maple.CmdBlockWrite,
		append([]uint32{maple.FnScreen, 0}, frame...)))
	require.NotNil(t, resp)
	require.Equal(t, maple.CmdRespAck, resp.Command)

	require.True(t, data.NewDataAvailable())
	got := data.ReadData()
	require.Equal(t, frame, got[:])

	require.Nil(t, s.HandlePacket(fnRequest(maple.CmdBlockWrite,
		[]uint32{maple.FnScreen, 0, 1})))
}

func TestControllerConditionWords(t *testing.T) {
	c := NewController()
	c.SetCondition(Condition{
		Buttons:  0xfffb,
		RTrigger: 0xff,
		JoyX:     0x20,
		JoyY:     0xe0,
		Joy2X:    0x80,
		Joy2Y:    0x80,
	})
	resp := c.HandlePacket(fnRequest(maple.CmdGetCondition,
		[]uint32{maple.FnController}))
	require.NotNil(t, resp)
	require.Equal(t, []uint32{maple.FnController, 0xfffbff00, 0x20e08080}, resp.Payload)

	c.Reset()
	resp = c.HandlePacket(fnRequest(maple.CmdGetCondition,
		[]uint32{maple.FnController}))
	require.Equal(t, uint32(0xffff0000), resp.Payload[1])
}
