package peripheral

import (
	"github.com/maplebus/maple.go/pkg/maple"
	"github.com/maplebus/maple.go/pkg/maple/screen"
)

// Screen is the LCD function: it lands frame block writes in a
// screen.Data for whatever display drains it.
type Screen struct {
	data *screen.Data
}

// NewScreen creates a screen function drawing into data.
func NewScreen(data *screen.Data) *Screen {
	return &Screen{data: data}
}

// Code implements Function.
func (s *Screen) Code() uint32 {
	return maple.FnScreen
}

// Definition implements Function. The word carries the frame length in
// words minus one.
func (s *Screen) Definition() uint32 {
	return uint32(screen.Words-1) << 16
}

// HandlePacket implements Function.
func (s *Screen) HandlePacket(in *maple.Packet) *maple.Packet {
	if in.Command != maple.CmdBlockWrite || len(in.Payload) != 2+screen.Words {
		return nil
	}
	s.data.SetData(in.Payload[2:], 0)
	return maple.NewPacket(maple.CmdRespAck, 0, 0, nil)
}

// Reset implements Function.
func (s *Screen) Reset() {
	s.data.ResetToDefault()
}
