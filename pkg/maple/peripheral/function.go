package peripheral

import "github.com/maplebus/maple.go/pkg/maple"

// Function is one capability of an emulated device, selected by the
// function code in the first payload word of function commands.
type Function interface {
	// Code returns the function bit advertised in device info.
	Code() uint32
	// Definition returns the function definition word for device info.
	Definition() uint32
	// HandlePacket answers in, already verified to name this function.
	// A nil return means the command is not one of this function's.
	// Addresses on the response are filled in by the device.
	HandlePacket(in *maple.Packet) *maple.Packet
	// Reset restores power-on state.
	Reset()
}
