// Package device reads events from Linux joystick devices.
package device

import "io"

// Kind tells what input an event reports.
type Kind uint8

// Event kinds.
const (
	KindButton Kind = 0x01
	KindAxis   Kind = 0x02
)

// Event is one decoded state change. Init events replay the current
// state of every input right after the device is opened.
type Event struct {
	TimeMs uint32
	Kind   Kind
	Init   bool
	Index  int
	Value  int16
}

// Pressed reads a button event value.
func (e Event) Pressed() bool {
	return e.Value != 0
}

// Device represents an opened joystick.
type Device interface {
	io.Closer
	// Index returns the index of the device on the system.
	Index() int
	// Name returns the name of the device.
	Name() string
	// AxisCount returns the number of axes on the device.
	AxisCount() int
	// ButtonCount returns the number of buttons on the device.
	ButtonCount() int
	// ReadEvent reads one event from the device.
	ReadEvent() (Event, error)
}
