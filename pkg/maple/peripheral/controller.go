package peripheral

import (
	"sync"

	"github.com/maplebus/maple.go/pkg/maple"
)

// controllerDefinition describes the stock digital and analog inputs.
const controllerDefinition uint32 = 0x000f06fe

// Condition is the reported state of a standard controller. Buttons
// are active low; a set bit means released.
type Condition struct {
	Buttons  uint16
	RTrigger byte
	LTrigger byte
	JoyX     byte
	JoyY     byte
	Joy2X    byte
	Joy2Y    byte
}

// Condition button bits. A cleared bit means the button is held.
const (
	BtnC     uint16 = 0x0001
	BtnB     uint16 = 0x0002
	BtnA     uint16 = 0x0004
	BtnStart uint16 = 0x0008
	BtnUp    uint16 = 0x0010
	BtnDown  uint16 = 0x0020
	BtnLeft  uint16 = 0x0040
	BtnRight uint16 = 0x0080
	BtnZ     uint16 = 0x0100
	BtnY     uint16 = 0x0200
	BtnX     uint16 = 0x0400
	BtnD     uint16 = 0x0800
)

// Neutral is the all-released, centered controller condition.
var Neutral = Condition{
	Buttons: 0xffff,
	JoyX:    0x80,
	JoyY:    0x80,
	Joy2X:   0x80,
	Joy2Y:   0x80,
}

// Words packs the condition into its two wire words: buttons and
// triggers, then the four stick axes.
func (c Condition) Words() [2]uint32 {
	return [2]uint32{
		uint32(c.Buttons)<<16 | uint32(c.RTrigger)<<8 | uint32(c.LTrigger),
		uint32(c.JoyX)<<24 | uint32(c.JoyY)<<16 | uint32(c.Joy2X)<<8 | uint32(c.Joy2Y),
	}
}

// Controller is the standard controller function: it answers condition
// polls from a state some input source keeps current.
type Controller struct {
	mu   sync.Mutex
	cond Condition
}

// NewController creates a controller reporting the neutral condition.
func NewController() *Controller {
	return &Controller{cond: Neutral}
}

// SetCondition replaces the reported state. Safe from any goroutine.
func (c *Controller) SetCondition(cond Condition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cond = cond
}

// Code implements Function.
func (c *Controller) Code() uint32 {
	return maple.FnController
}

// Definition implements Function.
func (c *Controller) Definition() uint32 {
	return controllerDefinition
}

// HandlePacket implements Function.
func (c *Controller) HandlePacket(in *maple.Packet) *maple.Packet {
	if in.Command != maple.CmdGetCondition {
		return nil
	}
	c.mu.Lock()
	w := c.cond.Words()
	c.mu.Unlock()
	return maple.NewPacket(maple.CmdRespDataXfer, 0, 0,
		[]uint32{maple.FnController, w[0], w[1]})
}

// Reset implements Function.
func (c *Controller) Reset() {
	c.SetCondition(Neutral)
}
