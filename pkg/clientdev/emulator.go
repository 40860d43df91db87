// Package clientdev assembles the client side of the bus: an emulated
// main device on one port, answering a host the way a real controller
// with a memory unit does.
package clientdev

import (
	"github.com/golang/glog"

	fx "github.com/maplebus/maple.go/pkg/framework"
	"github.com/maplebus/maple.go/pkg/maple"
	"github.com/maplebus/maple.go/pkg/maple/bus"
	"github.com/maplebus/maple.go/pkg/maple/peripheral"
)

// DefaultReadTimeoutUs is how long one listen for host traffic lasts
// before the device assumes the host is gone.
const DefaultReadTimeoutUs uint64 = 1000000

// Emulator runs one emulated main device on a bus in follower mode:
// listen for a host packet, dispense the response, write it, listen
// again. A garbled read while connected asks the host to resend;
// other read failures reset the device.
type Emulator struct {
	// ReadTimeoutUs bounds one listen cycle.
	ReadTimeoutUs uint64
	// Chunking splits response writes for hosts with small buffers.
	Chunking bus.Chunking

	bus   *bus.Bus
	clock bus.Clock
	dev   *peripheral.Device

	lastSender byte
	lastOut    *maple.Packet
	sent       bool
}

// NewEmulator creates an emulator for dev over an assembled engine.
// The clock must be the one the engine runs on.
func NewEmulator(b *bus.Bus, clock bus.Clock, dev *peripheral.Device) *Emulator {
	return &Emulator{
		ReadTimeoutUs: DefaultReadTimeoutUs,
		bus:           b,
		clock:         clock,
		dev:           dev,
	}
}

// Device returns the emulated main device.
func (e *Emulator) Device() *peripheral.Device {
	return e.dev
}

// AddToLoop implements LoopAdder.
func (e *Emulator) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.PrLvBus, e)
}

// Control implements Controller.
func (e *Emulator) Control(cc fx.ControlContext) error {
	status := e.bus.ProcessEvents(e.clock.NowUs())
	switch status.Phase {
	case bus.PhaseReadComplete:
		e.answer(status.ReadBuffer)
	case bus.PhaseReadFailed:
		if status.FailureReason == bus.FailureCRCInvalid && e.dev.Connected() {
			// Garbled request: ask the host to repeat it.
			portBits := e.lastSender & maple.AddrPortMask
			e.writeOut(maple.NewPacket(maple.CmdRespRequestResend,
				e.lastSender, e.dev.Address()|portBits, nil), false)
		} else {
			e.dev.Reset()
		}
	case bus.PhaseWriteFailed:
		glog.V(2).Infof("clientdev: response write failed: %v", status.FailureReason)
	}
	if !e.bus.Busy() {
		e.listen()
	}
	return nil
}

func (e *Emulator) answer(words []uint32) {
	in := capturePacket(words)
	e.lastSender = in.SenderAddr
	if in.Command == maple.CmdRespRequestResend {
		// The host missed the previous response; play it back.
		if e.sent {
			e.writeOut(e.lastOut, false)
		}
		return
	}
	out := e.dev.Dispense(in)
	if out == nil {
		// Addressed elsewhere; the host read stalls out on its own.
		return
	}
	e.writeOut(out, true)
}

func (e *Emulator) writeOut(pkt *maple.Packet, remember bool) {
	if remember {
		e.sent = true
		e.lastOut = pkt
	}
	if !e.bus.Write(pkt, false, 0, e.Chunking) {
		glog.Errorf("clientdev: response write refused")
	}
}

func (e *Emulator) listen() {
	if !e.bus.StartRead(e.ReadTimeoutUs) {
		glog.Errorf("clientdev: listen refused")
	}
}

// capturePacket rebuilds the host packet from captured words. Words
// past the claimed length are dropped.
func capturePacket(words []uint32) *maple.Packet {
	f := maple.FrameFromWord(words[0])
	return &maple.Packet{Frame: f, Payload: words[1 : 1+int(f.Length)]}
}
