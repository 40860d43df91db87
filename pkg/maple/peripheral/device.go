package peripheral

import (
	"github.com/golang/glog"

	"github.com/maplebus/maple.go/pkg/maple"
)

// Device is one emulated peripheral: an address, a device info block,
// the functions behind it, and for a main device the subs plugged into
// its expansion slots.
type Device struct {
	addr      byte
	info      maple.DeviceInfo
	version   string
	functions []Function
	subs      []*Device
	connected bool
}

// New creates a device answering at addr: AddrMain for a main device,
// a single sub slot bit for a sub. The info block's Functions and
// FunctionData fields are filled as functions are added; version is
// returned by extended info requests.
func New(addr byte, info maple.DeviceInfo, version string) *Device {
	return &Device{addr: addr, info: info, version: version}
}

// AddFunction registers fn and advertises it in the info block. The
// first three functions get their definition words into the function
// data area, in registration order.
func (d *Device) AddFunction(fn Function) {
	d.info.Functions |= fn.Code()
	if len(d.functions) < len(d.info.FunctionData) {
		d.info.FunctionData[len(d.functions)] = fn.Definition()
	}
	d.functions = append(d.functions, fn)
}

// AddSub plugs sub into a main device. Its presence bit shows in every
// response sender address from then on.
func (d *Device) AddSub(sub *Device) {
	d.subs = append(d.subs, sub)
}

// Address returns the device address without port bits.
func (d *Device) Address() byte {
	return d.addr
}

// Connected reports whether the host has reached the device since the
// last reset.
func (d *Device) Connected() bool {
	return d.connected
}

// Reset restores power-on state on the device, its functions and subs.
func (d *Device) Reset() {
	d.connected = false
	for _, fn := range d.functions {
		fn.Reset()
	}
	for _, sub := range d.subs {
		sub.Reset()
	}
}

// Dispense routes in to this device or one of its subs and returns the
// response to write, or nil when the packet is addressed elsewhere.
func (d *Device) Dispense(in *maple.Packet) *maple.Packet {
	if !in.IsValid() {
		return nil
	}
	portBits := in.RecipientAddr & maple.AddrPortMask
	local := in.RecipientAddr &^ maple.AddrPortMask
	target := d
	if local != d.addr {
		target = nil
		for _, sub := range d.subs {
			if sub.addr == local {
				target = sub
				break
			}
		}
		if target == nil {
			return nil
		}
	}
	resp := target.answer(in)
	if resp == nil {
		return nil
	}
	resp.RecipientAddr = in.SenderAddr
	resp.SenderAddr = target.senderAddr(portBits)
	d.connected = true
	return resp
}

// senderAddr is the address the device answers with: its own bits, the
// port bits mirrored from the request, and the presence bit of every
// sub.
func (d *Device) senderAddr(portBits byte) byte {
	addr := d.addr | portBits
	for _, sub := range d.subs {
		addr |= sub.addr
	}
	return addr
}

func (d *Device) answer(in *maple.Packet) *maple.Packet {
	switch in.Command {
	case maple.CmdDeviceInfoRequest:
		return maple.NewPacket(maple.CmdRespDeviceInfo, 0, 0, d.info.Build())
	case maple.CmdExtDeviceInfoRequest:
		return maple.NewPacket(maple.CmdRespExtDeviceInfo, 0, 0, d.info.BuildExt(d.version))
	case maple.CmdReset:
		for _, fn := range d.functions {
			fn.Reset()
		}
		return maple.NewPacket(maple.CmdRespAck, 0, 0, nil)
	case maple.CmdShutdown:
		return maple.NewPacket(maple.CmdRespAck, 0, 0, nil)
	case maple.CmdGetCondition, maple.CmdGetMemoryInfo, maple.CmdBlockRead,
		maple.CmdBlockWrite, maple.CmdGetLastError, maple.CmdSetCondition:
		return d.functionAnswer(in)
	}
	glog.V(2).Infof("peripheral %02x: unknown command %02x", d.addr, in.Command)
	return maple.NewPacket(maple.CmdRespUnknownCommand, 0, 0, nil)
}

func (d *Device) functionAnswer(in *maple.Packet) *maple.Packet {
	if len(in.Payload) == 0 {
		return maple.NewPacket(maple.CmdRespFnUnsupported, 0, 0, nil)
	}
	for _, fn := range d.functions {
		if fn.Code() != in.Payload[0] {
			continue
		}
		if resp := fn.HandlePacket(in); resp != nil {
			return resp
		}
		break
	}
	return maple.NewPacket(maple.CmdRespFnUnsupported, 0, 0, nil)
}
