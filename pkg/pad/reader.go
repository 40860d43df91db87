// Package pad feeds the emulated controller from a Linux joystick.
// Stick, trigger and button changes become the condition the
// controller function reports when the host polls.
package pad

import (
	"context"
	"log"
	"time"

	fx "github.com/maplebus/maple.go/pkg/framework"
	"github.com/maplebus/maple.go/pkg/maple/peripheral"
	"github.com/maplebus/maple.go/pkg/pad/device"
)

// Joystick axis numbers in the common gamepad layout.
const (
	axisStickX   = 0
	axisStickY   = 1
	axisLTrigger = 2
	axisStick2X  = 3
	axisStick2Y  = 4
	axisRTrigger = 5
	axisHatX     = 6
	axisHatY     = 7
)

// buttonBits maps joystick button numbers in the common gamepad
// layout to condition bits.
var buttonBits = map[int]uint16{
	0: peripheral.BtnA,
	1: peripheral.BtnB,
	2: peripheral.BtnX,
	3: peripheral.BtnY,
	4: peripheral.BtnC,
	5: peripheral.BtnZ,
	7: peripheral.BtnStart,
}

// Reader keeps the reported condition of an emulated controller in
// sync with a joystick device. The device is opened on demand and
// reopened after it disappears; while none is present the controller
// reports the neutral condition.
type Reader struct {
	Pad         *peripheral.Controller
	DeviceIndex int
	Verbose     bool

	eventCh     chan device.Event
	device      device.Device
	deviceTimer <-chan time.Time

	cond peripheral.Condition
}

// NewReader creates a Reader feeding pad.
func NewReader(pad *peripheral.Controller) *Reader {
	return &Reader{
		Pad:         pad,
		DeviceIndex: defaultConfig.DeviceIndex,
		Verbose:     defaultConfig.Verbose,
		cond:        peripheral.Neutral,
	}
}

// AddToLoop implements LoopAdder.
func (r *Reader) AddToLoop(loop *fx.Loop) {
	loop.AddRunnable(r)
	loop.AddController(fx.PrLvNode, r)
}

// Run implements Runnable.
func (r *Reader) Run(ctx context.Context) error {
	defer func() {
		if r.device != nil {
			r.device.Close()
		}
	}()
	loopCtl := fx.LoopCtlFrom(ctx)
	r.deviceTimer = time.After(time.Second)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.deviceTimer:
			r.deviceTimer = nil
			var js device.Device
			var err error
			if r.DeviceIndex >= 0 {
				if js, err = device.Open(r.DeviceIndex); err != nil {
					log.Printf("Open joystick %d error: %v", r.DeviceIndex, err)
				}
			} else {
				log.Println("Detecting joystick ...")
				if js, err = device.DetectAndOpen(0); err != nil {
					log.Printf("Detect joystick error: %v", err)
				} else if js == nil {
					log.Printf("No joystick detected.")
				}
			}
			if err == nil && js != nil {
				log.Printf("Joystick %d %q opened!", js.Index(), js.Name())
				r.device, r.eventCh = js, make(chan device.Event, 1)
				go r.poll()
			} else {
				r.deviceTimer = time.After(time.Second)
			}
		case ev, ok := <-r.eventCh:
			if ok {
				loopCtl.PostMessage(&eventMsg{event: ev})
			} else {
				loopCtl.PostMessage(&eventMsg{reset: true})
				if r.device != nil {
					r.device.Close()
				}
				r.device, r.eventCh = nil, nil
				r.deviceTimer = time.After(time.Second)
			}
		}
	}
}

// Control implements Controller.
func (r *Reader) Control(cc fx.ControlContext) error {
	changed := false
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		msg, ok := mctx.CurrentMessage().(*eventMsg)
		if !ok {
			return
		}
		mctx.MessageTaken()
		if msg.reset {
			r.cond = peripheral.Neutral
		} else {
			r.apply(msg.event)
		}
		changed = true
	}))
	if changed {
		r.Pad.SetCondition(r.cond)
	}
	return nil
}

func (r *Reader) apply(ev device.Event) {
	switch ev.Kind {
	case device.KindButton:
		bit, ok := buttonBits[ev.Index]
		if !ok {
			return
		}
		if ev.Pressed() {
			r.cond.Buttons &^= bit
		} else {
			r.cond.Buttons |= bit
		}
	case device.KindAxis:
		switch ev.Index {
		case axisStickX:
			r.cond.JoyX = axisToByte(ev.Value)
		case axisStickY:
			r.cond.JoyY = axisToByte(ev.Value)
		case axisStick2X:
			r.cond.Joy2X = axisToByte(ev.Value)
		case axisStick2Y:
			r.cond.Joy2Y = axisToByte(ev.Value)
		case axisLTrigger:
			r.cond.LTrigger = triggerToByte(ev.Value)
		case axisRTrigger:
			r.cond.RTrigger = triggerToByte(ev.Value)
		case axisHatX:
			r.setHat(ev.Value, peripheral.BtnLeft, peripheral.BtnRight)
		case axisHatY:
			r.setHat(ev.Value, peripheral.BtnUp, peripheral.BtnDown)
		}
	}
}

// setHat treats a hat axis as the pair of opposing direction bits.
func (r *Reader) setHat(val int16, negBit, posBit uint16) {
	r.cond.Buttons |= negBit | posBit
	if val < 0 {
		r.cond.Buttons &^= negBit
	} else if val > 0 {
		r.cond.Buttons &^= posBit
	}
}

// axisToByte rescales a full range stick axis to the 0x80 centered
// byte the condition carries.
func axisToByte(val int16) byte {
	return byte(int(val)>>8 + 128)
}

// triggerToByte rescales a trigger axis reported from fully released
// (-32767) to fully pulled (32767).
func triggerToByte(val int16) byte {
	return byte((int(val) + 32768) >> 8)
}

func (r *Reader) poll() {
	dev, ch := r.device, r.eventCh
	defer close(ch)
	for {
		ev, err := dev.ReadEvent()
		if err != nil {
			log.Printf("Joystick read error: %v", err)
			return
		}
		if r.Verbose {
			var prefix string
			if ev.Init {
				prefix = "[INIT] "
			}
			switch ev.Kind {
			case device.KindAxis:
				log.Printf(prefix+"Axis %d: %d", ev.Index, ev.Value)
			case device.KindButton:
				log.Printf(prefix+"Button %d: %v", ev.Index, ev.Pressed())
			}
		}
		ch <- ev
	}
}

type eventMsg struct {
	event device.Event
	reset bool
}

func (m *eventMsg) NewMessage() fx.Message { return &eventMsg{} }
