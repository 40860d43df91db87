// Package gpio drives the Maple bus over two host GPIO lines.
package gpio

import (
	"fmt"
	"time"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"github.com/maplebus/maple.go/pkg/maple/bus"
)

// Config names the host pins of one port.
type Config struct {
	// LineA and LineB are the two bus lines.
	LineA string
	LineB string
	// Dir optionally names the direction pin of an external line
	// driver, high while transmitting.
	Dir   string
	Clock bus.Clock
	// BitPeriod throttles output edges; zero runs unthrottled. Host
	// GPIO cannot reach nominal bus speed, so peers must tolerate a
	// slow clock either way.
	BitPeriod time.Duration
	// QuietUs is the all-lines-high gap that closes an incoming
	// capture when no end pattern was recognized.
	QuietUs uint32
}

// DefaultQuietUs closes a capture after this much line silence.
const DefaultQuietUs uint32 = 100

// Backend implements bus.Backend over periph.io pins.
type Backend struct {
	cfg   Config
	lineA gpio.PinIO
	lineB gpio.PinIO
	dir   gpio.PinIO
	clock bus.Clock
	sink  bus.EventSink
	tx    *txMachine
	rx    *rxMachine
}

// New initializes the periph host drivers and resolves the configured
// pins. The lines start released (inputs with pull-ups).
func New(cfg Config) (*Backend, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpio host init: %v", err)
	}
	if cfg.Clock == nil {
		cfg.Clock = bus.NewSystemClock()
	}
	if cfg.QuietUs == 0 {
		cfg.QuietUs = DefaultQuietUs
	}
	be := &Backend{cfg: cfg, clock: cfg.Clock}

	var err error
	if be.lineA, err = pinByName(cfg.LineA); err != nil {
		return nil, err
	}
	if be.lineB, err = pinByName(cfg.LineB); err != nil {
		return nil, err
	}
	if cfg.Dir != "" {
		if be.dir, err = pinByName(cfg.Dir); err != nil {
			return nil, err
		}
		if err = be.dir.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("release %s: %v", be.dir, err)
		}
	}
	be.tx = &txMachine{be: be}
	be.rx = &rxMachine{be: be}
	be.SetLineDirection(false)
	return be, nil
}

func pinByName(name string) (gpio.PinIO, error) {
	if name == "" {
		return nil, fmt.Errorf("gpio pin not configured")
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("unknown gpio pin %q", name)
	}
	return pin, nil
}

// Tx implements bus.Backend.
func (b *Backend) Tx() bus.TxMachine { return b.tx }

// Rx implements bus.Backend.
func (b *Backend) Rx() bus.RxMachine { return b.rx }

// Lines implements bus.Backend.
func (b *Backend) Lines() bus.LineSensor { return b }

// LinesIdle implements bus.LineSensor.
func (b *Backend) LinesIdle() bool {
	return b.lineA.Read() == gpio.High && b.lineB.Read() == gpio.High
}

// SetLineDirection implements bus.Backend. Driving means both lines
// become outputs at idle high; listening releases them to pulled-up
// inputs.
func (b *Backend) SetLineDirection(out bool) {
	if b.dir != nil {
		level := gpio.Low
		if out {
			level = gpio.High
		}
		b.dir.Out(level)
	}
	if out {
		b.lineA.Out(gpio.High)
		b.lineB.Out(gpio.High)
	} else {
		b.lineA.In(gpio.PullUp, gpio.NoEdge)
		b.lineB.In(gpio.PullUp, gpio.NoEdge)
	}
}

// RegisterSink implements bus.Backend.
func (b *Backend) RegisterSink(sink bus.EventSink) { b.sink = sink }
