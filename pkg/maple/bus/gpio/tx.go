package gpio

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"periph.io/x/periph/conn/gpio"

	"github.com/maplebus/maple.go/pkg/maple/bus"
)

var errStopped = errors.New("stopped")

// txMachine clocks decoded transmit buffers onto the lines from its
// own goroutine and reports completion through the registered sink.
type txMachine struct {
	be   *Backend
	stop uint32
	busy uint32
}

// Start implements bus.TxMachine.
func (t *txMachine) Start(buf []uint32) error {
	tr, ok := bus.DecodeTxBuffer(buf)
	if !ok {
		return fmt.Errorf("malformed transmit buffer (%d words)", len(buf))
	}
	atomic.StoreUint32(&t.stop, 0)
	atomic.StoreUint32(&t.busy, 1)
	go t.run(tr)
	return nil
}

// Stop implements bus.TxMachine.
func (t *txMachine) Stop() { atomic.StoreUint32(&t.stop, 1) }

// Idle implements bus.TxMachine.
func (t *txMachine) Idle() bool { return atomic.LoadUint32(&t.busy) == 0 }

func (t *txMachine) run(tr *bus.TxTransfer) {
	defer atomic.StoreUint32(&t.busy, 0)
	if err := t.emit(tr); err != nil {
		if err != errStopped {
			glog.Errorf("maple tx aborted: %v", err)
		}
		return
	}
	t.be.sink.WriteDone(t.be.clock.NowUs())
}

func (t *txMachine) emit(tr *bus.TxTransfer) error {
	if err := t.startPattern(); err != nil {
		return err
	}
	delay := time.Duration(int64(tr.DelayLoops) * bus.NsPerLoop)
	for i, chunk := range tr.Chunks {
		if i > 0 {
			time.Sleep(delay)
		}
		for _, w := range chunk {
			if err := t.emitBits(w, 32); err != nil {
				return err
			}
		}
	}
	// The checksum byte closes the final chunk.
	if err := t.emitBits(uint32(tr.Checksum), 8); err != nil {
		return err
	}
	return t.endPattern()
}

// emitBits sends the low n bits of v, most significant first. n must
// be even; bits travel in pairs.
func (t *txMachine) emitBits(v uint32, n uint) error {
	if atomic.LoadUint32(&t.stop) != 0 {
		return errStopped
	}
	for shift := int(n) - 1; shift >= 1; shift -= 2 {
		first := levelOf(v >> uint(shift) & 1)
		second := levelOf(v >> uint(shift-1) & 1)
		if err := t.emitBitPair(first, second); err != nil {
			return err
		}
	}
	return nil
}

// emitBitPair drives two bits: the first rides line B latched by a
// falling edge on line A, the second rides line A latched by a falling
// edge on line B.
func (t *txMachine) emitBitPair(first, second gpio.Level) error {
	b := t.be
	if err := b.lineB.Out(first); err != nil {
		return err
	}
	if err := b.lineA.Out(gpio.Low); err != nil {
		return err
	}
	t.pace()
	if err := b.lineA.Out(gpio.High); err != nil {
		return err
	}
	if err := b.lineB.Out(gpio.High); err != nil {
		return err
	}
	if err := b.lineA.Out(second); err != nil {
		return err
	}
	if err := b.lineB.Out(gpio.Low); err != nil {
		return err
	}
	t.pace()
	if err := b.lineB.Out(gpio.High); err != nil {
		return err
	}
	return b.lineA.Out(gpio.High)
}

// startPattern holds line A low while line B pulses four times.
func (t *txMachine) startPattern() error {
	b := t.be
	if err := b.lineA.Out(gpio.Low); err != nil {
		return err
	}
	for i := 0; i < 4; i++ {
		if err := b.lineB.Out(gpio.Low); err != nil {
			return err
		}
		t.pace()
		if err := b.lineB.Out(gpio.High); err != nil {
			return err
		}
		t.pace()
	}
	return b.lineA.Out(gpio.High)
}

// endPattern holds line B low while line A pulses twice.
func (t *txMachine) endPattern() error {
	b := t.be
	if err := b.lineB.Out(gpio.Low); err != nil {
		return err
	}
	for i := 0; i < 2; i++ {
		if err := b.lineA.Out(gpio.Low); err != nil {
			return err
		}
		t.pace()
		if err := b.lineA.Out(gpio.High); err != nil {
			return err
		}
		t.pace()
	}
	return b.lineB.Out(gpio.High)
}

func (t *txMachine) pace() {
	if t.be.cfg.BitPeriod > 0 {
		time.Sleep(t.be.cfg.BitPeriod / 2)
	}
}

func levelOf(bit uint32) gpio.Level {
	if bit != 0 {
		return gpio.High
	}
	return gpio.Low
}
