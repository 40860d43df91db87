package gpio

import (
	"runtime"
	"sync/atomic"

	"periph.io/x/periph/conn/gpio"
)

// capture is one armed receive window. The poll goroutine owns buf up
// to the published count.
type capture struct {
	buf   []uint32
	count uint32
	stop  uint32
}

func (c *capture) storeWord(w uint32) {
	n := atomic.LoadUint32(&c.count)
	if int(n) < len(c.buf) {
		c.buf[n] = w
		atomic.AddUint32(&c.count, 1)
	}
}

// rxMachine samples the lines from a poll goroutine. Bits arrive in
// pairs, each latched by a falling edge of the alternating clock line;
// two falling edges in a row on the same line mark the end pattern.
type rxMachine struct {
	be  *Backend
	cap atomic.Value
}

// Start implements bus.RxMachine.
func (r *rxMachine) Start(buf []uint32) error {
	c := &capture{buf: buf}
	r.cap.Store(c)
	go r.run(c)
	return nil
}

// Stop implements bus.RxMachine.
func (r *rxMachine) Stop() {
	if c, _ := r.cap.Load().(*capture); c != nil {
		atomic.StoreUint32(&c.stop, 1)
	}
}

// ProgressCount implements bus.RxMachine.
func (r *rxMachine) ProgressCount() uint32 {
	if c, _ := r.cap.Load().(*capture); c != nil {
		return atomic.LoadUint32(&c.count)
	}
	return 0
}

const (
	stateWaitStart = iota
	statePreamble
	stateData
)

func (r *rxMachine) run(c *capture) {
	be := r.be
	var (
		state       = stateWaitStart
		prevA       = be.lineA.Read()
		prevB       = be.lineB.Read()
		lastClockA  bool
		haveClock   bool
		pending     uint32
		pendingBits uint
		lastEdgeUs  = be.clock.NowUs()
		quiet       = uint64(be.cfg.QuietUs)
	)
	finish := func() {
		if pendingBits == 8 {
			c.storeWord(pending)
		}
		be.sink.ReadEvent(be.clock.NowUs())
	}
	for atomic.LoadUint32(&c.stop) == 0 {
		a := be.lineA.Read()
		b := be.lineB.Read()
		fallA := prevA == gpio.High && a == gpio.Low
		fallB := prevB == gpio.High && b == gpio.Low
		prevA, prevB = a, b

		switch state {
		case stateWaitStart:
			if fallA || fallB {
				be.sink.ReadEvent(be.clock.NowUs())
				state = statePreamble
				lastEdgeUs = be.clock.NowUs()
			}
		case statePreamble:
			// Line A holds low while line B pulses; data starts once
			// both lines are back high.
			if a == gpio.High && b == gpio.High {
				state = stateData
				haveClock = false
				lastEdgeUs = be.clock.NowUs()
			}
		case stateData:
			if fallA || fallB {
				if haveClock && lastClockA == fallA {
					finish()
					return
				}
				bit := uint32(0)
				if fallA {
					if b == gpio.High {
						bit = 1
					}
				} else if a == gpio.High {
					bit = 1
				}
				pending = pending<<1 | bit
				pendingBits++
				if pendingBits == 32 {
					c.storeWord(pending)
					pending, pendingBits = 0, 0
				}
				lastClockA = fallA
				haveClock = true
				lastEdgeUs = be.clock.NowUs()
			} else if a == gpio.High && b == gpio.High &&
				be.clock.NowUs()-lastEdgeUs >= quiet {
				// No end pattern seen; a long silence closes the
				// capture the same way.
				finish()
				return
			}
		}
		runtime.Gosched()
	}
}
