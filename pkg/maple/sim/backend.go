package sim

import (
	"fmt"
	"sync"

	"github.com/golang/glog"

	"github.com/maplebus/maple.go/pkg/maple"
	"github.com/maplebus/maple.go/pkg/maple/bus"
)

// Responder is a simulated peripheral: it gets every packet addressed
// to it and returns the reply, or nil for silence.
type Responder interface {
	Respond(req *maple.Packet) *maple.Packet
}

// RespondFunc is the func form of Responder.
type RespondFunc func(req *maple.Packet) *maple.Packet

// Respond implements Responder.
func (f RespondFunc) Respond(req *maple.Packet) *maple.Packet { return f(req) }

// ManualClock is a hand-advanced clock for deterministic tests.
type ManualClock struct {
	now uint64
}

// NowUs implements bus.Clock.
func (c *ManualClock) NowUs() uint64 { return c.now }

// Advance moves the clock forward.
func (c *ManualClock) Advance(us uint64) { c.now += us }

// Set jumps the clock to an absolute time.
func (c *ManualClock) Set(us uint64) { c.now = us }

// Backend implements bus.Backend in memory.
type Backend struct {
	mu         sync.Mutex
	clock      bus.Clock
	sink       bus.EventSink
	responders map[byte]Responder
	tx         *txUnit
	rx         *rxUnit

	linesBusy bool
	dirOut    bool
	sent      []*maple.Packet

	dropNext     bool
	corruptNext  bool
	stallNext    bool
	truncateNext int
}

// New creates a simulated backend on clock; nil means real time.
func New(clock bus.Clock) *Backend {
	if clock == nil {
		clock = bus.NewSystemClock()
	}
	be := &Backend{clock: clock, responders: make(map[byte]Responder)}
	be.tx = &txUnit{be: be}
	be.rx = &rxUnit{}
	return be
}

// AttachResponder registers r for packets addressed to addr.
func (be *Backend) AttachResponder(addr byte, r Responder) {
	be.mu.Lock()
	defer be.mu.Unlock()
	be.responders[addr] = r
}

// DetachResponder removes the responder at addr.
func (be *Backend) DetachResponder(addr byte) {
	be.mu.Lock()
	defer be.mu.Unlock()
	delete(be.responders, addr)
}

// Sent returns every packet written through the backend so far.
func (be *Backend) Sent() []*maple.Packet {
	be.mu.Lock()
	defer be.mu.Unlock()
	return append([]*maple.Packet(nil), be.sent...)
}

// SetLinesBusy holds the lines low so writes are refused.
func (be *Backend) SetLinesBusy(busy bool) {
	be.mu.Lock()
	defer be.mu.Unlock()
	be.linesBusy = busy
}

// DropNextResponse silences the next matched responder once.
func (be *Backend) DropNextResponse() {
	be.mu.Lock()
	defer be.mu.Unlock()
	be.dropNext = true
}

// CorruptNextResponse flips a payload bit in the next delivered reply
// while keeping its original checksum.
func (be *Backend) CorruptNextResponse() {
	be.mu.Lock()
	defer be.mu.Unlock()
	be.corruptNext = true
}

// TruncateNextResponse caps the next delivered capture at n words.
func (be *Backend) TruncateNextResponse(n int) {
	be.mu.Lock()
	defer be.mu.Unlock()
	be.truncateNext = n
}

// StallNextResponse starts the next reception but never completes it.
func (be *Backend) StallNextResponse() {
	be.mu.Lock()
	defer be.mu.Unlock()
	be.stallNext = true
}

// Tx implements bus.Backend.
func (be *Backend) Tx() bus.TxMachine { return be.tx }

// Rx implements bus.Backend.
func (be *Backend) Rx() bus.RxMachine { return be.rx }

// Lines implements bus.Backend.
func (be *Backend) Lines() bus.LineSensor { return be }

// LinesIdle implements bus.LineSensor.
func (be *Backend) LinesIdle() bool {
	be.mu.Lock()
	defer be.mu.Unlock()
	return !be.linesBusy
}

// SetLineDirection implements bus.Backend.
func (be *Backend) SetLineDirection(out bool) {
	be.mu.Lock()
	defer be.mu.Unlock()
	be.dirOut = out
}

// RegisterSink implements bus.Backend.
func (be *Backend) RegisterSink(sink bus.EventSink) { be.sink = sink }

// InjectPacket plays pkt into the armed capture as if a peer wrote it.
// It reports false when no capture is armed.
func (be *Backend) InjectPacket(pkt *maple.Packet) bool {
	be.mu.Lock()
	defer be.mu.Unlock()
	return be.injectLocked(pkt)
}

func (be *Backend) deliver(tr *bus.TxTransfer) {
	words := tr.Words()
	frame := maple.FrameFromWord(words[0])
	pkt := &maple.Packet{Frame: frame, Payload: append([]uint32(nil), words[1:]...)}

	be.mu.Lock()
	be.sent = append(be.sent, pkt)
	r := be.responders[frame.RecipientAddr]
	drop := r != nil && be.dropNext
	if drop {
		be.dropNext = false
	}
	be.mu.Unlock()

	glog.V(3).Infof("sim: wrote %02x -> %02x (%d words)",
		frame.Command, frame.RecipientAddr, len(pkt.Payload))

	// The sink may call back into the backend; the lock must be free.
	be.sink.WriteDone(be.clock.NowUs())

	if r == nil {
		return
	}
	resp := r.Respond(pkt)
	if resp == nil {
		return
	}
	if drop {
		glog.V(3).Info("sim: dropped response")
		return
	}
	be.mu.Lock()
	defer be.mu.Unlock()
	be.injectLocked(resp)
}

func (be *Backend) injectLocked(pkt *maple.Packet) bool {
	if !be.rx.armed {
		return false
	}
	now := be.clock.NowUs()
	be.sink.ReadEvent(now)

	words := append([]uint32{pkt.Frame.Word()}, pkt.Payload...)
	crc := maple.ChecksumWords(words)
	if be.corruptNext {
		be.corruptNext = false
		words[len(words)-1] ^= 1 << 5
	}
	words = append(words, uint32(crc))
	if be.truncateNext > 0 && be.truncateNext < len(words) {
		words = words[:be.truncateNext]
		be.truncateNext = 0
	}
	be.rx.count = uint32(copy(be.rx.buf, words))
	if be.stallNext {
		be.stallNext = false
		return true
	}
	be.sink.ReadEvent(now)
	return true
}

type txUnit struct {
	be *Backend
}

// Start implements bus.TxMachine; transfers complete synchronously.
func (t *txUnit) Start(buf []uint32) error {
	tr, ok := bus.DecodeTxBuffer(buf)
	if !ok {
		return fmt.Errorf("malformed transmit buffer (%d words)", len(buf))
	}
	t.be.deliver(tr)
	return nil
}

// Stop implements bus.TxMachine.
func (t *txUnit) Stop() {}

// Idle implements bus.TxMachine.
func (t *txUnit) Idle() bool { return true }

type rxUnit struct {
	buf   []uint32
	count uint32
	armed bool
}

// Start implements bus.RxMachine.
func (r *rxUnit) Start(buf []uint32) error {
	r.buf, r.count, r.armed = buf, 0, true
	return nil
}

// Stop implements bus.RxMachine.
func (r *rxUnit) Stop() { r.armed = false }

// ProgressCount implements bus.RxMachine.
func (r *rxUnit) ProgressCount() uint32 { return r.count }
