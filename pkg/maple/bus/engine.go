package bus

import (
	"sync/atomic"

	"github.com/maplebus/maple.go/pkg/maple"
)

// NoTimeout disables the response deadline.
const NoTimeout = ^uint64(0)

// readBufWords fits the largest packet: frame word, full payload and
// the checksum word.
const readBufWords = 2 + maple.MaxPayloadWords

// Config tunes an engine. Zero timeout fields take the defaults below;
// a zero line check window means a single sample.
type Config struct {
	Clock Clock
	// OpenLineCheckTimeUs is how long both lines must read high
	// before a write may claim the bus.
	OpenLineCheckTimeUs uint32
	// WriteTimeoutExtraPercent pads the write deadline past the
	// nominal transmit duration.
	WriteTimeoutExtraPercent uint32
	// InterWordReadTimeoutUs gives up a read when the incoming word
	// stream stalls mid packet.
	InterWordReadTimeoutUs uint32
}

// Config defaults.
const (
	DefaultWriteTimeoutExtraPercent uint32 = 20
	DefaultInterWordReadTimeoutUs   uint32 = 100
)

// Bus drives one Maple port through a hardware backend. See the
// package comment for the concurrency model.
type Bus struct {
	cfg     Config
	backend Backend
	tx      TxMachine
	rx      RxMachine
	lines   LineSensor

	// phase is stored last and loaded first around every transition,
	// so the atomic accesses order the companion fields below.
	phase uint32

	expectingResponse bool
	responseTimeoutUs uint64
	killTimeUs        uint64

	readBuf        []uint32
	lastReadCount  uint32
	lastReadTimeUs uint64
}

// NewBus creates an engine over backend and registers itself as the
// backend's event sink.
func NewBus(backend Backend, cfg Config) *Bus {
	if cfg.Clock == nil {
		cfg.Clock = NewSystemClock()
	}
	if cfg.WriteTimeoutExtraPercent == 0 {
		cfg.WriteTimeoutExtraPercent = DefaultWriteTimeoutExtraPercent
	}
	if cfg.InterWordReadTimeoutUs == 0 {
		cfg.InterWordReadTimeoutUs = DefaultInterWordReadTimeoutUs
	}
	b := &Bus{
		cfg:     cfg,
		backend: backend,
		tx:      backend.Tx(),
		rx:      backend.Rx(),
		lines:   backend.Lines(),
		readBuf: make([]uint32, readBufWords),
	}
	backend.RegisterSink(b)
	return b
}

// Phase returns the engine phase as last published.
func (b *Bus) Phase() Phase {
	return Phase(atomic.LoadUint32(&b.phase))
}

// Busy reports whether a transfer is running or awaiting collection by
// ProcessEvents.
func (b *Bus) Busy() bool {
	return b.Phase() != PhaseIdle
}

func (b *Bus) setPhase(p Phase) {
	atomic.StoreUint32(&b.phase, uint32(p))
}

// lineCheck confirms both lines idle high for the configured window.
// A low sample refuses the transfer with no state change.
func (b *Bus) lineCheck() bool {
	start := b.cfg.Clock.NowUs()
	for {
		if !b.lines.LinesIdle() {
			return false
		}
		if b.cfg.Clock.NowUs()-start >= uint64(b.cfg.OpenLineCheckTimeUs) {
			return true
		}
	}
}

// Write claims the bus and clocks out pkt. With autostartRead the
// receive side is pre-armed and the engine moves to waiting for the
// response once the write drains, bounded by readTimeoutUs (NoTimeout
// to wait forever). Returns false, leaving all state untouched, when
// the engine is not idle, pkt is invalid, the lines are not free, or
// the backend refuses to start.
func (b *Bus) Write(pkt *maple.Packet, autostartRead bool, readTimeoutUs uint64, chunking Chunking) bool {
	if b.Phase() != PhaseIdle {
		return false
	}
	if !pkt.IsValid() {
		return false
	}
	b.tx.Stop()
	b.rx.Stop()
	words, extraTimeUs := assembleTx(pkt, chunking)
	// Check the lines last so the claim follows the check as closely
	// as possible.
	if !b.lineCheck() {
		return false
	}

	now := b.cfg.Clock.NowUs()
	b.expectingResponse = autostartRead
	b.responseTimeoutUs = readTimeoutUs
	b.killTimeUs = now +
		divideCeiling(pkt.TxDurationNs()*uint64(100+b.cfg.WriteTimeoutExtraPercent), 100*1000) +
		extraTimeUs

	if autostartRead {
		b.lastReadCount = 0
		if err := b.rx.Start(b.readBuf); err != nil {
			return false
		}
	}
	b.setPhase(PhaseWriteInProgress)
	b.backend.SetLineDirection(true)
	if err := b.tx.Start(words); err != nil {
		b.rx.Stop()
		b.backend.SetLineDirection(false)
		b.setPhase(PhaseIdle)
		return false
	}
	return true
}

// StartRead arms a capture without writing first, bounded by
// readTimeoutUs (NoTimeout to wait forever). Returns false when the
// engine is not idle or the backend refuses to arm.
func (b *Bus) StartRead(readTimeoutUs uint64) bool {
	if b.Phase() != PhaseIdle {
		return false
	}
	b.tx.Stop()
	b.rx.Stop()
	b.lastReadCount = 0
	if readTimeoutUs == NoTimeout {
		b.killTimeUs = NoTimeout
	} else {
		b.killTimeUs = b.cfg.Clock.NowUs() + readTimeoutUs
	}
	b.backend.SetLineDirection(false)
	b.setPhase(PhaseWaitingForReadStart)
	if err := b.rx.Start(b.readBuf); err != nil {
		b.setPhase(PhaseIdle)
		return false
	}
	return true
}

// WriteDone implements EventSink.
func (b *Bus) WriteDone(nowUs uint64) {
	if b.Phase() != PhaseWriteInProgress {
		return
	}
	b.tx.Stop()
	b.backend.SetLineDirection(false)
	if b.expectingResponse {
		if b.responseTimeoutUs == NoTimeout {
			b.killTimeUs = NoTimeout
		} else {
			b.killTimeUs = nowUs + b.responseTimeoutUs
		}
		b.setPhase(PhaseWaitingForReadStart)
	} else {
		b.setPhase(PhaseWriteComplete)
	}
}

// ReadEvent implements EventSink.
func (b *Bus) ReadEvent(nowUs uint64) {
	switch b.Phase() {
	case PhaseWaitingForReadStart:
		b.lastReadTimeUs = nowUs
		b.setPhase(PhaseReadInProgress)
	case PhaseReadInProgress:
		b.rx.Stop()
		b.setPhase(PhaseReadComplete)
	}
}

// ProcessEvents collects the engine's progress at nowUs. The phase is
// snapshotted once; terminal phases reset the engine to idle after
// their status is built, and deadlines are enforced for phases still
// in flight.
func (b *Bus) ProcessEvents(nowUs uint64) Status {
	phase := b.Phase()
	status := Status{Phase: phase}
	switch phase {
	case PhaseReadComplete:
		b.finishRead(&status)
		b.setPhase(PhaseIdle)

	case PhaseWriteComplete:
		b.setPhase(PhaseIdle)

	case PhaseReadInProgress:
		// Words are flowing; the kill time no longer applies. The
		// stream itself must not stall or overrun.
		count := b.rx.ProgressCount()
		switch {
		case count >= uint32(len(b.readBuf)):
			b.rx.Stop()
			status.Phase = PhaseReadFailed
			status.FailureReason = FailureBufferOverflow
			b.setPhase(PhaseIdle)
		case count == b.lastReadCount &&
			nowUs-b.lastReadTimeUs >= uint64(b.cfg.InterWordReadTimeoutUs):
			b.rx.Stop()
			status.Phase = PhaseReadFailed
			status.FailureReason = FailureTimeout
			b.setPhase(PhaseIdle)
		case count != b.lastReadCount:
			b.lastReadCount = count
			b.lastReadTimeUs = nowUs
		}

	case PhaseWriteInProgress, PhaseWaitingForReadStart:
		if b.killTimeUs == NoTimeout || nowUs < b.killTimeUs {
			break
		}
		if phase == PhaseWaitingForReadStart {
			b.rx.Stop()
			status.Phase = PhaseReadFailed
		} else {
			b.tx.Stop()
			b.rx.Stop()
			b.backend.SetLineDirection(false)
			status.Phase = PhaseWriteFailed
		}
		status.FailureReason = FailureTimeout
		b.setPhase(PhaseIdle)
	}
	return status
}

// finishRead validates a completed capture: enough words for the frame
// and checksum, a length byte covered by what arrived (peers may send
// more words than the frame claims), and a matching checksum.
func (b *Bus) finishRead(status *Status) {
	captured := b.rx.ProgressCount()
	if captured <= 1 {
		status.Phase = PhaseReadFailed
		status.FailureReason = FailureMissingData
		return
	}
	payloadLen := b.readBuf[0] & 0xff
	if payloadLen > captured-2 {
		status.Phase = PhaseReadFailed
		status.FailureReason = FailureMissingData
		return
	}
	words := b.readBuf[:captured-1]
	if uint32(maple.ChecksumWords(words)) != b.readBuf[captured-1] {
		status.Phase = PhaseReadFailed
		status.FailureReason = FailureCRCInvalid
		return
	}
	status.ReadBuffer = words
}

func divideCeiling(x, d uint64) uint64 {
	return (x + d - 1) / d
}
