package sched

import (
	"github.com/maplebus/maple.go/pkg/maple"
)

// TxTimeASAP schedules a transmission for the earliest opportunity.
const TxTimeASAP uint64 = 0

// Priorities used across the applications. Lower value wins.
const (
	PriorityMain     uint8 = 0
	PrioritySub      uint8 = 1
	PriorityExternal uint8 = 2

	MaxPriority = PriorityExternal
)

// Transmitter receives the outcome of transmissions it scheduled.
// Callbacks run on the goroutine driving the port and must not block.
type Transmitter interface {
	// TxStarted is invoked when the transmission is handed to the bus.
	TxStarted(tx *Transmission)
	// TxFailed is invoked on failure; writeFailed and readFailed tell
	// which side gave up.
	TxFailed(writeFailed, readFailed bool, tx *Transmission)
	// TxComplete is invoked with the response packet, or nil when no
	// response was expected.
	TxComplete(response *maple.Packet, tx *Transmission)
}

// TransmitterFuncs adapts plain functions to Transmitter. Nil fields
// are skipped.
type TransmitterFuncs struct {
	OnStarted  func(tx *Transmission)
	OnFailed   func(writeFailed, readFailed bool, tx *Transmission)
	OnComplete func(response *maple.Packet, tx *Transmission)
}

// TxStarted implements Transmitter.
func (f *TransmitterFuncs) TxStarted(tx *Transmission) {
	if f.OnStarted != nil {
		f.OnStarted(tx)
	}
}

// TxFailed implements Transmitter.
func (f *TransmitterFuncs) TxFailed(writeFailed, readFailed bool, tx *Transmission) {
	if f.OnFailed != nil {
		f.OnFailed(writeFailed, readFailed, tx)
	}
}

// TxComplete implements Transmitter.
func (f *TransmitterFuncs) TxComplete(response *maple.Packet, tx *Transmission) {
	if f.OnComplete != nil {
		f.OnComplete(response, tx)
	}
}

// Transmission is one scheduled packet send. The scheduler owns the
// transmission and its packet once added; Target is a plain reference
// and is never released by the scheduler.
type Transmission struct {
	ID       uint32
	Priority uint8
	// TxTimeUs is the earliest send time in microseconds of bus time,
	// or TxTimeASAP.
	TxTimeUs uint64
	Target   Transmitter
	Packet   *maple.Packet
	// ExpectResponse arms a response read right after the write.
	ExpectResponse bool
	// ExpectedResponsePayloadWords sizes the expected reply. Carried
	// for callers that want it; reception always uses the full-size
	// receive buffer.
	ExpectedResponsePayloadWords uint32
	// AutoRepeatPeriodUs re-schedules the transmission at this cadence
	// when non-zero.
	AutoRepeatPeriodUs uint32
	// AutoRepeatEndTimeUs stops the cadence once the next occurrence
	// would land on or past it. Zero means no end.
	AutoRepeatEndTimeUs uint64
}
