package bus

// TxMachine is the transmit side state machine. Start hands it an
// assembled word sequence (see buffer.go) and returns once the
// transfer is armed; the backend signals completion through its
// registered EventSink.
type TxMachine interface {
	Start(buf []uint32) error
	// Stop halts the machine and releases the line.
	Stop()
	// Idle reports whether the machine has drained its buffer.
	Idle() bool
}

// RxMachine is the receive side state machine. Start arms capture into
// buf; words appear there as they arrive. After a completion event,
// ProgressCount covers every captured word, and the final word holds
// the packet checksum byte.
type RxMachine interface {
	Start(buf []uint32) error
	Stop()
	ProgressCount() uint32
}

// LineSensor samples the two bus lines.
type LineSensor interface {
	// LinesIdle reports whether both lines read high.
	LinesIdle() bool
}

// EventSink receives completion events from a backend. The engine
// implements it; backends invoke it from whatever context services the
// hardware. Calls are O(1) and only advance engine state.
type EventSink interface {
	// WriteDone signals the transmit machine drained its buffer.
	WriteDone(nowUs uint64)
	// ReadEvent signals receive activity: the first edge of an
	// incoming packet, or the end of a capture.
	ReadEvent(nowUs uint64)
}

// Backend bundles the hardware units of one bus instance. A backend
// serves exactly one engine, attached through RegisterSink.
type Backend interface {
	Tx() TxMachine
	Rx() RxMachine
	Lines() LineSensor
	// SetLineDirection switches the external line driver; out true
	// means drive the bus.
	SetLineDirection(out bool)
	RegisterSink(sink EventSink)
}
