package bus

// Phase is the engine state.
type Phase uint8

// Engine phases.
const (
	PhaseIdle Phase = iota
	PhaseWriteInProgress
	PhaseWriteComplete
	PhaseWriteFailed
	PhaseWaitingForReadStart
	PhaseReadInProgress
	PhaseReadComplete
	PhaseReadFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseWriteInProgress:
		return "write-in-progress"
	case PhaseWriteComplete:
		return "write-complete"
	case PhaseWriteFailed:
		return "write-failed"
	case PhaseWaitingForReadStart:
		return "waiting-for-read-start"
	case PhaseReadInProgress:
		return "read-in-progress"
	case PhaseReadComplete:
		return "read-complete"
	case PhaseReadFailed:
		return "read-failed"
	}
	return "unknown"
}

// FailureReason explains a failed phase.
type FailureReason uint8

// Failure reasons.
const (
	FailureNone FailureReason = iota
	FailureCRCInvalid
	FailureMissingData
	FailureBufferOverflow
	FailureTimeout
)

func (r FailureReason) String() string {
	switch r {
	case FailureNone:
		return "none"
	case FailureCRCInvalid:
		return "crc-invalid"
	case FailureMissingData:
		return "missing-data"
	case FailureBufferOverflow:
		return "buffer-overflow"
	case FailureTimeout:
		return "timeout"
	}
	return "unknown"
}

// Status is the snapshot returned by ProcessEvents.
type Status struct {
	Phase         Phase
	FailureReason FailureReason
	// ReadBuffer holds the captured words, frame word first, on
	// PhaseReadComplete. It aliases the engine's receive buffer and is
	// valid only until the next read begins.
	ReadBuffer []uint32
}
