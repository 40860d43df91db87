// Package bus implements the Maple transceiver engine.
package bus

// The engine turns packets into the word sequences a transmit unit
// clocks onto the two bus lines, and validates the word sequences a
// receive unit captures back. Hardware sits behind the small machine
// interfaces in hw.go, so the same engine drives GPIO backends and
// in-memory simulations.
//
// Concurrency model: Write, StartRead and ProcessEvents belong to a
// single driving goroutine. Backends deliver WriteDone and ReadEvent
// from their own context; those calls are O(1) and only advance the
// phase. Every phase transition has exactly one writer, the phase word
// itself is accessed atomically, and the engine takes no locks.
//
// Failures are outcomes, not errors: a failed transfer surfaces as a
// ReadFailed or WriteFailed status with a reason, and the engine
// returns to idle by itself.
