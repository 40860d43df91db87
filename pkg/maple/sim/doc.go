// Package sim provides an in-memory Maple bus for tests and demos.
package sim

// The simulated backend decodes writes and hands the packets to
// registered responders synchronously on the caller's goroutine, then
// plays their replies into the armed capture. Faults can be staged one
// at a time to exercise every failure path of the engine: dropped,
// corrupted, truncated and stalled responses, and busy lines.
//
// Unlike a hardware backend nothing here is concurrent, so simulated
// time can be driven by a ManualClock and outcomes are deterministic.
