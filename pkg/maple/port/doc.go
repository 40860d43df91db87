// Package port assembles one physical Maple port: the bus engine, the
// shared transmission scheduler and the clock, behind a framework
// controller that polls the bus every loop iteration.
//
// The controller owns the scheduler and the engine. Everything on the
// loop goroutine may use them directly; other goroutines submit work
// by posting Submit messages to the loop.
package port
