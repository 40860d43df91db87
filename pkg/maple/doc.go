// Package maple defines the Maple bus wire model.
package maple

// A Maple packet is a 32-bit frame word followed by 0-255 payload words
// and an 8-bit XOR checksum. Words travel most significant byte first.
// Peripherals hang off one of four ports; each port hosts one main
// peripheral and up to five sub peripherals, all encoded in a single
// address byte.
//
// This package is the shared vocabulary of the scheduler, the bus
// engine, the host command surface and the peripheral emulation. It has
// no I/O of its own.
