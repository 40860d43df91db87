package maple

// Address byte composition. Bits 6-7 select the port, bit 5 flags the
// main peripheral, bits 0-4 are sub peripheral presence slots.
const (
	AddrMain     byte = 0x20
	AddrSubMask  byte = 0x1f
	AddrPortMask byte = 0xc0

	// MaxPorts is the number of ports addressable by the port bits.
	MaxPorts = 4
	// MaxSubPeripherals is the number of sub peripheral slots per port.
	MaxSubPeripherals = 5
)

// PortAddr returns the address bits of port index n (0-3).
func PortAddr(n int) byte {
	return byte(n&0x03) << 6
}

// PortIndex extracts the port index from an address.
func PortIndex(addr byte) int {
	return int(addr>>6) & 0x03
}

// IsMain reports whether addr names a main peripheral.
func IsMain(addr byte) bool {
	return addr&AddrMain != 0
}

// SubAddr returns the address of sub peripheral slot i on port n.
func SubAddr(n, i int) byte {
	return PortAddr(n) | (1 << uint(i) & AddrSubMask)
}

// SubSlots expands the sub peripheral presence bits of addr into slot
// indices, ascending.
func SubSlots(addr byte) []int {
	var slots []int
	for i := 0; i < MaxSubPeripherals; i++ {
		if addr&(1<<uint(i)) != 0 {
			slots = append(slots, i)
		}
	}
	return slots
}
