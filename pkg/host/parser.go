package host

// BinaryStartChar escapes a run of raw bytes inside a command: the
// next two bytes carry a big endian length, then that many bytes pass
// through uninterpreted.
const BinaryStartChar byte = 0x01

// CommandParser handles one family of commands, claimed by first
// byte.
type CommandParser interface {
	// CommandChars lists the bytes this parser claims.
	CommandChars() string
	// Submit hands over one complete command with leading whitespace
	// stripped, command byte included and terminator excluded. It runs
	// on the loop goroutine and must not block.
	Submit(cmd []byte)
	// PrintHelp writes one usage line to the response stream.
	PrintHelp()
}
