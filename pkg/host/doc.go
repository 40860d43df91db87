// Package host exposes the bus to external programs over byte
// streams. A StreamParser splits each stream into commands and routes
// them by first byte to command parsers; FlycastParser speaks the
// line protocol the flycast emulator uses to reach real peripherals.
// A Session binds one stream to its parsers and a Server accepts
// sessions from a transport listener.
package host
