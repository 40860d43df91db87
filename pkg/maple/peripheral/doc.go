// Package peripheral emulates Maple devices for the client side of the
// bus. A Device answers info requests, routes function commands to its
// registered Functions and mirrors sub device presence into its sender
// address.
package peripheral
