// Package ident derives stable identifiers for this installation.
package ident

import (
	"strings"

	"github.com/denisbrodbeck/machineid"
)

// SerialLen is the length of the serial number reported to host links.
const SerialLen = 16

// MachineID retrieves the unique ID identifying the machine.
func MachineID() string {
	id, err := machineid.ID()
	if err != nil {
		panic(err)
	}
	return id
}

// Serial derives the serial number reported to host links. It is stable
// per machine without exposing the raw machine ID.
func Serial() string {
	id, err := machineid.ProtectedID("maplebus")
	if err != nil {
		panic(err)
	}
	return strings.ToUpper(id[:SerialLen])
}
